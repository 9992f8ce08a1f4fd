// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// NormalizeE164 formats a dial code and national number to E.164.
// It returns an empty string when the pair does not form a valid number;
// intake has already checked the raw formats, so this is best-effort enrichment.
func NormalizeE164(dialCode, number string) string {
	dialCode = strings.TrimSpace(dialCode)
	number = strings.TrimSpace(number)
	if dialCode == "" || number == "" {
		return ""
	}
	if !strings.HasPrefix(dialCode, "+") {
		dialCode = "+" + dialCode
	}

	parsed, err := phonenumbers.Parse(dialCode+number, "")
	if err != nil {
		return ""
	}

	if !phonenumbers.IsValidNumber(parsed) {
		return ""
	}

	return phonenumbers.Format(parsed, phonenumbers.E164)
}

// RegionFor returns the ISO region code a valid E.164 number belongs to, or "".
func RegionFor(e164 string) string {
	if e164 == "" {
		return ""
	}
	parsed, err := phonenumbers.Parse(e164, "")
	if err != nil {
		return ""
	}
	return phonenumbers.GetRegionCodeForNumber(parsed)
}
