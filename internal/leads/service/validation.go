package service

import (
	"strings"

	"leadcrm_backend/internal/brands"
	"leadcrm_backend/internal/leads/transport"
	"leadcrm_backend/platform/validator"
)

// formatRules are checked on every non-blank value, required or not.
var formatRules = []struct {
	field string
	tag   string
}{
	{"email", "email"},
	{"country", "iso3166_1_alpha2"},
	{"phonecc", "phonecc"},
	{"phone", "phonedigits"},
}

// validateSubmission returns the brand-required fields that are blank and
// the fields whose values are malformed, each in a stable order.
func validateSubmission(val *validator.Validator, brand brands.Brand, req transport.SubmitLeadRequest) transport.ValidationDetails {
	details := transport.ValidationDetails{Missing: []string{}, Invalid: []string{}}

	for _, field := range brand.RequiredFields {
		if strings.TrimSpace(req.Field(field)) == "" {
			details.Missing = append(details.Missing, field)
		}
	}

	for _, rule := range formatRules {
		value := strings.TrimSpace(req.Field(rule.field))
		if value == "" {
			continue
		}
		if rule.field == "country" {
			value = strings.ToUpper(value)
		}
		if err := val.Var(value, rule.tag); err != nil {
			details.Invalid = append(details.Invalid, rule.field)
		}
	}

	if country := strings.TrimSpace(req.Country); country != "" && !brand.AllowsCountry(country) && !contains(details.Invalid, "country") {
		details.Invalid = append(details.Invalid, "country")
	}

	return details
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
