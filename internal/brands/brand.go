// Package brands holds the brand registry: which affiliate endpoints exist,
// what each one requires from a lead and how to authenticate against it.
package brands

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Brand types.
const (
	TypeMock = "mock"
	TypeAPI  = "api"
)

// Methods used to deliver a lead.
const (
	MethodPOST = "POST"
	MethodGET  = "GET"
)

// Ways of presenting AuthToken to a tracker.
const (
	AuthNone         = "none"
	AuthBearer       = "bearer"
	AuthBasic        = "basic"
	AuthAPIKeyHeader = "api_key_header"
)

// DefaultBrandID is the demo brand seeded into every registry.
const DefaultBrandID = "1000"

// Brand describes one affiliate destination.
type Brand struct {
	ID                  string            `json:"id" yaml:"id"`
	Name                string            `json:"name" yaml:"name"`
	Description         string            `json:"description,omitempty" yaml:"description"`
	Active              bool              `json:"active" yaml:"active"`
	Type                string            `json:"type" yaml:"type"`
	TrackerURL          string            `json:"trackerUrl,omitempty" yaml:"tracker_url"`
	Method              string            `json:"method" yaml:"method"`
	AffID               string            `json:"affId" yaml:"aff_id"`
	OfferID             string            `json:"offerId" yaml:"offer_id"`
	RequiredFields      []string          `json:"requiredFields" yaml:"required_fields"`
	AuthType            string            `json:"authType" yaml:"auth_type"`
	AuthToken           string            `json:"-" yaml:"auth_token"`
	APIKeyHeader        string            `json:"apiKeyHeader,omitempty" yaml:"api_key_header"`
	CountryRestrictions []string          `json:"countryRestrictions,omitempty" yaml:"country_restrictions"`
	FieldMapping        map[string]string `json:"fieldMapping,omitempty" yaml:"field_mapping"`
	Timeout             time.Duration     `json:"-" yaml:"timeout"`
}

// IsMock reports whether deliveries to b skip the network.
// A brand without a tracker URL is always treated as mock.
func (b Brand) IsMock() bool {
	return b.Type == TypeMock || strings.TrimSpace(b.TrackerURL) == ""
}

// AllowsCountry reports whether country passes the brand allow-list.
// An empty list allows every country.
func (b Brand) AllowsCountry(country string) bool {
	if len(b.CountryRestrictions) == 0 {
		return true
	}
	for _, c := range b.CountryRestrictions {
		if strings.EqualFold(c, country) {
			return true
		}
	}
	return false
}

// HasAuth reports whether deliveries carry a credential.
func (b Brand) HasAuth() bool {
	if b.AuthToken == "" {
		return false
	}
	switch b.AuthType {
	case AuthBearer, AuthBasic:
		return true
	case AuthAPIKeyHeader:
		return b.APIKeyHeader != ""
	}
	return false
}

// normalize fills defaults and canonicalizes casing.
func (b Brand) normalize() Brand {
	b.ID = strings.TrimSpace(b.ID)
	b.Method = strings.ToUpper(strings.TrimSpace(b.Method))
	if b.Method != MethodGET {
		b.Method = MethodPOST
	}
	b.Type = strings.ToLower(strings.TrimSpace(b.Type))
	if b.Type == "" {
		if strings.TrimSpace(b.TrackerURL) == "" {
			b.Type = TypeMock
		} else {
			b.Type = TypeAPI
		}
	}
	b.AuthType = normalizeAuthType(b.AuthType, b)
	fields := make([]string, 0, len(b.RequiredFields))
	for _, f := range b.RequiredFields {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			fields = append(fields, f)
		}
	}
	b.RequiredFields = fields
	if len(b.RequiredFields) == 0 {
		b.RequiredFields = append([]string(nil), defaultRequiredFields...)
	}
	countries := make([]string, 0, len(b.CountryRestrictions))
	for _, c := range b.CountryRestrictions {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			countries = append(countries, c)
		}
	}
	b.CountryRestrictions = countries
	return b
}

// normalizeAuthType accepts the camelCase spelling of api_key_header and
// infers the type for brands configured with only a token.
func normalizeAuthType(raw string, b Brand) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	switch t {
	case "apikeyheader", "api-key-header":
		return AuthAPIKeyHeader
	case "":
		switch {
		case b.AuthToken == "":
			return AuthNone
		case b.APIKeyHeader != "":
			return AuthAPIKeyHeader
		default:
			return AuthBearer
		}
	}
	return t
}

// validate rejects settings that would make every delivery or intake fail.
func (b Brand) validate() error {
	if b.ID == "" {
		return ErrInvalidID
	}
	switch b.AuthType {
	case AuthNone, AuthBearer, AuthBasic:
	case AuthAPIKeyHeader:
		if strings.TrimSpace(b.APIKeyHeader) == "" {
			return fmt.Errorf("%w: api_key_header auth needs a header name", ErrInvalidAuth)
		}
	default:
		return fmt.Errorf("%w: unknown auth type %q", ErrInvalidAuth, b.AuthType)
	}
	for _, f := range b.RequiredFields {
		if !IsRequirableField(f) {
			return fmt.Errorf("%w: %q", ErrInvalidRequiredField, f)
		}
	}
	return nil
}

// clone returns a deep copy so callers cannot mutate registry state.
func (b Brand) clone() Brand {
	b.RequiredFields = append([]string(nil), b.RequiredFields...)
	b.CountryRestrictions = append([]string(nil), b.CountryRestrictions...)
	if b.FieldMapping != nil {
		m := make(map[string]string, len(b.FieldMapping))
		for k, v := range b.FieldMapping {
			m[k] = v
		}
		b.FieldMapping = m
	}
	return b
}

// requirableFields are the submission fields a brand may require.
var requirableFields = map[string]struct{}{
	"first_name": {}, "last_name": {}, "email": {}, "phonecc": {}, "phone": {}, "country": {},
	"aff_id": {}, "offer_id": {}, "aff_sub": {}, "aff_sub2": {}, "aff_sub3": {}, "aff_sub4": {}, "aff_sub5": {},
	"orig_offer": {}, "utm_source": {}, "utm_medium": {}, "utm_campaign": {}, "referer": {}, "password": {},
}

// IsRequirableField reports whether name is a submission field intake can check.
func IsRequirableField(name string) bool {
	_, ok := requirableFields[name]
	return ok
}

// RequirableFields returns the requirable field names, sorted.
func RequirableFields() []string {
	out := make([]string, 0, len(requirableFields))
	for name := range requirableFields {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

var defaultRequiredFields = []string{"first_name", "last_name", "email", "phonecc", "phone", "country"}

// DefaultBrand returns the seeded demo brand.
func DefaultBrand() Brand {
	return Brand{
		ID:             DefaultBrandID,
		Name:           "Demo Trading Platform",
		Description:    "Demo brand; deliveries are simulated.",
		Active:         true,
		Type:           TypeMock,
		Method:         MethodPOST,
		AuthType:       AuthNone,
		AffID:          "28215",
		OfferID:        "1000",
		RequiredFields: append([]string(nil), defaultRequiredFields...),
	}
}
