package dispatch

import (
	"leadcrm_backend/internal/brands"
	"leadcrm_backend/internal/leads/domain"
)

// BuildPayload returns the fields sent to a brand's tracker. The lead's own
// fields go out under their internal names unless the brand maps them: a
// mapping entry external → internal sends the internal value as external
// and drops the internal name. Brand aff_id and offer_id fill gaps.
func BuildPayload(lead domain.Lead, brand brands.Brand) map[string]string {
	fields := lead.Fields()
	if fields["aff_id"] == "" && brand.AffID != "" {
		fields["aff_id"] = brand.AffID
	}
	if fields["offer_id"] == "" && brand.OfferID != "" {
		fields["offer_id"] = brand.OfferID
	}

	if len(brand.FieldMapping) == 0 {
		return fields
	}

	payload := make(map[string]string, len(fields)+len(brand.FieldMapping))
	mapped := make(map[string]struct{}, len(brand.FieldMapping))
	for external, internal := range brand.FieldMapping {
		mapped[internal] = struct{}{}
		if v, ok := fields[internal]; ok {
			payload[external] = v
		} else if v := lead.Field(internal); v != "" {
			payload[external] = v
		}
	}
	for k, v := range fields {
		if _, ok := mapped[k]; ok {
			continue
		}
		if _, taken := payload[k]; !taken {
			payload[k] = v
		}
	}
	return payload
}
