package transport

import (
	"strings"

	"leadcrm_backend/internal/leads/domain"
)

// SubmitLeadRequest is a landing-page submission. It is decoded from JSON or
// form fields by wire name; see FromValues.
type SubmitLeadRequest struct {
	BrandID     string
	FirstName   string
	LastName    string
	Email       string
	PhoneCC     string
	Phone       string
	Country     string
	AffID       string
	OfferID     string
	AffSub      string
	AffSub2     string
	AffSub3     string
	AffSub4     string
	AffSub5     string
	OrigOffer   string
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
	Referer     string
	Password    string
}

// FromValues builds a request from flat wire-name values.
func FromValues(v map[string]string) SubmitLeadRequest {
	get := func(keys ...string) string {
		for _, k := range keys {
			if s := strings.TrimSpace(v[k]); s != "" {
				return s
			}
		}
		return ""
	}

	return SubmitLeadRequest{
		BrandID:     get("brand_id", "brandId", "brand"),
		FirstName:   get("first_name"),
		LastName:    get("last_name"),
		Email:       get("email"),
		PhoneCC:     get("phonecc"),
		Phone:       get("phone"),
		Country:     get("country"),
		AffID:       get("aff_id"),
		OfferID:     get("offer_id"),
		AffSub:      get("aff_sub"),
		AffSub2:     get("aff_sub2"),
		AffSub3:     get("aff_sub3"),
		AffSub4:     get("aff_sub4"),
		AffSub5:     get("aff_sub5"),
		OrigOffer:   get("orig_offer"),
		UTMSource:   get("utm_source"),
		UTMMedium:   get("utm_medium"),
		UTMCampaign: get("utm_campaign"),
		Referer:     get("referer"),
		Password:    get("password"),
	}
}

// Field returns a submitted value by wire name, used for brand-required checks.
func (r SubmitLeadRequest) Field(name string) string {
	switch name {
	case "brand_id":
		return r.BrandID
	case "first_name":
		return r.FirstName
	case "last_name":
		return r.LastName
	case "email":
		return r.Email
	case "phonecc":
		return r.PhoneCC
	case "phone":
		return r.Phone
	case "country":
		return r.Country
	case "aff_id":
		return r.AffID
	case "offer_id":
		return r.OfferID
	case "aff_sub":
		return r.AffSub
	case "aff_sub2":
		return r.AffSub2
	case "aff_sub3":
		return r.AffSub3
	case "aff_sub4":
		return r.AffSub4
	case "aff_sub5":
		return r.AffSub5
	case "orig_offer":
		return r.OrigOffer
	case "utm_source":
		return r.UTMSource
	case "utm_medium":
		return r.UTMMedium
	case "utm_campaign":
		return r.UTMCampaign
	case "referer":
		return r.Referer
	case "password":
		return r.Password
	}
	return ""
}

// RequestMeta carries what the transport layer knows about the caller.
type RequestMeta struct {
	ClientIP string
	Referer  string
}

type SubmitLeadResponse struct {
	LeadID int64         `json:"leadId"`
	Status domain.Status `json:"status"`
	Brand  string        `json:"brand"`
}

// ValidationDetails lists rejected fields by wire name.
type ValidationDetails struct {
	Missing []string `json:"missing"`
	Invalid []string `json:"invalid"`
}

// Empty reports whether nothing was rejected.
func (d ValidationDetails) Empty() bool {
	return len(d.Missing) == 0 && len(d.Invalid) == 0
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Error  string `json:"error" validate:"max=2000"`
}

type ListLeadsResponse struct {
	Leads  []domain.Lead `json:"leads"`
	Count  int           `json:"count"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

type DeliveryAttemptsResponse struct {
	LeadID   int64                    `json:"leadId"`
	Attempts []domain.DeliveryAttempt `json:"attempts"`
}

type RedispatchResponse struct {
	LeadID int64         `json:"leadId"`
	Status domain.Status `json:"status"`
}
