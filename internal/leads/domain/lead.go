// Package domain holds the lead aggregate and its status rules.
package domain

import (
	"strconv"
	"time"
)

// Lead is one captured form submission.
type Lead struct {
	ID           int64      `json:"id"`
	BrandID      string     `json:"brand_id"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Email        string     `json:"email"`
	PhoneCC      string     `json:"phonecc"`
	Phone        string     `json:"phone"`
	PhoneE164    string     `json:"phone_e164,omitempty"`
	Country      string     `json:"country"`
	AffID        string     `json:"aff_id"`
	OfferID      string     `json:"offer_id"`
	AffSub       string     `json:"aff_sub,omitempty"`
	AffSub2      string     `json:"aff_sub2,omitempty"`
	AffSub3      string     `json:"aff_sub3,omitempty"`
	AffSub4      string     `json:"aff_sub4,omitempty"`
	AffSub5      string     `json:"aff_sub5,omitempty"`
	OrigOffer    string     `json:"orig_offer,omitempty"`
	UTMSource    string     `json:"utm_source,omitempty"`
	UTMMedium    string     `json:"utm_medium,omitempty"`
	UTMCampaign  string     `json:"utm_campaign,omitempty"`
	UserIP       string     `json:"user_ip,omitempty"`
	Referer      string     `json:"referer,omitempty"`
	PasswordHash string     `json:"-"`
	Status       Status     `json:"status"`
	Attempts     int        `json:"attempts"`
	LastError    string     `json:"last_error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	ConvertedAt  *time.Time `json:"converted_at,omitempty"`
	// NextAttemptAt is set while a queued lead waits out a retry backoff.
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
}

// DueAt is when a queued lead is expected to be picked up: the scheduled
// retry time if one is pending, otherwise its last update.
func (l Lead) DueAt() time.Time {
	if l.NextAttemptAt != nil && l.NextAttemptAt.After(l.UpdatedAt) {
		return *l.NextAttemptAt
	}
	return l.UpdatedAt
}

// Field returns a submitted field by its wire name. Unknown names yield "".
func (l Lead) Field(name string) string {
	switch name {
	case "brand_id":
		return l.BrandID
	case "first_name":
		return l.FirstName
	case "last_name":
		return l.LastName
	case "email":
		return l.Email
	case "phonecc":
		return l.PhoneCC
	case "phone":
		return l.Phone
	case "phone_e164":
		return l.PhoneE164
	case "country":
		return l.Country
	case "aff_id":
		return l.AffID
	case "offer_id":
		return l.OfferID
	case "aff_sub":
		return l.AffSub
	case "aff_sub2":
		return l.AffSub2
	case "aff_sub3":
		return l.AffSub3
	case "aff_sub4":
		return l.AffSub4
	case "aff_sub5":
		return l.AffSub5
	case "orig_offer":
		return l.OrigOffer
	case "utm_source":
		return l.UTMSource
	case "utm_medium":
		return l.UTMMedium
	case "utm_campaign":
		return l.UTMCampaign
	case "user_ip":
		return l.UserIP
	case "referer":
		return l.Referer
	case "lead_id":
		if l.ID == 0 {
			return ""
		}
		return strconv.FormatInt(l.ID, 10)
	}
	return ""
}

// PayloadFields lists the lead fields forwarded to a tracker, in order.
var PayloadFields = []string{
	"first_name", "last_name", "email", "phonecc", "phone", "country",
	"aff_id", "offer_id", "aff_sub", "aff_sub2", "aff_sub3", "aff_sub4", "aff_sub5",
	"orig_offer", "utm_source", "utm_medium", "utm_campaign", "user_ip", "referer",
}

// Fields returns the non-empty payload fields keyed by wire name.
func (l Lead) Fields() map[string]string {
	out := make(map[string]string, len(PayloadFields))
	for _, name := range PayloadFields {
		if v := l.Field(name); v != "" {
			out[name] = v
		}
	}
	return out
}

// Attempt outcomes.
const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
)

// DeliveryAttempt records one try at handing a lead to a brand.
type DeliveryAttempt struct {
	ID            int64     `json:"id"`
	LeadID        int64     `json:"lead_id"`
	BrandID       string    `json:"brand_id"`
	AttemptNumber int       `json:"attempt_number"`
	Outcome       string    `json:"outcome"`
	HTTPStatus    *int      `json:"http_status,omitempty"`
	DurationMs    int64     `json:"duration_ms"`
	ResponseBody  string    `json:"response_body,omitempty"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// MaxResponseBody caps stored tracker responses.
const MaxResponseBody = 5000

// Stats summarises the lead table.
type Stats struct {
	Total        int            `json:"total"`
	ByStatus     map[Status]int `json:"by_status"`
	ActiveBrands int            `json:"active_brands"`
}
