package handler

import (
	"encoding/csv"
	"strconv"
	"time"

	"leadcrm_backend/internal/leads/domain"
	"leadcrm_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

var exportHeaders = []string{
	"id", "brand_id", "status", "attempts",
	"first_name", "last_name", "email", "phone_e164", "country",
	"aff_id", "offer_id", "aff_sub", "utm_source", "utm_medium", "utm_campaign",
	"last_error", "created_at", "sent_at", "converted_at",
}

// ExportCSV streams the filtered lead listing as CSV. It takes the same
// query parameters as List.
func (h *Handler) ExportCSV(c *gin.Context) {
	params, ok := listParams(c)
	if !ok {
		return
	}

	leads, _, err := h.svc.List(c.Request.Context(), params)
	if httpkit.HandleError(c, err) {
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=leads.csv")

	writer := csv.NewWriter(c.Writer)
	if err := writer.Write(exportHeaders); err != nil {
		return
	}
	for _, lead := range leads {
		if err := writer.Write(exportRow(lead)); err != nil {
			return
		}
	}
	writer.Flush()
}

func exportRow(l domain.Lead) []string {
	return []string{
		strconv.FormatInt(l.ID, 10),
		l.BrandID,
		string(l.Status),
		strconv.Itoa(l.Attempts),
		l.FirstName,
		l.LastName,
		l.Email,
		l.PhoneE164,
		l.Country,
		l.AffID,
		l.OfferID,
		l.AffSub,
		l.UTMSource,
		l.UTMMedium,
		l.UTMCampaign,
		l.LastError,
		formatTime(&l.CreatedAt),
		formatTime(l.SentAt),
		formatTime(l.ConvertedAt),
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
