package brands

import (
	"errors"
	"net/http"
	"time"

	"leadcrm_backend/platform/apperr"
	"leadcrm_backend/platform/httpkit"
	"leadcrm_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const msgInvalidRequest = "invalid request"

// PublicBrand is what landing pages see: no endpoint, no credentials.
type PublicBrand struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Description         string   `json:"description,omitempty"`
	RequiredFields      []string `json:"requiredFields"`
	CountryRestrictions []string `json:"countryRestrictions,omitempty"`
}

// UpsertBrandRequest is the management payload for PUT /api/brands/:id.
// AuthToken is write-only and never returned.
type UpsertBrandRequest struct {
	Name                string            `json:"name" validate:"required,max=200"`
	Description         string            `json:"description" validate:"max=1000"`
	Active              *bool             `json:"active"`
	Type                string            `json:"type" validate:"omitempty,oneof=mock api"`
	TrackerURL          string            `json:"trackerUrl" validate:"omitempty,url"`
	Method              string            `json:"method" validate:"omitempty,oneof=POST GET post get"`
	AffID               string            `json:"affId" validate:"max=64"`
	OfferID             string            `json:"offerId" validate:"max=64"`
	RequiredFields      []string          `json:"requiredFields"`
	AuthType            string            `json:"authType" validate:"omitempty,oneof=none bearer basic api_key_header apiKeyHeader"`
	AuthToken           *string           `json:"authToken"`
	APIKeyHeader        string            `json:"apiKeyHeader" validate:"max=100"`
	CountryRestrictions []string          `json:"countryRestrictions" validate:"dive,iso3166_1_alpha2"`
	FieldMapping        map[string]string `json:"fieldMapping"`
	TimeoutSeconds      int               `json:"timeoutSeconds" validate:"gte=0,lte=120"`
}

type Handler struct {
	registry *Registry
	val      *validator.Validator
}

func NewHandler(registry *Registry, val *validator.Validator) *Handler {
	return &Handler{registry: registry, val: val}
}

// ListPublic serves GET /brands.
func (h *Handler) ListPublic(c *gin.Context) {
	active := h.registry.ListActive()
	out := make([]PublicBrand, 0, len(active))
	for _, b := range active {
		out = append(out, PublicBrand{
			ID:                  b.ID,
			Name:                b.Name,
			Description:         b.Description,
			RequiredFields:      b.RequiredFields,
			CountryRestrictions: b.CountryRestrictions,
		})
	}
	httpkit.OK(c, gin.H{"brands": out})
}

func (h *Handler) List(c *gin.Context) {
	httpkit.OK(c, gin.H{"brands": h.registry.List()})
}

func (h *Handler) Get(c *gin.Context) {
	b, err := h.registry.Get(c.Param("id"))
	if httpkit.HandleError(c, mapError(err)) {
		return
	}
	httpkit.OK(c, b)
}

func (h *Handler) Upsert(c *gin.Context) {
	var req UpsertBrandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	id := c.Param("id")
	b, err := h.registry.Get(id)
	created := errors.Is(err, ErrNotFound)
	if err != nil && !created {
		httpkit.HandleError(c, mapError(err))
		return
	}
	if created {
		b = Brand{ID: id, Active: true}
	}

	b.Name = req.Name
	b.Description = req.Description
	if req.Active != nil {
		b.Active = *req.Active
	}
	b.Type = req.Type
	b.TrackerURL = req.TrackerURL
	b.Method = req.Method
	b.AffID = req.AffID
	b.OfferID = req.OfferID
	b.RequiredFields = req.RequiredFields
	switch {
	case req.AuthType != "":
		b.AuthType = req.AuthType
	case req.AuthToken != nil:
		// re-infer from the new credential
		b.AuthType = ""
	}
	if req.AuthToken != nil {
		b.AuthToken = *req.AuthToken
	}
	b.APIKeyHeader = req.APIKeyHeader
	b.CountryRestrictions = req.CountryRestrictions
	b.FieldMapping = req.FieldMapping
	b.Timeout = time.Duration(req.TimeoutSeconds) * time.Second

	if httpkit.HandleError(c, mapError(h.registry.Upsert(b))) {
		return
	}

	saved, err := h.registry.Get(id)
	if httpkit.HandleError(c, mapError(err)) {
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httpkit.JSON(c, status, saved)
}

// Toggle serves POST /brands/:id/toggle.
func (h *Handler) Toggle(c *gin.Context) {
	b, err := h.registry.Toggle(c.Param("id"))
	if httpkit.HandleError(c, mapError(err)) {
		return
	}
	httpkit.OK(c, gin.H{"id": b.ID, "active": b.Active})
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound("brand not found")
	case errors.Is(err, ErrInvalidID):
		return apperr.Validation("brand id is required")
	case errors.Is(err, ErrInvalidAuth), errors.Is(err, ErrInvalidRequiredField):
		return apperr.Validation(err.Error())
	default:
		return err
	}
}
