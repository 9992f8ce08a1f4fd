package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"leadcrm_backend/internal/leads/domain"
	"leadcrm_backend/internal/leads/repository"
	"leadcrm_backend/internal/leads/service"
	"leadcrm_backend/internal/leads/transport"
	"leadcrm_backend/platform/httpkit"
	"leadcrm_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	maxSubmissionBytes  = 64 << 10
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes mounts lead routes on the /api/leads group. intake guards
// the public submission endpoint.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, intake gin.HandlerFunc) {
	if intake != nil {
		rg.POST("", intake, h.Submit)
	} else {
		rg.POST("", h.Submit)
	}
	rg.GET("", h.List)
	rg.GET("/export", h.ExportCSV)
	rg.GET("/:id", h.GetByID)
	rg.PATCH("/:id/status", h.UpdateStatus)
	rg.POST("/:id/dispatch", h.Redispatch)
	rg.GET("/:id/logs", h.ListAttempts)
	rg.DELETE("/:id", h.Delete)
}

func (h *Handler) Submit(c *gin.Context) {
	values, err := submissionValues(c)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	req := transport.FromValues(values)
	lead, err := h.svc.Submit(c.Request.Context(), req, transport.RequestMeta{
		ClientIP: c.ClientIP(),
		Referer:  c.Request.Referer(),
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.SubmitLeadResponse{
		LeadID: lead.ID,
		Status: lead.Status,
		Brand:  lead.BrandID,
	})
}

// submissionValues flattens a JSON object or a form body into wire-name
// strings. JSON numbers and booleans are accepted and stringified.
func submissionValues(c *gin.Context) (map[string]string, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSubmissionBytes)

	if strings.HasPrefix(c.ContentType(), gin.MIMEJSON) {
		var raw map[string]any
		dec := json.NewDecoder(c.Request.Body)
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		out := make(map[string]string, len(raw))
		for k, v := range raw {
			switch val := v.(type) {
			case nil:
			case string:
				out[k] = val
			case json.Number, bool:
				out[k] = fmt.Sprint(val)
			default:
				return nil, fmt.Errorf("field %q must be a scalar", k)
			}
		}
		return out, nil
	}

	if err := c.Request.ParseForm(); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(c.Request.PostForm))
	for k := range c.Request.PostForm {
		out[k] = c.Request.PostForm.Get(k)
	}
	return out, nil
}

func (h *Handler) List(c *gin.Context) {
	params, ok := listParams(c)
	if !ok {
		return
	}

	leads, used, err := h.svc.List(c.Request.Context(), params)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ListLeadsResponse{
		Leads:  leads,
		Count:  len(leads),
		Limit:  used.Limit,
		Offset: used.Offset,
	})
}

// listParams reads the status, brand_id, limit and offset filters shared by
// the list and export endpoints.
func listParams(c *gin.Context) (repository.ListParams, bool) {
	params := repository.ListParams{BrandID: c.Query("brand_id")}

	if raw := c.Query("status"); raw != "" {
		st, ok := domain.ParseStatus(raw)
		if !ok {
			invalidQuery(c, "status")
			return params, false
		}
		params.Status = st
	}

	var err error
	if params.Limit, err = queryInt(c, "limit"); err != nil {
		invalidQuery(c, "limit")
		return params, false
	}
	if params.Offset, err = queryInt(c, "offset"); err != nil {
		invalidQuery(c, "offset")
		return params, false
	}
	return params, true
}

func invalidQuery(c *gin.Context, name string) {
	httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, transport.ValidationDetails{Missing: []string{}, Invalid: []string{name}})
}

func (h *Handler) GetByID(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}

	lead, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, lead)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}

	var req transport.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.svc.UpdateStatus(c.Request.Context(), id, req.Status, req.Error)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, lead)
}

func (h *Handler) Redispatch(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}

	lead, err := h.svc.Redispatch(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusAccepted, transport.RedispatchResponse{LeadID: lead.ID, Status: lead.Status})
}

func (h *Handler) ListAttempts(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}

	attempts, err := h.svc.Attempts(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.DeliveryAttemptsResponse{LeadID: id, Attempts: attempts})
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}

	if httpkit.HandleError(c, h.svc.Delete(c.Request.Context(), id)) {
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, stats)
}

func leadID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
