package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"leadcrm_backend/internal/brands"
	"leadcrm_backend/internal/dispatch"
	"leadcrm_backend/internal/leads/domain"
	"leadcrm_backend/internal/leads/repository"
	"leadcrm_backend/internal/leads/service"
	"leadcrm_backend/internal/leads/transport"
	"leadcrm_backend/internal/queue/memory"
	"leadcrm_backend/platform/logger"
	"leadcrm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct{}

func (testConfig) GetDuplicateWindow() time.Duration   { return 0 }
func (testConfig) GetLandingDomain() string            { return "" }
func (testConfig) GetDispatchMaxAttempts() int         { return 3 }
func (testConfig) GetDispatchRetryBase() time.Duration { return time.Second }
func (testConfig) GetDispatchTimeout() time.Duration   { return time.Second }
func (testConfig) GetStaleQueuedAfter() time.Duration  { return 10 * time.Minute }
func (testConfig) GetSweepInterval() time.Duration     { return time.Minute }

type stack struct {
	engine *gin.Engine
	queue  *memory.Queue
	store  *repository.MemoryStore
}

func newStack(t *testing.T) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.Nop()
	val := validator.New()
	store := repository.NewMemoryStore()
	registry := brands.NewDefaultRegistry()
	q := memory.New(time.Second, log)
	scheduler := dispatch.NewScheduler(q)

	d := dispatch.New(store, registry, scheduler, dispatch.NewTrackerClient(nil), nil, testConfig{}, log)
	d.Register(q)

	h := New(service.New(store, registry, scheduler, nil, val, testConfig{}, log), val)
	engine := gin.New()
	api := engine.Group("/api")
	h.RegisterRoutes(api.Group("/leads"), nil)
	api.GET("/stats", h.Stats)

	return &stack{engine: engine, queue: q, store: store}
}

func (s *stack) do(method, path, contentType, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	s.engine.ServeHTTP(w, req)
	return w
}

const exampleLead = `{"brand_id":"1000","first_name":"A","last_name":"B","email":"a@b.com","phonecc":"+1","phone":"5551234567","country":"US"}`

func TestSubmitExampleLeadEndsSent(t *testing.T) {
	s := newStack(t)

	w := s.do(http.MethodPost, "/api/leads", "application/json", exampleLead)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp transport.SubmitLeadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Greater(t, resp.LeadID, int64(0))
	assert.Equal(t, domain.StatusQueued, resp.Status)
	assert.Equal(t, "1000", resp.Brand)

	assert.Equal(t, 1, s.queue.RunDue(context.Background()))

	w = s.do(http.MethodGet, "/api/leads/1", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var lead domain.Lead
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lead))
	assert.Equal(t, domain.StatusSent, lead.Status)
	assert.NotNil(t, lead.SentAt)

	w = s.do(http.MethodGet, "/api/leads/1/logs", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var logs transport.DeliveryAttemptsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &logs))
	require.Len(t, logs.Attempts, 1)
	assert.Equal(t, domain.OutcomeSent, logs.Attempts[0].Outcome)
}

func TestSubmitAcceptsFormEncodingAndNumericPhone(t *testing.T) {
	s := newStack(t)

	form := url.Values{
		"brand_id":   {"1000"},
		"first_name": {"A"},
		"last_name":  {"B"},
		"email":      {"a@b.com"},
		"phonecc":    {"+44"},
		"phone":      {"2079460958"},
		"country":    {"gb"},
	}
	w := s.do(http.MethodPost, "/api/leads", "application/x-www-form-urlencoded", form.Encode())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/leads", "application/json",
		`{"brand_id":1000,"first_name":"C","last_name":"D","email":"c@d.com","phonecc":"+1","phone":5551234567,"country":"US"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestSubmitValidationFailureShape(t *testing.T) {
	s := newStack(t)

	w := s.do(http.MethodPost, "/api/leads", "application/json", `{"brand_id":"1000","first_name":"A","email":"bad","phonecc":"+1","phone":"5551234567","country":"US"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"validation failed","details":{"missing":["last_name"],"invalid":["email"]}}`, w.Body.String())

	w = s.do(http.MethodPost, "/api/leads", "application/json", `{"brand_id":"404","first_name":"A"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown brand")

	w = s.do(http.MethodPost, "/api/leads", "application/json", `{"brand_id":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, 0, s.queue.Len())
}

func TestListStatusAndStats(t *testing.T) {
	s := newStack(t)

	for i := 0; i < 3; i++ {
		w := s.do(http.MethodPost, "/api/leads", "application/json", exampleLead)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := s.do(http.MethodGet, "/api/leads?status=queued&limit=2", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list transport.ListLeadsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, 2, list.Limit)
	assert.Equal(t, int64(3), list.Leads[0].ID)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/leads?status=archived", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/leads?limit=abc", "", "").Code)

	w = s.do(http.MethodPatch, "/api/leads/1/status", "application/json", `{"status":"converted"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPatch, "/api/leads/1/status", "application/json", `{"status":"sent"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/stats", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats domain.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[domain.StatusSent])
	assert.Equal(t, 2, stats.ByStatus[domain.StatusQueued])
}

func TestRedispatchAndDelete(t *testing.T) {
	s := newStack(t)

	w := s.do(http.MethodPost, "/api/leads", "application/json", exampleLead)
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(http.MethodPost, "/api/leads/1/dispatch", "", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 2, s.queue.Len())

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/leads/2", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/leads/abc", "", "").Code)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/api/leads/1", "", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, "/api/leads/1", "", "").Code)

	// Queued tasks for a deleted lead are dropped quietly.
	assert.Equal(t, 2, s.queue.RunDue(context.Background()))
}
