package httpkit

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leadcrm_backend/platform/apperr"
	"leadcrm_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "203.0.113.7:4321"
	r.ServeHTTP(w, req)
	return w
}

func TestHandleErrorMapsKinds(t *testing.T) {
	r := gin.New()
	r.GET("/notfound", func(c *gin.Context) { HandleError(c, apperr.NotFound("lead not found")) })
	r.GET("/conflict", func(c *gin.Context) { HandleError(c, apperr.Conflict("duplicate lead")) })
	r.GET("/validation", func(c *gin.Context) {
		HandleError(c, apperr.Validation("validation failed").WithDetails(map[string][]string{"missing": {"email"}}))
	})
	r.GET("/internal", func(c *gin.Context) { HandleError(c, apperr.Internal("store down", errors.New("dial tcp"))) })
	r.GET("/untyped", func(c *gin.Context) { HandleError(c, errors.New("raw")) })

	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/notfound").Code)
	assert.Equal(t, http.StatusConflict, serve(r, http.MethodGet, "/conflict").Code)

	w := serve(r, http.MethodGet, "/validation")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"validation failed","details":{"missing":["email"]}}`, w.Body.String())

	w = serve(r, http.MethodGet, "/internal")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())

	assert.Equal(t, http.StatusInternalServerError, serve(r, http.MethodGet, "/untyped").Code)
}

func TestHandleErrorNil(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.False(t, HandleError(c, nil))
}

func TestRateLimitPerIP(t *testing.T) {
	limiter := NewWindowRateLimiter(time.Minute, 2, logger.Nop())
	r := gin.New()
	r.POST("/api/leads", limiter.RateLimit(), func(c *gin.Context) { c.Status(http.StatusCreated) })

	require.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/api/leads").Code)
	require.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/api/leads").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodPost, "/api/leads").Code)
}

func TestRequestIDEchoesHeader(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))

	w = serve(r, http.MethodGet, "/")
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
}
