package brands

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"leadcrm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(r *Registry) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(r, validator.New())

	engine := gin.New()
	engine.GET("/brands", h.ListPublic)
	engine.POST("/brands/:id/toggle", h.Toggle)
	api := engine.Group("/api/brands")
	api.GET("", h.List)
	api.GET("/:id", h.Get)
	api.PUT("/:id", h.Upsert)
	return engine
}

func serve(e *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	e.ServeHTTP(w, req)
	return w
}

func TestPublicListHidesSecrets(t *testing.T) {
	r := NewDefaultRegistry()
	require.NoError(t, r.Upsert(Brand{ID: "2001", Name: "Acme", Active: true, TrackerURL: "https://t.example", AuthToken: "s3cret"}))
	e := newTestEngine(r)

	w := serve(e, http.MethodGet, "/brands", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "s3cret")
	assert.NotContains(t, w.Body.String(), "t.example")

	var resp struct {
		Brands []PublicBrand `json:"brands"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Brands, 2)

	w = serve(e, http.MethodGet, "/api/brands/2001", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "s3cret")
}

func TestUpsertCreatesThenUpdates(t *testing.T) {
	r := NewDefaultRegistry()
	e := newTestEngine(r)

	w := serve(e, http.MethodPut, "/api/brands/3001", `{"name":"New","trackerUrl":"https://t.example/leads","authToken":"tok","timeoutSeconds":4}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	b, err := r.Get("3001")
	require.NoError(t, err)
	assert.True(t, b.Active)
	assert.Equal(t, "tok", b.AuthToken)
	assert.Equal(t, TypeAPI, b.Type)

	w = serve(e, http.MethodPut, "/api/brands/3001", `{"name":"Renamed","trackerUrl":"https://t.example/leads","active":false}`)
	require.Equal(t, http.StatusOK, w.Code)

	b, err = r.Get("3001")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", b.Name)
	assert.False(t, b.Active)
	assert.Equal(t, "tok", b.AuthToken, "token kept when omitted")

	w = serve(e, http.MethodPut, "/api/brands/3001", `{"trackerUrl":"not a url"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestToggleEndpoint(t *testing.T) {
	r := NewDefaultRegistry()
	e := newTestEngine(r)

	w := serve(e, http.MethodPost, "/brands/1000/toggle", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"1000","active":false}`, w.Body.String())

	assert.Equal(t, http.StatusNotFound, serve(e, http.MethodPost, "/brands/nope/toggle", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(e, http.MethodGet, "/api/brands/nope", "").Code)
}

func TestUpsertValidatesAuthAndRequiredFields(t *testing.T) {
	r := NewDefaultRegistry()
	e := newTestEngine(r)

	w := serve(e, http.MethodPut, "/api/brands/3002", `{"name":"Typo","requiredFields":["first_name","emial"]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "emial")
	_, err := r.Get("3002")
	assert.ErrorIs(t, err, ErrNotFound)

	w = serve(e, http.MethodPut, "/api/brands/3003", `{"name":"Keyed","trackerUrl":"https://t.example","authType":"api_key_header","authToken":"k"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(e, http.MethodPut, "/api/brands/3004", `{"name":"Basic","trackerUrl":"https://t.example","authType":"basic","authToken":"user:pass"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "user:pass")

	b, err := r.Get("3004")
	require.NoError(t, err)
	assert.Equal(t, AuthBasic, b.AuthType)
	assert.True(t, b.HasAuth())
}
