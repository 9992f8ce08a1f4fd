package brands

import (
	apphttp "leadcrm_backend/internal/http"
	"leadcrm_backend/platform/validator"
)

// Module is the brands bounded context module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates the brands module around an injected registry.
func NewModule(registry *Registry, val *validator.Validator) *Module {
	return &Module{handler: NewHandler(registry, val)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "brands"
}

// RegisterRoutes mounts the public brand list and the management routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Public.GET("/brands", m.handler.ListPublic)
	ctx.Public.POST("/brands/:id/toggle", m.handler.Toggle)

	api := ctx.API.Group("/brands")
	api.GET("", m.handler.List)
	api.GET("/:id", m.handler.Get)
	api.PUT("/:id", m.handler.Upsert)
}

var _ apphttp.Module = (*Module)(nil)
