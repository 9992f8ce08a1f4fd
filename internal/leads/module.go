// Package leads provides the lead bounded context module: intake, listing,
// administration and the delivery log.
package leads

import (
	apphttp "leadcrm_backend/internal/http"
	"leadcrm_backend/internal/leads/handler"
	"leadcrm_backend/internal/leads/repository"
	"leadcrm_backend/internal/leads/service"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/events"
	"leadcrm_backend/platform/logger"
	"leadcrm_backend/platform/validator"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule creates the leads module with all its dependencies.
func NewModule(store repository.Store, registry service.BrandRegistry, scheduler service.DispatchScheduler, bus events.Bus, val *validator.Validator, cfg config.IntakeConfig, log *logger.Logger) *Module {
	svc := service.New(store, registry, scheduler, bus, val, cfg, log)
	return &Module{handler: handler.New(svc, val)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// RegisterRoutes mounts the lead routes under /api.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.API.Group("/leads"), ctx.IntakeRateLimit)
	ctx.API.GET("/stats", m.handler.Stats)
}

var _ apphttp.Module = (*Module)(nil)
