// Package quotes provides the quotes (orçamentos) domain module.
package quotes

import (
	"orcamentos_backend/internal/events"
	apphttp "orcamentos_backend/internal/http"
	"orcamentos_backend/internal/quotes/handler"
	"orcamentos_backend/internal/quotes/service"
	"orcamentos_backend/platform/idempotency"
	"orcamentos_backend/platform/logger"
	"orcamentos_backend/platform/validator"
)

// Module represents the quotes domain module
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates a new quotes module with all dependencies wired.
// store and refs are either the Postgres repository pair or a single
// in-memory store.
func NewModule(store service.Store, refs service.References, guard idempotency.Guard, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(store, refs, guard, bus, log)
	return &Module{
		handler: handler.New(svc, val, log),
		service: svc,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "quotes"
}

// Service returns the service layer for external use
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts /api/v1/quotes on the tenant-scoped group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Tenant.Group("/quotes"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
