package http

import (
	"context"

	"orcamentos_backend/internal/events"
	"orcamentos_backend/platform/config"
	"orcamentos_backend/platform/logger"
)

// RouterConfig is the slice of configuration the router reads.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker backs GET /api/health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App is assembled by cmd/api and consumed by router.New.
type App struct {
	Config RouterConfig
	Logger *logger.Logger
	// Health is nil when quotes are kept in memory.
	Health   HealthChecker
	EventBus events.Bus
	Modules  []Module
}
