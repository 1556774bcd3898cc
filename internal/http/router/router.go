// Package router assembles the gin engine from the App and its modules.
package router

import (
	"context"
	"net/http"
	"time"

	apphttp "orcamentos_backend/internal/http"
	"orcamentos_backend/platform/httpkit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const healthTimeout = 2 * time.Second

// New builds the gin engine with the shared middleware stack and mounts
// every module. Every response, including routing failures, uses the
// { success, message, data? } envelope.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	engine.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		app.Logger.WithContext(c.Request.Context()).Error("panic recovered",
			"path", c.Request.URL.Path,
			"panic", recovered,
		)
		httpkit.Abort(c, http.StatusInternalServerError, "internal error")
	}))
	engine.Use(httpkit.RequestID())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(cors.New(corsConfig(app.Config)))

	if rps := app.Config.GetRateLimitRPS(); rps > 0 {
		limiter := httpkit.NewIPRateLimiter(rate.Limit(rps), app.Config.GetRateLimitBurst(), app.Logger)
		engine.Use(limiter.RateLimit())
	}

	engine.NoRoute(func(c *gin.Context) {
		httpkit.Abort(c, http.StatusNotFound, "route not found")
	})
	engine.NoMethod(func(c *gin.Context) {
		httpkit.Abort(c, http.StatusMethodNotAllowed, "method not allowed")
	})

	engine.GET("/api/health", healthHandler(app.Health))

	v1 := engine.Group("/api/v1")
	protected := v1.Group("")
	protected.Use(httpkit.AuthRequired(app.Config))
	tenant := protected.Group("")
	tenant.Use(httpkit.TenantRequired())

	ctx := &apphttp.RouterContext{
		Engine:    engine,
		V1:        v1,
		Protected: protected,
		Tenant:    tenant,
		Config:    app.Config,
	}
	for _, module := range app.Modules {
		module.RegisterRoutes(ctx)
		app.Logger.Debug("module routes registered", "module", module.Name())
	}

	return engine
}

func corsConfig(cfg apphttp.RouterConfig) cors.Config {
	corsCfg := cors.DefaultConfig()
	if cfg.GetCORSAllowAll() {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.GetCORSOrigins()
	}
	corsCfg.AllowCredentials = cfg.GetCORSAllowCreds()
	corsCfg.AddAllowHeaders("Authorization", httpkit.HeaderCompanyID, httpkit.HeaderRequestID)
	corsCfg.AddExposeHeaders(httpkit.HeaderRequestID)
	return corsCfg
}

func healthHandler(health apphttp.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
			defer cancel()
			if err := health.Ping(ctx); err != nil {
				httpkit.Error(c, http.StatusServiceUnavailable, "database unavailable", nil)
				return
			}
		}
		httpkit.OK(c, "ok", gin.H{"status": "ok"})
	}
}
