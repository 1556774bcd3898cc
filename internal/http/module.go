// Package http holds the pieces shared by the router and the domain modules.
package http

import (
	"orcamentos_backend/platform/config"

	"github.com/gin-gonic/gin"
)

// Module is a bounded context that mounts its own routes.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext hands modules the route groups built by the router.
type RouterContext struct {
	Engine *gin.Engine
	// V1 is /api/v1 without authentication.
	V1 *gin.RouterGroup
	// Protected requires a valid access token.
	Protected *gin.RouterGroup
	// Tenant requires a valid access token and an X-Empresa-ID header.
	Tenant *gin.RouterGroup
	Config config.JWTConfig
}
