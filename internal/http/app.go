// Package http holds the pieces shared by the router and the HTTP-facing
// modules: the composed App and the Module contract.
package http

import (
	"context"

	"hcp_job_processor/platform/config"
	"hcp_job_processor/platform/logger"

	"github.com/gin-gonic/gin"
)

// RouterConfig is the configuration the router reads.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker backs GET /api/health.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App is assembled by cmd/api and handed to router.New.
type App struct {
	Config  RouterConfig
	Logger  *logger.Logger
	Health  HealthChecker
	Modules []Module
}

// Module mounts one bounded context's routes.
type Module interface {
	Name() string
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext carries the route groups a module may mount on. Admin is
// already guarded by JWT auth and the admin role.
type RouterContext struct {
	Engine *gin.Engine
	V1     *gin.RouterGroup
	Admin  *gin.RouterGroup
	Config config.JWTConfig
}
