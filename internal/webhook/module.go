// This file defines the module that encapsulates webhook setup and route registration.
package webhook

import (
	"hcp_job_processor/internal/adapters/storage"
	apphttp "hcp_job_processor/internal/http"
	"hcp_job_processor/internal/scheduler"
	"hcp_job_processor/platform/config"
	"hcp_job_processor/platform/httpkit"
	"hcp_job_processor/platform/logger"
	"hcp_job_processor/platform/validator"

	"golang.org/x/time/rate"
)

// Module is the webhook bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	keys    KeyStore
	limiter *httpkit.IPRateLimiter
	log     *logger.Logger
}

// NewModule creates and initializes the webhook module with all its dependencies.
func NewModule(keys KeyStore, processor JobProcessor, enqueuer scheduler.JobEventEnqueuer, archive storage.ObjectStore, archiveBucket string, cfg config.WebhookConfig, val *validator.Validator, log *logger.Logger) *Module {
	service := NewService(processor, enqueuer, archive, archiveBucket, log)
	handler := NewHandler(service, keys, val, log)

	perSecond := cfg.GetWebhookRatePerSecond()
	if perSecond <= 0 {
		perSecond = 20
	}
	burst := cfg.GetWebhookRateBurst()
	if burst < 1 {
		burst = 1
	}

	return &Module{
		handler: handler,
		keys:    keys,
		limiter: httpkit.NewIPRateLimiter(rate.Limit(perSecond), burst, log),
		log:     handler.log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts webhook routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Public webhook endpoint (API key auth, no JWT)
	webhookGroup := ctx.V1.Group("/webhook")
	webhookGroup.Use(m.limiter.RateLimit(), APIKeyAuthMiddleware(m.keys, m.log))
	webhookGroup.POST("/hcp", m.handler.HandleJobEvent)

	// Admin API key management (JWT auth + admin role)
	adminKeys := ctx.Admin.Group("/webhook/keys")
	adminKeys.POST("", m.handler.HandleCreateAPIKey)
	adminKeys.GET("", m.handler.HandleListAPIKeys)
	adminKeys.DELETE("/:keyId", m.handler.HandleRevokeAPIKey)

	ctx.Admin.GET("/jobs/:hcpId", m.handler.HandleGetJob)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
