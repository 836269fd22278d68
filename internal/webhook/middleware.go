package webhook

import (
	"context"
	"errors"
	"net/http"

	"hcp_job_processor/platform/httpkit"
	"hcp_job_processor/platform/logger"

	"github.com/gin-gonic/gin"
)

const (
	apiKeyHeader           = "X-Webhook-API-Key"
	contextTimezoneKey     = "webhookTimezone"
	contextWebhookKeyIDKey = "webhookKeyID"
)

// KeyResolver resolves a hashed API key to its company.
type KeyResolver interface {
	GetByHash(ctx context.Context, keyHash string) (ResolvedKey, error)
}

// APIKeyAuthMiddleware validates the X-Webhook-API-Key header
// and sets the company context on the gin context.
func APIKeyAuthMiddleware(keys KeyResolver, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(apiKeyHeader)
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
			return
		}

		key, err := keys.GetByHash(c.Request.Context(), HashKey(apiKey))
		if err != nil {
			if !errors.Is(err, ErrAPIKeyNotFound) {
				log.DatabaseError("webhook key lookup", err)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			return
		}

		c.Set(httpkit.ContextCompanyIDKey, key.CompanyID)
		c.Set(contextTimezoneKey, key.Timezone)
		c.Set(contextWebhookKeyIDKey, key.ID)
		ctx := context.WithValue(c.Request.Context(), logger.CompanyIDKey, key.CompanyID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
