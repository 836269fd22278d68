package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"hcp_job_processor/internal/jobs"
	"hcp_job_processor/platform/httpkit"
	"hcp_job_processor/platform/logger"
	"hcp_job_processor/platform/sanitize"
	"hcp_job_processor/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	errNoCompanyContext = "no company context"
	errInvalidRequest   = "invalid request body"
	errValidation       = "validation error"
	webhookSource       = "housecall_pro"
	maxBodyBytes        = 1 << 20
)

// KeyStore manages webhook API keys.
type KeyStore interface {
	KeyResolver
	Create(ctx context.Context, companyID uuid.UUID, name, keyHash, keyPrefix string) (APIKey, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]APIKey, error)
	Revoke(ctx context.Context, keyID, companyID uuid.UUID) error
}

// Handler handles webhook HTTP requests.
type Handler struct {
	service *Service
	keys    KeyStore
	val     *validator.Validator
	log     *logger.Logger
}

// NewHandler creates a new webhook handler.
func NewHandler(service *Service, keys KeyStore, val *validator.Validator, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{service: service, keys: keys, val: val, log: log}
}

// ---- Job events (public, API-key authenticated) ----

// HandleJobEvent accepts a Housecall Pro job webhook.
// POST /api/v1/webhook/hcp
func (h *Handler) HandleJobEvent(c *gin.Context) {
	companyID, ok := h.getCompanyID(c)
	if !ok {
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpkit.Error(c, http.StatusRequestEntityTooLarge, "request body too large", nil)
			return
		}
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, nil)
		return
	}

	var event JobEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(event); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errValidation, validator.Describe(err))
		return
	}
	if _, err := jobs.ParseEventKind(event.Event); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "unsupported event type", event.Event)
		return
	}

	ctx := c.Request.Context()
	h.log.WithContext(ctx).WebhookReceived(webhookSource, event.Event, event.Job.ID, companyID.String())

	company := jobs.Company{ID: companyID, Timezone: c.GetString(contextTimezoneKey)}
	receipt, err := h.service.Receive(ctx, raw, event, company)
	if err != nil {
		h.log.WithContext(ctx).Warn("job event failed", "job_id", event.Job.ID, "error", err)
		httpkit.HandleError(c, err)
		return
	}

	status := http.StatusOK
	if receipt.Status == StatusQueued {
		status = http.StatusAccepted
	}
	c.JSON(status, receipt)
}

// ---- Admin (JWT authenticated) ----

// HandleGetJob returns the record holding an HCP job id.
// GET /api/v1/admin/jobs/:hcpId
func (h *Handler) HandleGetJob(c *gin.Context) {
	companyID, ok := h.getCompanyID(c)
	if !ok {
		return
	}

	record, err := h.service.Lookup(c.Request.Context(), companyID, c.Param("hcpId"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, record)
}

// CreateAPIKeyRequest is the request body for creating a new API key.
type CreateAPIKeyRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// APIKeyResponse is returned when listing or creating API keys.
type APIKeyResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	KeyPrefix string    `json:"keyPrefix"`
	IsActive  bool      `json:"isActive"`
	CreatedAt string    `json:"createdAt"`
}

// CreateAPIKeyResponse includes the plaintext key (shown only once).
type CreateAPIKeyResponse struct {
	APIKeyResponse
	Key string `json:"key"`
}

// HandleCreateAPIKey creates a new webhook API key.
// POST /api/v1/admin/webhook/keys
func (h *Handler) HandleCreateAPIKey(c *gin.Context) {
	var req CreateAPIKeyRequest
	if !h.bindAndValidate(c, &req) {
		return
	}
	name := sanitize.Label(req.Name, 100)
	if name == "" {
		httpkit.Error(c, http.StatusBadRequest, errValidation, map[string]string{"CreateAPIKeyRequest.Name": "required"})
		return
	}

	companyID, ok := h.getCompanyID(c)
	if !ok {
		return
	}

	plaintext, hash, prefix, err := GenerateAPIKey()
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to generate API key", nil)
		return
	}

	key, err := h.keys.Create(c.Request.Context(), companyID, name, hash, prefix)
	if httpkit.HandleError(c, err) {
		return
	}

	c.JSON(http.StatusCreated, CreateAPIKeyResponse{
		APIKeyResponse: toAPIKeyResponse(key),
		Key:            plaintext,
	})
}

// HandleListAPIKeys lists all webhook API keys for the company.
// GET /api/v1/admin/webhook/keys
func (h *Handler) HandleListAPIKeys(c *gin.Context) {
	companyID, ok := h.getCompanyID(c)
	if !ok {
		return
	}

	keys, err := h.keys.ListByCompany(c.Request.Context(), companyID)
	if httpkit.HandleError(c, err) {
		return
	}

	result := make([]APIKeyResponse, len(keys))
	for i, k := range keys {
		result[i] = toAPIKeyResponse(k)
	}

	httpkit.OK(c, result)
}

// HandleRevokeAPIKey deactivates a webhook API key.
// DELETE /api/v1/admin/webhook/keys/:keyId
func (h *Handler) HandleRevokeAPIKey(c *gin.Context) {
	companyID, ok := h.getCompanyID(c)
	if !ok {
		return
	}

	keyID, err := uuid.Parse(c.Param("keyId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid key ID", nil)
		return
	}

	if err := h.keys.Revoke(c.Request.Context(), keyID, companyID); err != nil {
		if errors.Is(err, ErrAPIKeyNotFound) {
			httpkit.Error(c, http.StatusNotFound, "API key not found", nil)
			return
		}
		httpkit.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "API key revoked"})
}

func toAPIKeyResponse(key APIKey) APIKeyResponse {
	return APIKeyResponse{
		ID:        key.ID,
		Name:      key.Name,
		KeyPrefix: key.KeyPrefix,
		IsActive:  key.IsActive,
		CreatedAt: key.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ---- Helpers ----

func (h *Handler) getCompanyID(c *gin.Context) (uuid.UUID, bool) {
	companyID, ok := httpkit.CompanyID(c)
	if !ok {
		httpkit.Error(c, http.StatusUnauthorized, errNoCompanyContext, nil)
		return uuid.Nil, false
	}
	return companyID, true
}

func (h *Handler) bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, err.Error())
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errValidation, validator.Describe(err))
		return false
	}
	return true
}
