package httpkit

import (
	"context"
	"errors"
	"net/http"

	"hcp_job_processor/platform/apperr"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// Error sends an error response with the given status code and message.
func Error(c *gin.Context, status int, message string, details interface{}) {
	c.JSON(status, ErrorResponse{Error: message, Details: details})
}

// OK sends a 200 OK response with the given payload.
func OK(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusOK, payload)
}

// HandleError writes err as a response and reports whether it did.
// An *apperr.Error anywhere in the chain decides the status; a timed-out
// store call is a 504; anything else is a 500 with a generic message.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	var domainErr *apperr.Error
	switch {
	case errors.As(err, &domainErr):
		Error(c, domainErr.HTTPStatus(), domainErr.Error(), domainErr.Details)
	case errors.Is(err, context.DeadlineExceeded):
		Error(c, http.StatusGatewayTimeout, "upstream timeout", nil)
	default:
		Error(c, http.StatusInternalServerError, "internal error", nil)
	}
	return true
}
