package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	alertdomain "github.com/beaconly/beacon/internal/alert/domain"
	"github.com/beaconly/beacon/internal/oauth"
	"github.com/beaconly/beacon/internal/provider"
	servicedomain "github.com/beaconly/beacon/internal/service/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var ErrInvalidRequest = errors.New("invalid_request")

// ErrorHandlingMiddleware converts domain errors collected on the gin
// context into JSON error responses after the handler chain runs.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, servicedomain.ErrUnauthenticated),
		errors.Is(err, alertdomain.ErrUnauthenticated):
		return http.StatusUnauthorized, errorPayload{Type: "unauthorized", Message: "authentication required"}

	case errors.Is(err, servicedomain.ErrNotFound),
		errors.Is(err, alertdomain.ErrNotFound),
		errors.Is(err, provider.ErrUnknownProvider):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: "resource not found"}

	case errors.Is(err, servicedomain.ErrInvalidCredentials):
		return http.StatusUnprocessableEntity, errorPayload{Type: "invalid_credentials", Message: "credential validation failed"}

	case errors.Is(err, servicedomain.ErrInvalidProvider),
		errors.Is(err, oauth.ErrUnsupportedProvider):
		return http.StatusBadRequest, errorPayload{Type: "invalid_provider", Message: "unknown provider"}

	case errors.Is(err, servicedomain.ErrInvalidID),
		errors.Is(err, alertdomain.ErrInvalidID),
		errors.Is(err, alertdomain.ErrInvalidCondition),
		errors.Is(err, alertdomain.ErrInvalidThreshold),
		errors.Is(err, alertdomain.ErrInvalidCollector),
		errors.Is(err, oauth.ErrInvalidState),
		errors.Is(err, oauth.ErrExpiredState),
		errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{Type: "invalid_request", Message: err.Error()}

	case errors.Is(err, oauth.ErrExchangeFailed):
		return http.StatusBadGateway, errorPayload{Type: "exchange_failed", Message: "provider token exchange failed"}

	default:
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
	}
}
