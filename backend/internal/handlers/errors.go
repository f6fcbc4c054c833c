package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"task-tracker/backend/internal/policy"
	"task-tracker/backend/internal/repositories"
	"task-tracker/backend/internal/services"
)

// handleServiceError maps service errors onto HTTP responses. Unexpected
// errors are logged and answered with a generic message.
func handleServiceError(c *gin.Context, err error, resource string) {
	var ve *policy.ValidationError
	var fe *policy.ForbiddenError

	switch {
	case errors.As(err, &ve):
		body := gin.H{"error": ve.Error()}
		if ve.Field != "" {
			body["field"] = ve.Field
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.As(err, &fe):
		c.JSON(http.StatusForbidden, gin.H{"error": fe.Reason})
	case errors.Is(err, repositories.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": resource + " not found"})
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		zerolog.Ctx(c.Request.Context()).Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process " + resource + " request"})
	}
}

func handleTaskError(c *gin.Context, err error) {
	handleServiceError(c, err, "task")
}

func handleReportError(c *gin.Context, err error) {
	handleServiceError(c, err, "report")
}

func handleUserError(c *gin.Context, err error) {
	handleServiceError(c, err, "user")
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
