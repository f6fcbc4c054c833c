package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"

	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/repositories"
)

const (
	actorKey  = "actor"
	userIDKey = "user_id"
)

type TokenParser interface {
	ParseAccessToken(accessToken string) (uuid.UUID, error)
}

type UserLoader interface {
	GetUser(ctx context.Context, id uuid.UUID) (models.User, error)
}

// Authenticate resolves the bearer token into the acting user. The user is
// reloaded on every request so a role change takes effect immediately.
func Authenticate(tokens TokenParser, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication credentials were not provided"})
			return
		}

		userID, err := tokens.ParseAccessToken(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		user, err := users.GetUser(c.Request.Context(), userID)
		if errors.Is(err, repositories.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if err != nil {
			zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("loading authenticated user")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		c.Set(actorKey, user)
		c.Set(userIDKey, user.ID.String())
		c.Next()
	}
}

func CurrentActor(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}

// MustActor is for handlers mounted behind Authenticate.
func MustActor(c *gin.Context) models.User {
	user, ok := CurrentActor(c)
	if !ok {
		panic("middleware: no authenticated actor on context")
	}
	return user
}

// SetActor stores user as the acting identity. Tests use it to bypass token
// handling.
func SetActor(c *gin.Context, user models.User) {
	c.Set(actorKey, user)
	c.Set(userIDKey, user.ID.String())
}
