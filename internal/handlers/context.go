package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/adpulse/internal/middleware"
	"github.com/charlesng35/adpulse/internal/services"
	appErrors "github.com/charlesng35/adpulse/pkg/errors"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// currentActor converts the identity resolved by middleware.Auth into the Actor
// passed to services.
func currentActor(c *gin.Context) (services.Actor, error) {
	userID := strings.TrimSpace(c.GetString(middleware.CtxUserIDKey))
	if userID == "" {
		return services.Actor{}, appErrors.ErrUnauthorized
	}
	return services.Actor{
		UserID: userID,
		Email:  c.GetString(middleware.CtxEmailKey),
	}, nil
}
