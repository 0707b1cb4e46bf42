package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/adpulse/internal/handlers"
)

type authRouteDeps struct {
	Auth         *handlers.AuthHandler
	Password     *handlers.PasswordHandler
	Verification *handlers.EmailVerificationHandler
	Invite       *handlers.InviteHandler
	SSO          *handlers.SSOHandler
	// Strict is the tighter limiter guarding credential-guessing endpoints.
	Strict gin.HandlerFunc
}

func registerAuthRoutes(engine *gin.Engine, api *gin.RouterGroup, deps authRouteDeps) {
	auth := engine.Group("/api/auth")
	{
		auth.POST("/signup", deps.Auth.Signup)
		auth.POST("/login", deps.Strict, deps.Auth.Login)
		auth.POST("/refresh", deps.Auth.Refresh)

		auth.POST("/email/verify", deps.Verification.Verify)

		auth.POST("/password/forgot", deps.Strict, deps.Password.Forgot)
		auth.POST("/password/reset", deps.Password.Reset)
		auth.POST("/password/validate", deps.Password.Validate)

		auth.GET("/invites/verify", deps.Invite.Verify)
		auth.POST("/invites/process", deps.Invite.Process)

		if deps.SSO != nil {
			auth.GET("/google/login", deps.SSO.Begin)
			auth.GET("/google/callback", deps.SSO.Callback)
		}
	}

	api.GET("/auth/me", deps.Auth.Me)
	api.POST("/auth/logout", deps.Auth.Logout)
	api.POST("/auth/email/resend", deps.Verification.Resend)
	api.POST("/auth/password/change", deps.Password.Change)
}
