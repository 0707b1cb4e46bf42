package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/adpulse/internal/app"
	iauth "github.com/charlesng35/adpulse/internal/auth"
	"github.com/charlesng35/adpulse/internal/handlers"
	"github.com/charlesng35/adpulse/internal/middleware"
	"github.com/charlesng35/adpulse/internal/monitoring"
)

const (
	strictAuthRequests = 10
	strictAuthWindow   = time.Minute
)

// Dependencies carries everything NewRouter wires into handlers.
// Identity and StateCodec are optional; Google sign-in routes are only
// registered when both are present.
type Dependencies struct {
	Config     *app.Config
	JWT        *iauth.JWTService
	Services   *Services
	RateStore  middleware.RateStore
	Monitoring *monitoring.Module
	Identity   iauth.IdentityProvider
	StateCodec *iauth.StateCodec
}

// NewRouter builds the Gin engine, wires middleware and registers the API routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	cfg := deps.Config
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	svc := deps.Services
	if svc == nil {
		return nil, fmt.Errorf("services must be provided")
	}

	metricsEndpoint := cfg.Monitoring.Prometheus.Endpoint
	if metricsEndpoint == "" {
		metricsEndpoint = "/metrics"
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestMeta())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics("/health", metricsEndpoint))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(allowedOrigins(cfg)...))
	r.Use(middleware.RateLimit(deps.RateStore, cfg.RateLimit.Requests, cfg.RateLimit.Window))

	registerHealthRoutes(r, cfg, deps.Monitoring)

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT))

	var sso *handlers.SSOHandler
	if deps.Identity != nil && deps.StateCodec != nil {
		sso = handlers.NewSSOHandler(deps.Identity, deps.StateCodec, svc.Users, svc.Sessions, cfg.Server.BaseURL)
	}

	registerAuthRoutes(r, api, authRouteDeps{
		Auth:         handlers.NewAuthHandler(svc.Local, svc.Sessions, svc.Users, svc.Teams),
		Password:     handlers.NewPasswordHandler(svc.Credentials),
		Verification: handlers.NewEmailVerificationHandler(svc.Verifications),
		Invite:       handlers.NewInviteHandler(svc.Invites),
		SSO:          sso,
		Strict:       middleware.RateLimit(deps.RateStore, strictAuthRequests, strictAuthWindow),
	})

	registerTeamRoutes(api, teamRouteDeps{
		Teams:         handlers.NewTeamHandler(svc.Teams, svc.Invites),
		Invites:       handlers.NewInviteHandler(svc.Invites),
		Sites:         handlers.NewSiteHandler(svc.Sites),
		Subscriptions: handlers.NewSubscriptionHandler(svc.Subscriptions),
		Audit:         handlers.NewAuditHandler(svc.Audit, svc.Guard),
	})

	if cfg.Monitoring.Prometheus.Enabled {
		// A nil module still serves the default registry.
		r.GET(metricsEndpoint, gin.WrapH(deps.Monitoring.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

func allowedOrigins(cfg *app.Config) []string {
	base := strings.TrimRight(strings.TrimSpace(cfg.Server.BaseURL), "/")
	if base == "" {
		return nil
	}
	return []string{base}
}
