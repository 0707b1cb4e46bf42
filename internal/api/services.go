package api

import (
	"errors"

	"gorm.io/gorm"

	"github.com/charlesng35/adpulse/internal/app"
	iauth "github.com/charlesng35/adpulse/internal/auth"
	"github.com/charlesng35/adpulse/internal/cache"
	"github.com/charlesng35/adpulse/internal/services"
	"github.com/charlesng35/adpulse/pkg/mail"
)

// Services bundles the domain services shared by the HTTP surface and the
// background jobs.
type Services struct {
	DB            *gorm.DB
	Sessions      *iauth.SessionService
	Local         *iauth.LocalAuthenticator
	Guard         *services.Guard
	Audit         *services.AuditService
	Verifications *services.EmailVerificationService
	Users         *services.UserService
	Credentials   *services.CredentialService
	Invites       *services.InviteService
	Teams         *services.TeamService
	Sites         *services.SiteService
	Subscriptions *services.SubscriptionService
}

// NewServices wires every domain service against the shared database handle.
// store may be nil, in which case invite lookups are not cached.
func NewServices(db *gorm.DB, cfg *app.Config, sessions *iauth.SessionService, mailer mail.Mailer, store cache.Store) (*Services, error) {
	if db == nil {
		return nil, errors.New("api: database handle must be provided")
	}
	if cfg == nil {
		return nil, errors.New("api: config must be provided")
	}
	if sessions == nil {
		return nil, errors.New("api: session service must be provided")
	}
	if mailer == nil {
		mailer = mail.LogMailer{}
	}

	baseURL := cfg.Server.BaseURL
	cost := cfg.Credentials.BcryptCost

	local, err := iauth.NewLocalAuthenticator(db, cfg.Auth.LocalAuthenticatorConfig())
	if err != nil {
		return nil, err
	}
	guard, err := services.NewGuard(db)
	if err != nil {
		return nil, err
	}
	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}

	verifications, err := services.NewEmailVerificationService(db, mailer,
		services.WithVerificationBaseURL(baseURL),
		services.WithVerificationExpiry(cfg.Credentials.VerificationTTL),
		services.WithVerificationAudit(audit),
	)
	if err != nil {
		return nil, err
	}

	users, err := services.NewUserService(db, verifications,
		services.WithUserPasswordCost(cost),
		services.WithUserAudit(audit),
	)
	if err != nil {
		return nil, err
	}

	credentials, err := services.NewCredentialService(db, mailer,
		services.WithCredentialBaseURL(baseURL),
		services.WithResetTTL(cfg.Credentials.ResetTTL),
		services.WithPasswordCost(cost),
		services.WithSessionRevoker(sessions),
		services.WithCredentialAudit(audit),
	)
	if err != nil {
		return nil, err
	}

	inviteOpts := []services.InviteOption{
		services.WithInviteBaseURL(baseURL),
		services.WithInviteTTL(cfg.Invites.TTL),
		services.WithInvitePasswordCost(cost),
		services.WithInviteAudit(audit),
	}
	if store != nil {
		inviteOpts = append(inviteOpts, services.WithInviteCache(store))
	}
	invites, err := services.NewInviteService(db, mailer, guard, inviteOpts...)
	if err != nil {
		return nil, err
	}

	teamOpts := []services.TeamOption{services.WithTeamAudit(audit)}
	if store != nil {
		teamOpts = append(teamOpts, services.WithTeamInviteCache(store))
	}
	teams, err := services.NewTeamService(db, guard, teamOpts...)
	if err != nil {
		return nil, err
	}
	sites, err := services.NewSiteService(db, guard, services.WithSiteAudit(audit))
	if err != nil {
		return nil, err
	}
	subscriptions, err := services.NewSubscriptionService(db, guard, audit)
	if err != nil {
		return nil, err
	}

	return &Services{
		DB:            db,
		Sessions:      sessions,
		Local:         local,
		Guard:         guard,
		Audit:         audit,
		Verifications: verifications,
		Users:         users,
		Credentials:   credentials,
		Invites:       invites,
		Teams:         teams,
		Sites:         sites,
		Subscriptions: subscriptions,
	}, nil
}
