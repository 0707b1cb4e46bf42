package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/adpulse/internal/api"
	"github.com/charlesng35/adpulse/internal/app"
	"github.com/charlesng35/adpulse/internal/app/maintenance"
	iauth "github.com/charlesng35/adpulse/internal/auth"
	"github.com/charlesng35/adpulse/internal/cache"
	"github.com/charlesng35/adpulse/internal/database"
	"github.com/charlesng35/adpulse/internal/middleware"
	"github.com/charlesng35/adpulse/internal/monitoring"
	"github.com/charlesng35/adpulse/internal/monitoring/checks"
	"github.com/charlesng35/adpulse/internal/security"
	"github.com/charlesng35/adpulse/pkg/logger"
	"github.com/charlesng35/adpulse/pkg/mail"
)

const (
	probeTimeout      = 2 * time.Second
	maintenanceMaxAge = 26 * time.Hour
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB         *gorm.DB
	Cache      cache.Store
	Redis      *cache.RedisStore
	Mailer     mail.Mailer
	Services   *api.Services
	Monitoring *monitoring.Module
	Cleaner    *maintenance.Cleaner
	RateStore  middleware.RateStore
	Router     *gin.Engine

	closers []io.Closer
}

// bootstrapRuntime initialises the database, cache, mail transport, services and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	dbStore := cache.NewDatabaseStore(stack.DB)
	stack.Cache = dbStore
	backend := "database"
	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisStore(ctx, cfg.Cache.RedisOptions()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed cache", zap.Error(err))
		} else {
			stack.Cache = stack.Redis
			stack.closers = append(stack.closers, stack.Redis)
			backend = "redis"
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	sessionCfg := cfg.Auth.SessionServiceConfig()
	sessionCfg.Cache = iauth.NewSessionCache(stack.Cache)
	sessionSvc, err := iauth.NewSessionService(stack.DB, jwtSvc, sessionCfg)
	if err != nil {
		return nil, fmt.Errorf("initialise session service: %w", err)
	}

	mailer, closer, err := newMailer(cfg.Email)
	if err != nil {
		return nil, fmt.Errorf("initialise mail transport: %w", err)
	}
	if closer != nil {
		stack.closers = append(stack.closers, closer)
	}
	stack.Mailer = mail.Instrument(mailer, cfg.Email.TransportName())
	log.Info("mail transport ready", zap.String("transport", cfg.Email.TransportName()))

	stack.Services, err = api.NewServices(stack.DB, cfg, sessionSvc, stack.Mailer, stack.Cache)
	if err != nil {
		return nil, fmt.Errorf("initialise services: %w", err)
	}

	reportSecurityPosture(ctx, stack.DB, cfg, log)

	stack.Monitoring, err = monitoring.NewModule(monitoring.Options{ProbeDeadline: 2 * probeTimeout})
	if err != nil {
		return nil, fmt.Errorf("initialise monitoring: %w", err)
	}
	monitoring.SetModule(stack.Monitoring)
	health := stack.Monitoring.Health()
	health.RegisterReadiness(checks.Database(stack.DB, probeTimeout))
	health.RegisterReadiness(checks.Cache(stack.Cache, backend, probeTimeout))
	health.RegisterReadiness(checks.Mail(mailTarget(cfg.Email), probeTimeout))

	stack.Cleaner = newCleaner(cfg, stack.Services, dbStore)
	if err := stack.Cleaner.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}
	var windows []checks.MaintenanceOption
	for job, window := range stack.Cleaner.Windows() {
		windows = append(windows, checks.WithJobWindow(job, window))
	}
	health.RegisterReadiness(checks.Maintenance(maintenanceMaxAge, windows...))

	if stack.Redis != nil {
		stack.RateStore = middleware.NewSharedRateStore(stack.Redis)
	} else {
		stack.RateStore = middleware.NewSharedRateStore(dbStore)
	}

	deps := api.Dependencies{
		Config:     cfg,
		JWT:        jwtSvc,
		Services:   stack.Services,
		RateStore:  stack.RateStore,
		Monitoring: stack.Monitoring,
	}
	if cfg.Auth.Google.Enabled {
		if deps.Identity, deps.StateCodec, err = newGoogleLogin(ctx, cfg); err != nil {
			return nil, err
		}
		log.Info("google sign-in enabled", zap.String("issuer", cfg.Auth.Google.Issuer))
	}

	stack.Router, err = api.NewRouter(deps)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			ctx = stopCtx
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	var errs error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, s.closers[i].Close())
	}
	if s.DB != nil {
		errs = multierr.Append(errs, database.Close(s.DB))
	}
	if errs != nil {
		log.Warn("resource shutdown", zap.Error(errs))
	}
}

// reportSecurityPosture logs every audit check that did not pass. Findings never block startup.
func reportSecurityPosture(ctx context.Context, db *gorm.DB, cfg *app.Config, log *zap.Logger) security.Result {
	result := security.NewAuditor(db, cfg).Run(ctx)
	for _, check := range result.Checks {
		fields := []zap.Field{zap.String("check", check.ID), zap.String("remediation", check.Remediation)}
		switch check.Status {
		case security.StatusFail:
			log.Error(check.Message, fields...)
		case security.StatusWarn:
			log.Warn(check.Message, fields...)
		}
	}
	return result
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}

// newMailer selects the outbound transport. The returned closer is nil for
// transports that hold no connections.
func newMailer(cfg app.EmailConfig) (mail.Mailer, io.Closer, error) {
	switch cfg.TransportName() {
	case app.TransportSMTP:
		mailer, err := mail.NewSMTPMailer(cfg.SMTPSettings())
		return mailer, nil, err
	case app.TransportKafka:
		mailer, err := mail.NewKafkaMailer(cfg.KafkaSettings())
		if err != nil {
			return nil, nil, err
		}
		return mailer, mailer, nil
	case app.TransportDisabled:
		return mail.LogMailer{}, nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported email transport %q", cfg.Transport)
	}
}

func mailTarget(cfg app.EmailConfig) checks.MailTarget {
	return checks.MailTarget{
		Transport: cfg.TransportName(),
		SMTPHost:  cfg.SMTP.Host,
		SMTPPort:  cfg.SMTP.Port,
		Brokers:   cfg.KafkaSettings().Brokers,
	}
}

func newCleaner(cfg *app.Config, svc *api.Services, dbStore *cache.DatabaseStore) *maintenance.Cleaner {
	schedule := cfg.Maintenance
	return maintenance.NewCleaner(maintenance.Jobs{
		Sessions:      svc.Sessions,
		Invites:       svc.Invites,
		ResetTokens:   svc.Credentials,
		Verifications: svc.Verifications,
		Audit:         svc.Audit,
		Cache:         dbStore,
	},
		maintenance.WithSessionSchedule(schedule.SessionSchedule),
		maintenance.WithInviteSchedule(schedule.InviteSchedule),
		maintenance.WithTokenSchedule(schedule.TokenSchedule),
		maintenance.WithAuditSchedule(schedule.AuditSchedule),
		maintenance.WithAuditRetentionDays(schedule.AuditRetentionDays),
	)
}

func newGoogleLogin(ctx context.Context, cfg *app.Config) (iauth.IdentityProvider, *iauth.StateCodec, error) {
	provider, err := iauth.NewGoogleProvider(ctx, cfg.Auth.GoogleProviderConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("initialise google provider: %w", err)
	}
	key, err := app.DecodeKey(cfg.Auth.Google.StateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("decode google state key: %w", err)
	}
	codec, err := iauth.NewStateCodec(key, 0, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("initialise sso state codec: %w", err)
	}
	return provider, codec, nil
}
