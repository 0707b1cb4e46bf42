package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/adpulse/internal/monitoring"
	"github.com/charlesng35/adpulse/pkg/logger"
)

const (
	defaultAuditRetentionDays = 90
	defaultSessionSpec        = "@hourly"
	defaultInviteSpec         = "@hourly"
	defaultAuditSpec          = "@daily"
	defaultTokenSpec          = "@daily"
)

// SessionCleaner purges expired refresh sessions.
type SessionCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// InviteExpirer moves lapsed invitations to EXPIRED.
type InviteExpirer interface {
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

// ResetTokenCleaner drops expired password reset digests.
type ResetTokenCleaner interface {
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

// VerificationPurger deletes consumed or expired confirm-account tokens.
type VerificationPurger interface {
	PurgeStale(ctx context.Context, now time.Time) (int64, error)
}

// AuditPruner enforces audit log retention.
type AuditPruner interface {
	CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error)
}

// CachePurger removes expired entries from the database cache fallback.
type CachePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Jobs lists the collaborators the Cleaner drives. Nil members are skipped.
type Jobs struct {
	Sessions      SessionCleaner
	Invites       InviteExpirer
	ResetTokens   ResetTokenCleaner
	Verifications VerificationPurger
	Audit         AuditPruner
	Cache         CachePurger
}

// Cleaner coordinates background maintenance: invite expiry, session and token
// purges, audit retention and cache eviction.
type Cleaner struct {
	jobs      Jobs
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	retention int

	sessionSchedule string
	inviteSchedule  string
	auditSchedule   string
	tokenSchedule   string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained before cleanup.
func WithAuditRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithSessionSchedule overrides the cron specification for session cleanup.
func WithSessionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sessionSchedule = spec
		}
	}
}

// WithInviteSchedule overrides the cron specification for the invite expiry sweep.
func WithInviteSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.inviteSchedule = spec
		}
	}
}

// WithAuditSchedule overrides the cron specification for audit retention enforcement.
func WithAuditSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.auditSchedule = spec
		}
	}
}

// WithTokenSchedule overrides the cron specification for token and cache cleanup.
func WithTokenSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.tokenSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults.
func NewCleaner(jobs Jobs, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		jobs:            jobs,
		now:             time.Now,
		retention:       defaultAuditRetentionDays,
		sessionSchedule: defaultSessionSpec,
		inviteSchedule:  defaultInviteSpec,
		auditSchedule:   defaultAuditSpec,
		tokenSchedule:   defaultTokenSpec,
		log:             logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	schedule := []struct {
		spec string
		run  func(context.Context) error
		skip bool
	}{
		{c.sessionSchedule, c.cleanSessions, c.jobs.Sessions == nil},
		{c.inviteSchedule, c.expireInvites, c.jobs.Invites == nil},
		{c.tokenSchedule, c.cleanTokens, c.jobs.ResetTokens == nil && c.jobs.Verifications == nil && c.jobs.Cache == nil},
		{c.auditSchedule, c.pruneAudit, c.jobs.Audit == nil},
	}

	registered := 0
	for _, job := range schedule {
		if job.skip {
			continue
		}
		run := job.run
		if _, err := c.cron.AddFunc(job.spec, func() {
			if err := run(context.Background()); err != nil {
				c.log.Warn("maintenance job failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
		registered++
	}

	if registered > 0 {
		c.cron.Start()
	}
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// Windows reports, per job name, how long the job may go without a successful run
// before it counts as overdue: two intervals of its schedule. Jobs whose schedule
// cannot be parsed are omitted.
func (c *Cleaner) Windows() map[string]time.Duration {
	now := c.now()
	windows := map[string]time.Duration{}
	set := func(spec string, jobs ...string) {
		schedule, err := cron.ParseStandard(spec)
		if err != nil {
			return
		}
		first := schedule.Next(now)
		interval := schedule.Next(first).Sub(first)
		for _, job := range jobs {
			windows[job] = 2 * interval
		}
	}

	if c.jobs.Sessions != nil {
		set(c.sessionSchedule, "sessions")
	}
	if c.jobs.Invites != nil {
		set(c.inviteSchedule, "invites")
	}
	set(c.tokenSchedule, "reset_tokens", "email_verifications", "cache")
	if c.jobs.Audit != nil {
		set(c.auditSchedule, "audit")
	}
	return windows
}

// RunOnce executes every configured cleanup routine and aggregates their errors.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	return multierr.Combine(
		c.cleanSessions(ctx),
		c.expireInvites(ctx),
		c.cleanTokens(ctx),
		c.pruneAudit(ctx),
	)
}

func (c *Cleaner) cleanSessions(ctx context.Context) error {
	if c.jobs.Sessions == nil {
		return nil
	}
	start := time.Now()
	n, err := c.jobs.Sessions.CleanupExpired(ctx)
	c.report("sessions", n, err, time.Since(start))
	return err
}

func (c *Cleaner) expireInvites(ctx context.Context) error {
	if c.jobs.Invites == nil {
		return nil
	}
	start := time.Now()
	n, err := c.jobs.Invites.ExpireStale(ctx, c.now())
	c.report("invites", n, err, time.Since(start))
	return err
}

func (c *Cleaner) cleanTokens(ctx context.Context) error {
	now := c.now()
	var errs error

	if c.jobs.ResetTokens != nil {
		start := time.Now()
		n, err := c.jobs.ResetTokens.ClearExpiredResetTokens(ctx, now)
		c.report("reset_tokens", n, err, time.Since(start))
		errs = multierr.Append(errs, err)
	}
	if c.jobs.Verifications != nil {
		start := time.Now()
		n, err := c.jobs.Verifications.PurgeStale(ctx, now)
		c.report("email_verifications", n, err, time.Since(start))
		errs = multierr.Append(errs, err)
	}
	if c.jobs.Cache != nil {
		start := time.Now()
		n, err := c.jobs.Cache.PurgeExpired(ctx)
		c.report("cache", n, err, time.Since(start))
		errs = multierr.Append(errs, err)
	}
	return errs
}

func (c *Cleaner) pruneAudit(ctx context.Context) error {
	if c.jobs.Audit == nil || c.retention <= 0 {
		return nil
	}
	start := time.Now()
	n, err := c.jobs.Audit.CleanupOlderThan(ctx, c.retention)
	c.report("audit", n, err, time.Since(start))
	return err
}

func (c *Cleaner) report(job string, n int64, err error, took time.Duration) {
	if err != nil {
		monitoring.RecordMaintenanceRun(job, "failure", err.Error(), 0, took)
		c.log.Warn("cleanup failed", zap.String("job", job), zap.Error(err))
		return
	}
	monitoring.RecordMaintenanceRun(job, "success", "", n, took)
	if n > 0 {
		c.log.Debug("cleanup completed", zap.String("job", job), zap.Int64("removed", n))
	}
}
