package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	iauth "github.com/charlesng35/adpulse/internal/auth"
	"github.com/charlesng35/adpulse/internal/cache"
	dbtestutil "github.com/charlesng35/adpulse/internal/database/testutil"
	"github.com/charlesng35/adpulse/internal/models"
	"github.com/charlesng35/adpulse/internal/monitoring"
	"github.com/charlesng35/adpulse/internal/services"
	"github.com/charlesng35/adpulse/internal/testutil"
	"github.com/charlesng35/adpulse/pkg/crypto"
	"github.com/charlesng35/adpulse/pkg/mail"
)

type fakeJob struct {
	calls int
	err   error
	at    time.Time
}

func (f *fakeJob) CleanupExpired(context.Context) (int64, error) {
	f.calls++
	return 1, f.err
}

func (f *fakeJob) ExpireStale(_ context.Context, now time.Time) (int64, error) {
	f.calls++
	f.at = now
	return 2, f.err
}

func (f *fakeJob) CleanupOlderThan(context.Context, int) (int64, error) {
	f.calls++
	return 0, f.err
}

func TestCleanerRunOnceAggregatesErrors(t *testing.T) {
	now := time.Date(2024, 2, 10, 15, 0, 0, 0, time.UTC)
	sessions := &fakeJob{err: errors.New("sessions down")}
	invites := &fakeJob{}
	audit := &fakeJob{err: errors.New("audit down")}

	cleaner := NewCleaner(Jobs{Sessions: sessions, Invites: invites, Audit: audit}, WithNow(func() time.Time { return now }))
	err := cleaner.RunOnce(context.Background())
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 2)

	require.Equal(t, 1, sessions.calls)
	require.Equal(t, 1, invites.calls)
	require.Equal(t, now, invites.at)
	require.Equal(t, 1, audit.calls)
}

func TestCleanerRunOnceAgainstDatabase(t *testing.T) {
	db := dbtestutil.MustOpenTestDB(t)
	clock := testutil.NewMockClock(time.Date(2024, 2, 10, 15, 0, 0, 0, time.UTC))

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "maintenance-secret", Clock: clock.Now})
	require.NoError(t, err)
	sessions, err := iauth.NewSessionService(db, jwt, iauth.SessionConfig{Clock: clock.Now})
	require.NoError(t, err)
	guard, err := services.NewGuard(db)
	require.NoError(t, err)
	invites, err := services.NewInviteService(db, mail.LogMailer{}, guard, services.WithInviteClock(clock.Now))
	require.NoError(t, err)
	credentials, err := services.NewCredentialService(db, mail.LogMailer{},
		services.WithCredentialClock(clock.Now), services.WithPasswordCost(crypto.MinPasswordCost))
	require.NoError(t, err)
	audit, err := services.NewAuditService(db, services.WithAuditClock(clock.Now))
	require.NoError(t, err)

	hash, err := crypto.HashPasswordWithCost("Password123!", crypto.MinPasswordCost)
	require.NoError(t, err)
	owner := &models.User{Name: "Ana", Email: "ana@acme.com", PasswordHash: &hash}
	require.NoError(t, db.Create(owner).Error)
	team := &models.Team{Name: "Acme"}
	require.NoError(t, db.Create(team).Error)
	require.NoError(t, db.Create(&models.TeamMember{
		TeamID: team.ID, UserID: &owner.ID, Role: models.TeamRoleOwner, Status: models.MemberStatusActive,
	}).Error)

	actor := services.Actor{UserID: owner.ID, Email: owner.Email}
	_, err = invites.CreateInvite(context.Background(), actor, team.ID, "bob@acme.com", models.TeamRoleMember)
	require.NoError(t, err)
	require.NoError(t, credentials.RequestReset(context.Background(), owner.Email))
	_, _, err = sessions.CreateSession(context.Background(), owner, iauth.SessionMetadata{})
	require.NoError(t, err)
	require.NoError(t, audit.Log(context.Background(), services.AuditEntry{Action: "old", Result: models.AuditResultSuccess}))

	clock.Advance(91 * 24 * time.Hour)

	cleaner := NewCleaner(Jobs{
		Sessions:    sessions,
		Invites:     invites,
		ResetTokens: credentials,
		Audit:       audit,
		Cache:       cache.NewDatabaseStore(db),
	}, WithNow(clock.Now))
	require.NoError(t, cleaner.RunOnce(context.Background()))

	var pending int64
	require.NoError(t, db.Model(&models.TeamMember{}).Where("status = ?", models.MemberStatusPending).Count(&pending).Error)
	require.Zero(t, pending)

	var resets int64
	require.NoError(t, db.Model(&models.User{}).Where("reset_token_hash IS NOT NULL").Count(&resets).Error)
	require.Zero(t, resets)

	var logs int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&logs).Error)
	require.Zero(t, logs)
}

func TestCleanerStartRegistersConfiguredJobs(t *testing.T) {
	scheduler := cron.New()
	cleaner := NewCleaner(Jobs{Sessions: &fakeJob{}, Audit: &fakeJob{}},
		WithCron(scheduler),
		WithSessionSchedule("@every 1h"),
		WithAuditSchedule("@every 24h"),
	)
	require.NoError(t, cleaner.Start())
	t.Cleanup(func() { <-cleaner.Stop().Done() })

	require.Len(t, scheduler.Entries(), 2)
}

func TestCleanerStartRejectsBadSchedule(t *testing.T) {
	cleaner := NewCleaner(Jobs{Invites: &fakeJob{}}, WithInviteSchedule("not a schedule"))
	require.Error(t, cleaner.Start())
}

func TestCleanerReportsRunsToMonitoring(t *testing.T) {
	mod, err := monitoring.NewModule(monitoring.Options{})
	require.NoError(t, err)
	monitoring.SetModule(mod)

	cleaner := NewCleaner(Jobs{Invites: &fakeJob{}, Audit: &fakeJob{err: errors.New("audit down")}})
	require.Error(t, cleaner.RunOnce(context.Background()))

	jobs := map[string]monitoring.MaintenanceJobSummary{}
	for _, job := range monitoring.Snapshot().Maintenance.Jobs {
		jobs[job.Job] = job
	}
	require.Equal(t, "success", jobs["invites"].LastStatus)
	require.Equal(t, int64(2), jobs["invites"].LastRemoved)
	require.Equal(t, "failure", jobs["audit"].LastStatus)
	require.Equal(t, "audit down", jobs["audit"].LastError)
}

func TestCleanerWindowsFollowSchedules(t *testing.T) {
	now := time.Date(2024, 2, 10, 15, 30, 0, 0, time.UTC)
	cleaner := NewCleaner(Jobs{Sessions: &fakeJob{}, Audit: &fakeJob{}},
		WithNow(func() time.Time { return now }),
		WithSessionSchedule("*/15 * * * *"),
		WithAuditSchedule("bogus"),
	)

	windows := cleaner.Windows()
	require.Equal(t, 30*time.Minute, windows["sessions"])
	require.Equal(t, 48*time.Hour, windows["cache"])
	require.NotContains(t, windows, "invites")
	require.NotContains(t, windows, "audit")
}
