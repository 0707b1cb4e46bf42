package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/adpulse/internal/models"
	"github.com/charlesng35/adpulse/internal/testutil"
	"github.com/charlesng35/adpulse/pkg/crypto"
	apperrors "github.com/charlesng35/adpulse/pkg/errors"
)

func setupUserService(t *testing.T) (*gorm.DB, *UserService, *EmailVerificationService, *recordingMailer, *testutil.MockClock) {
	t.Helper()

	db := openServiceTestDB(t)
	clock := newTestClock()
	mailer := &recordingMailer{}
	verifier, err := NewEmailVerificationService(db, mailer,
		WithVerificationBaseURL("https://app.adpulse.test"),
		WithVerificationClock(clock.Now),
	)
	require.NoError(t, err)
	svc, err := NewUserService(db, verifier,
		WithUserPasswordCost(crypto.MinPasswordCost),
		WithUserClock(clock.Now),
	)
	require.NoError(t, err)
	return db, svc, verifier, mailer, clock
}

func TestSignupProvisionsPersonalTeam(t *testing.T) {
	db, svc, _, mailer, _ := setupUserService(t)

	user, err := svc.Signup(context.Background(), SignupInput{Name: "Ana", Email: " Ana@Acme.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	require.Equal(t, "ana@acme.com", user.Email)
	require.Nil(t, user.EmailVerified)
	require.True(t, crypto.VerifyPassword(*user.PasswordHash, "s3cret-pass"))

	var member models.TeamMember
	require.NoError(t, db.Preload("Team").Take(&member, "user_id = ?", user.ID).Error)
	require.Equal(t, models.TeamRoleOwner, member.Role)
	require.Equal(t, "Ana's Team", member.Team.Name)

	var subscription models.Subscription
	require.NoError(t, db.Take(&subscription, "team_id = ?", member.TeamID).Error)
	require.Equal(t, models.PlanBasic, subscription.Plan)

	msg := mailer.last(t)
	require.Equal(t, []string{"ana@acme.com"}, msg.To)
	tokenFrom(t, msg, "/confirm-account")
}

func TestSignupRejectsDuplicateEmail(t *testing.T) {
	db, svc, _, _, _ := setupUserService(t)
	createUser(t, db, "Ana", "ana@acme.com")

	_, err := svc.Signup(context.Background(), SignupInput{Name: "Ana", Email: "ANA@acme.com", Password: "s3cret-pass"})
	require.ErrorIs(t, err, ErrEmailTaken)
	require.Equal(t, 409, apperrors.FromError(err).StatusCode)
}

func TestSignupValidation(t *testing.T) {
	_, svc, _, _, _ := setupUserService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, SignupInput{Email: "a@acme.com", Password: "s3cret-pass"})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)
	_, err = svc.Signup(ctx, SignupInput{Name: "A", Email: "nope", Password: "s3cret-pass"})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)
	_, err = svc.Signup(ctx, SignupInput{Name: "A", Email: "a@acme.com", Password: "short"})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestSignupMailFailureRollsBack(t *testing.T) {
	db, svc, _, mailer, _ := setupUserService(t)
	mailer.err = errMailDown

	_, err := svc.Signup(context.Background(), SignupInput{Name: "Ana", Email: "ana@acme.com", Password: "s3cret-pass"})
	require.ErrorIs(t, err, apperrors.ErrInternalServer)

	for _, model := range []any{&models.User{}, &models.Team{}, &models.TeamMember{}, &models.EmailVerification{}} {
		var count int64
		require.NoError(t, db.Model(model).Count(&count).Error)
		require.Zero(t, count)
	}
}

func TestFindOrCreateFromIdentity(t *testing.T) {
	db, svc, _, _, _ := setupUserService(t)
	ctx := context.Background()

	user, created, err := svc.FindOrCreateFromIdentity(ctx, ExternalIdentity{
		Subject: "1234", Email: "Gus@Acme.com", EmailVerified: true, Name: "Gus", Picture: "https://img/gus.png",
	})
	require.NoError(t, err)
	require.True(t, created)
	require.False(t, user.HasPassword())
	require.NotNil(t, user.EmailVerified)

	var teams int64
	require.NoError(t, db.Model(&models.TeamMember{}).Where("user_id = ? AND role = ?", user.ID, models.TeamRoleOwner).Count(&teams).Error)
	require.Equal(t, int64(1), teams)

	again, created, err := svc.FindOrCreateFromIdentity(ctx, ExternalIdentity{Email: "gus@acme.com", EmailVerified: true})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, user.ID, again.ID)

	_, _, err = svc.FindOrCreateFromIdentity(ctx, ExternalIdentity{Email: "x@acme.com"})
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestFindOrCreateFromIdentityVerifiesExistingAccount(t *testing.T) {
	db, svc, _, _, _ := setupUserService(t)
	hash, err := crypto.HashPasswordWithCost(testPassword, crypto.MinPasswordCost)
	require.NoError(t, err)
	local := &models.User{Name: "Ana", Email: "ana@acme.com", PasswordHash: &hash}
	require.NoError(t, db.Create(local).Error)

	user, created, err := svc.FindOrCreateFromIdentity(context.Background(), ExternalIdentity{Email: "ana@acme.com", EmailVerified: true})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, local.ID, user.ID)
	require.NotNil(t, user.EmailVerified)
	require.True(t, user.HasPassword())
}

func TestGetByID(t *testing.T) {
	db, svc, _, _, _ := setupUserService(t)
	user := createUser(t, db, "Ana", "ana@acme.com")

	got, err := svc.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, user.Email, got.Email)

	_, err = svc.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, ErrUserNotFound)
}
