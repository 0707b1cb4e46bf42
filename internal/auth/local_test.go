package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	dbtestutil "github.com/charlesng35/adpulse/internal/database/testutil"
	"github.com/charlesng35/adpulse/internal/models"
	"github.com/charlesng35/adpulse/internal/testutil"
)

func TestAuthenticateSuccessResetsCounters(t *testing.T) {
	db := dbtestutil.MustOpenTestDB(t)
	clock := testutil.NewMockClock(time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC))

	user := createTestUser(t, db, "alice@example.com")
	require.NoError(t, db.Model(user).Update("failed_attempts", 3).Error)

	local, err := NewLocalAuthenticator(db, LocalConfig{Clock: clock.Now})
	require.NoError(t, err)

	result, err := local.Authenticate(context.Background(), " Alice@Example.com ", "Password123!")
	require.NoError(t, err)
	require.Equal(t, user.ID, result.ID)

	var updated models.User
	require.NoError(t, db.Take(&updated, "id = ?", user.ID).Error)
	require.Zero(t, updated.FailedAttempts)
	require.Nil(t, updated.LockedUntil)
	require.NotNil(t, updated.LastLoginAt)
	require.True(t, updated.LastLoginAt.Equal(clock.Now()))
}

func TestAuthenticateLocksAfterThreshold(t *testing.T) {
	db := dbtestutil.MustOpenTestDB(t)
	clock := testutil.NewMockClock(time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC))
	createTestUser(t, db, "bob@example.com")

	local, err := NewLocalAuthenticator(db, LocalConfig{
		LockoutThreshold: 3,
		LockoutDuration:  10 * time.Minute,
		Clock:            clock.Now,
	})
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err = local.Authenticate(ctx, "bob@example.com", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err = local.Authenticate(ctx, "bob@example.com", "wrong")
	require.ErrorIs(t, err, ErrAccountLocked)

	_, err = local.Authenticate(ctx, "bob@example.com", "Password123!")
	require.ErrorIs(t, err, ErrAccountLocked)

	clock.Advance(11 * time.Minute)
	_, err = local.Authenticate(ctx, "bob@example.com", "Password123!")
	require.NoError(t, err)
}

func TestAuthenticateRejectsPasswordlessAccounts(t *testing.T) {
	db := dbtestutil.MustOpenTestDB(t)
	require.NoError(t, db.Create(&models.User{Name: "OAuth", Email: "oauth@example.com"}).Error)

	local, err := NewLocalAuthenticator(db, LocalConfig{})
	require.NoError(t, err)

	_, err = local.Authenticate(context.Background(), "oauth@example.com", "anything")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = local.Authenticate(context.Background(), "missing@example.com", "anything")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}
