package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/adpulse/internal/models"
	"github.com/charlesng35/adpulse/pkg/crypto"
	"github.com/charlesng35/adpulse/pkg/metrics"
)

var (
	// ErrInvalidCredentials is returned when the supplied email/password pair is invalid.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrAccountLocked signals that the user has exceeded the permitted failed attempts.
	ErrAccountLocked = errors.New("auth: account locked")
)

// LocalConfig defines lockout behaviour for password sign-in.
type LocalConfig struct {
	LockoutThreshold int
	LockoutDuration  time.Duration
	Clock            func() time.Time
}

// LocalAuthenticator verifies email/password credentials with account lockout.
type LocalAuthenticator struct {
	db        *gorm.DB
	clock     func() time.Time
	threshold int
	duration  time.Duration
}

// NewLocalAuthenticator builds an authenticator with defaults of 5 attempts and 15 minutes.
func NewLocalAuthenticator(db *gorm.DB, cfg LocalConfig) (*LocalAuthenticator, error) {
	if db == nil {
		return nil, errors.New("local auth: db is required")
	}

	threshold := cfg.LockoutThreshold
	if threshold <= 0 {
		threshold = 5
	}
	duration := cfg.LockoutDuration
	if duration <= 0 {
		duration = 15 * time.Minute
	}
	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &LocalAuthenticator{db: db, clock: clock, threshold: threshold, duration: duration}, nil
}

// Authenticate returns the user owning email when password matches.
// Accounts without a password (Google only) always fail with ErrInvalidCredentials.
func (a *LocalAuthenticator) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := a.authenticate(ctx, email, password)
	switch {
	case err == nil:
		metrics.AuthAttempts.WithLabelValues("success").Inc()
	case errors.Is(err, ErrAccountLocked):
		metrics.AuthAttempts.WithLabelValues("locked").Inc()
	default:
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
	}
	return user, err
}

func (a *LocalAuthenticator) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var user models.User
	err := a.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("local auth: query user: %w", err)
	}

	now := a.clock()
	if user.LockedUntil != nil && user.LockedUntil.After(now) {
		return nil, ErrAccountLocked
	}
	if user.LockedUntil != nil {
		user.LockedUntil = nil
		user.FailedAttempts = 0
	}

	if !user.HasPassword() || !crypto.VerifyPassword(*user.PasswordHash, password) {
		return nil, a.recordFailure(ctx, &user, now)
	}

	user.FailedAttempts = 0
	user.LastLoginAt = &now
	if err := a.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
		"failed_attempts": 0,
		"locked_until":    nil,
		"last_login_at":   now,
	}).Error; err != nil {
		return nil, fmt.Errorf("local auth: update user: %w", err)
	}
	return &user, nil
}

func (a *LocalAuthenticator) recordFailure(ctx context.Context, user *models.User, now time.Time) error {
	user.FailedAttempts++
	updates := map[string]any{
		"failed_attempts": user.FailedAttempts,
		"locked_until":    nil,
	}
	locked := user.FailedAttempts >= a.threshold
	if locked {
		updates["locked_until"] = now.Add(a.duration)
	}

	if err := a.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("local auth: update failed attempts: %w", err)
	}
	if locked {
		return ErrAccountLocked
	}
	return ErrInvalidCredentials
}
