package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/adpulse/internal/models"
	"github.com/charlesng35/adpulse/pkg/crypto"
	apperrors "github.com/charlesng35/adpulse/pkg/errors"
	"github.com/charlesng35/adpulse/pkg/logger"
	"github.com/charlesng35/adpulse/pkg/mail"
	"github.com/charlesng35/adpulse/pkg/metrics"
)

const (
	defaultResetTTL = time.Hour
	tokenBytes      = 32
	minPasswordLen  = 8
)

// SessionRevoker ends a user's sessions after their password changes hands.
type SessionRevoker interface {
	RevokeUserSessions(ctx context.Context, userID string) (int64, error)
}

// CredentialOption customises CredentialService behaviour.
type CredentialOption func(*CredentialService)

// WithCredentialBaseURL configures the origin used in reset links.
func WithCredentialBaseURL(url string) CredentialOption {
	return func(s *CredentialService) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithResetTTL overrides the reset token lifetime.
func WithResetTTL(d time.Duration) CredentialOption {
	return func(s *CredentialService) {
		if d > 0 {
			s.resetTTL = d
		}
	}
}

// WithPasswordCost sets the bcrypt cost for new password hashes.
func WithPasswordCost(cost int) CredentialOption {
	return func(s *CredentialService) {
		if cost > 0 {
			s.cost = cost
		}
	}
}

// WithCredentialClock injects a custom clock primarily for testing.
func WithCredentialClock(clock func() time.Time) CredentialOption {
	return func(s *CredentialService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithSessionRevoker revokes sessions after a successful reset.
func WithSessionRevoker(revoker SessionRevoker) CredentialOption {
	return func(s *CredentialService) {
		s.sessions = revoker
	}
}

// WithCredentialAudit records credential changes.
func WithCredentialAudit(audit *AuditService) CredentialOption {
	return func(s *CredentialService) {
		s.audit = audit
	}
}

// CredentialService handles password reset and change.
// Reset tokens live on the user row; only their sha256 digest is stored.
type CredentialService struct {
	db       *gorm.DB
	mailer   mail.Mailer
	sessions SessionRevoker
	audit    *AuditService
	baseURL  string
	resetTTL time.Duration
	cost     int
	now      func() time.Time
	log      *zap.Logger
}

// NewCredentialService constructs a CredentialService.
func NewCredentialService(db *gorm.DB, mailer mail.Mailer, opts ...CredentialOption) (*CredentialService, error) {
	if db == nil {
		return nil, errors.New("credential service: db is required")
	}
	if mailer == nil {
		return nil, errors.New("credential service: mailer is required")
	}

	svc := &CredentialService{
		db:       db,
		mailer:   mailer,
		resetTTL: defaultResetTTL,
		cost:     crypto.DefaultPasswordCost,
		now:      time.Now,
		log:      logger.WithModule("credentials"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.cost < crypto.MinPasswordCost {
		return nil, crypto.ErrPasswordCostTooLow
	}
	return svc, nil
}

// RequestReset issues a reset link when email belongs to an account.
// Unknown addresses return nil with no side effects so callers cannot probe for accounts.
func (s *CredentialService) RequestReset(ctx context.Context, email string) error {
	ctx = ensureContext(ctx)

	email = models.NormalizeEmail(email)
	if email == "" {
		return nil
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("credential service: load user: %w", err)
	}

	token, err := crypto.GenerateHexToken(tokenBytes)
	if err != nil {
		return fmt.Errorf("credential service: generate token: %w", err)
	}

	expires := s.now().Add(s.resetTTL)
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]any{
		"reset_token_hash":    crypto.HashToken(token),
		"reset_token_expires": expires,
	}).Error; err != nil {
		return fmt.Errorf("credential service: store reset token: %w", err)
	}

	msg, err := mail.Compose(user.Email, "Reset your password", mail.PasswordResetData{
		Link:      link(s.baseURL, "/reset-password", token),
		ExpiresIn: s.resetTTL,
	})
	if err != nil {
		return fmt.Errorf("credential service: compose reset email: %w", err)
	}
	if err := s.mailer.Send(ctx, msg); err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
		s.log.Warn("password reset email failed", zap.String("user_id", user.ID), zap.Error(err))
		return mailFailure(fmt.Errorf("credential service: send reset email: %w", err))
	}

	metrics.PasswordResets.WithLabelValues("requested").Inc()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   user.ID,
		Action:   "password.reset_requested",
		Resource: user.ID,
		Result:   models.AuditResultSuccess,
	})
	return nil
}

// ValidateResetToken reports whether token would currently be accepted by ResetWithToken.
func (s *CredentialService) ValidateResetToken(ctx context.Context, token string) (bool, error) {
	ctx = ensureContext(ctx)

	token = strings.TrimSpace(token)
	if token == "" {
		return false, nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("reset_token_hash = ? AND reset_token_expires > ?", crypto.HashToken(token), s.now()).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("credential service: validate token: %w", err)
	}
	return count > 0, nil
}

// ResetWithToken consumes token and sets a new password. Wrong and expired
// tokens both fail with ErrInvalidOrExpiredToken.
func (s *CredentialService) ResetWithToken(ctx context.Context, token, newPassword string) error {
	ctx = ensureContext(ctx)

	token = strings.TrimSpace(token)
	if token == "" {
		metrics.PasswordResets.WithLabelValues("rejected").Inc()
		return ErrInvalidOrExpiredToken
	}
	if len(newPassword) < minPasswordLen {
		return apperrors.NewBadRequest(fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}

	hash, err := crypto.HashPasswordWithCost(newPassword, s.cost)
	if err != nil {
		return fmt.Errorf("credential service: hash password: %w", err)
	}

	digest := crypto.HashToken(token)
	now := s.now()

	var user models.User
	err = s.db.WithContext(ctx).Select("id").
		Where("reset_token_hash = ? AND reset_token_expires > ?", digest, now).
		Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.PasswordResets.WithLabelValues("rejected").Inc()
		return ErrInvalidOrExpiredToken
	}
	if err != nil {
		return fmt.Errorf("credential service: load user: %w", err)
	}

	// The token predicate is repeated so a concurrent reset consumes it only once.
	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND reset_token_hash = ? AND reset_token_expires > ?", user.ID, digest, now).
		Updates(map[string]any{
			"password_hash":       hash,
			"reset_token_hash":    nil,
			"reset_token_expires": nil,
			"failed_attempts":     0,
			"locked_until":        nil,
		})
	if result.Error != nil {
		return fmt.Errorf("credential service: update password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		metrics.PasswordResets.WithLabelValues("rejected").Inc()
		return ErrInvalidOrExpiredToken
	}

	if s.sessions != nil {
		if _, err := s.sessions.RevokeUserSessions(ctx, user.ID); err != nil {
			s.log.Warn("failed to revoke sessions after reset", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	metrics.PasswordResets.WithLabelValues("completed").Inc()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   user.ID,
		Action:   "password.reset",
		Resource: user.ID,
		Result:   models.AuditResultSuccess,
	})
	return nil
}

// ChangePassword replaces the actor's password after checking the current one.
func (s *CredentialService) ChangePassword(ctx context.Context, actor Actor, currentPassword, newPassword string) error {
	ctx = ensureContext(ctx)

	if actor.UserID == "" {
		return apperrors.ErrUnauthorized
	}
	if len(newPassword) < minPasswordLen {
		return apperrors.NewBadRequest(fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}

	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "id = ?", actor.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNoPasswordSet
	}
	if err != nil {
		return fmt.Errorf("credential service: load user: %w", err)
	}
	if !user.HasPassword() {
		return ErrNoPasswordSet
	}

	if !crypto.VerifyPassword(*user.PasswordHash, currentPassword) {
		recordAudit(s.audit, ctx, AuditEntry{
			UserID:   user.ID,
			Action:   "password.change",
			Resource: user.ID,
			Result:   models.AuditResultFailure,
		})
		return ErrCurrentPasswordIncorrect
	}

	hash, err := crypto.HashPasswordWithCost(newPassword, s.cost)
	if err != nil {
		return fmt.Errorf("credential service: hash password: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).
		Update("password_hash", hash).Error; err != nil {
		return fmt.Errorf("credential service: update password: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   user.ID,
		Action:   "password.change",
		Resource: user.ID,
		Result:   models.AuditResultSuccess,
	})
	return nil
}

// ClearExpiredResetTokens drops reset digests whose expiry is at or before now.
func (s *CredentialService) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Model(&models.User{}).
		Where("reset_token_hash IS NOT NULL AND reset_token_expires <= ?", now).
		Updates(map[string]any{
			"reset_token_hash":    nil,
			"reset_token_expires": nil,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("credential service: clear reset tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}
