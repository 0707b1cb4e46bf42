package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/adpulse/internal/models"
	"github.com/charlesng35/adpulse/pkg/crypto"
	apperrors "github.com/charlesng35/adpulse/pkg/errors"
	"github.com/charlesng35/adpulse/pkg/logger"
	"github.com/charlesng35/adpulse/pkg/mail"
)

const defaultVerificationExpiry = 24 * time.Hour

// ErrEmailAlreadyVerified is returned by Resend when there is nothing to confirm.
var ErrEmailAlreadyVerified = apperrors.New("EMAIL_ALREADY_VERIFIED", "Email is already verified", http.StatusBadRequest)

// VerificationOption customises the EmailVerificationService.
type VerificationOption func(*EmailVerificationService)

// WithVerificationBaseURL sets the base URL used in verification links.
func WithVerificationBaseURL(url string) VerificationOption {
	return func(s *EmailVerificationService) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithVerificationExpiry overrides the token lifetime.
func WithVerificationExpiry(d time.Duration) VerificationOption {
	return func(s *EmailVerificationService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithVerificationClock injects a custom time source.
func WithVerificationClock(clock func() time.Time) VerificationOption {
	return func(s *EmailVerificationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithVerificationAudit records confirmations.
func WithVerificationAudit(audit *AuditService) VerificationOption {
	return func(s *EmailVerificationService) {
		s.audit = audit
	}
}

// EmailVerificationService manages confirm-account links for local registrations.
type EmailVerificationService struct {
	db      *gorm.DB
	mailer  mail.Mailer
	audit   *AuditService
	baseURL string
	expiry  time.Duration
	now     func() time.Time
	log     *zap.Logger
}

// NewEmailVerificationService constructs a verification service with the provided dependencies.
func NewEmailVerificationService(db *gorm.DB, mailer mail.Mailer, opts ...VerificationOption) (*EmailVerificationService, error) {
	if db == nil {
		return nil, errors.New("email verification service: db is required")
	}
	if mailer == nil {
		return nil, errors.New("email verification service: mailer is required")
	}

	service := &EmailVerificationService{
		db:     db,
		mailer: mailer,
		expiry: defaultVerificationExpiry,
		now:    time.Now,
		log:    logger.WithModule("verification"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Send replaces any outstanding token for user and mails a fresh link.
func (s *EmailVerificationService) Send(ctx context.Context, user *models.User) error {
	ctx = ensureContext(ctx)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.issue(ctx, tx, user)
	})
}

// issue runs on tx so signup can roll the account back when the mail fails.
func (s *EmailVerificationService) issue(ctx context.Context, tx *gorm.DB, user *models.User) error {
	if user == nil || user.ID == "" {
		return errors.New("email verification service: user is required")
	}

	token, err := crypto.GenerateHexToken(tokenBytes)
	if err != nil {
		return fmt.Errorf("email verification service: generate token: %w", err)
	}

	if err := tx.Where("user_id = ?", user.ID).Delete(&models.EmailVerification{}).Error; err != nil {
		return fmt.Errorf("email verification service: cleanup existing: %w", err)
	}

	verification := models.EmailVerification{
		UserID:    user.ID,
		TokenHash: crypto.HashToken(token),
		ExpiresAt: s.now().Add(s.expiry),
	}
	if err := tx.Create(&verification).Error; err != nil {
		return fmt.Errorf("email verification service: create token: %w", err)
	}

	msg, err := mail.Compose(user.Email, "Confirm your adpulse account", mail.VerifyEmailData{
		Name:      user.Name,
		Link:      link(s.baseURL, "/confirm-account", token),
		ExpiresIn: s.expiry,
	})
	if err != nil {
		return fmt.Errorf("email verification service: compose email: %w", err)
	}
	if err := s.mailer.Send(ctx, msg); err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
		s.log.Warn("verification email failed", zap.String("user_id", user.ID), zap.Error(err))
		return mailFailure(fmt.Errorf("email verification service: send email: %w", err))
	}
	return nil
}

// Verify consumes token and marks the owning account as verified.
func (s *EmailVerificationService) Verify(ctx context.Context, token string) (*models.User, error) {
	ctx = ensureContext(ctx)

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidOrExpiredToken
	}
	digest := crypto.HashToken(token)
	now := s.now()

	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var verification models.EmailVerification
		err := tx.Where("token_hash = ? AND verified_at IS NULL AND expires_at > ?", digest, now).
			Take(&verification).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidOrExpiredToken
		}
		if err != nil {
			return fmt.Errorf("email verification service: find token: %w", err)
		}

		result := tx.Model(&models.EmailVerification{}).
			Where("id = ? AND verified_at IS NULL", verification.ID).
			Update("verified_at", now)
		if result.Error != nil {
			return fmt.Errorf("email verification service: mark verified: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrInvalidOrExpiredToken
		}

		if err := tx.Model(&models.User{}).
			Where("id = ? AND email_verified IS NULL", verification.UserID).
			Update("email_verified", now).Error; err != nil {
			return fmt.Errorf("email verification service: verify user: %w", err)
		}
		return tx.Take(&user, "id = ?", verification.UserID).Error
	})
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   user.ID,
		Action:   "email.verify",
		Resource: user.ID,
		Result:   models.AuditResultSuccess,
	})
	return &user, nil
}

// Resend mails a new link to the actor unless the address is already confirmed.
func (s *EmailVerificationService) Resend(ctx context.Context, actor Actor) error {
	ctx = ensureContext(ctx)

	if actor.UserID == "" {
		return apperrors.ErrUnauthorized
	}

	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "id = ?", actor.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrUnauthorized
	}
	if err != nil {
		return fmt.Errorf("email verification service: load user: %w", err)
	}
	if user.EmailVerified != nil {
		return ErrEmailAlreadyVerified
	}
	return s.Send(ctx, &user)
}

// PurgeStale deletes consumed tokens and tokens that expired at or before now.
func (s *EmailVerificationService) PurgeStale(ctx context.Context, now time.Time) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("verified_at IS NOT NULL OR expires_at <= ?", now).
		Delete(&models.EmailVerification{})
	if result.Error != nil {
		return 0, fmt.Errorf("email verification service: purge: %w", result.Error)
	}
	return result.RowsAffected, nil
}
