package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/adpulse/internal/models"
	"github.com/charlesng35/adpulse/pkg/crypto"
	apperrors "github.com/charlesng35/adpulse/pkg/errors"
)

// ErrUserNotFound indicates the requested user does not exist.
var ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)

// SignupInput is the local registration form.
type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// ExternalIdentity is a verified login from an OAuth provider.
type ExternalIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// UserOption customises UserService.
type UserOption func(*UserService)

// WithUserPasswordCost sets the bcrypt cost for signups.
func WithUserPasswordCost(cost int) UserOption {
	return func(s *UserService) {
		if cost > 0 {
			s.cost = cost
		}
	}
}

// WithUserClock injects a custom clock primarily for testing.
func WithUserClock(clock func() time.Time) UserOption {
	return func(s *UserService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithUserAudit records signups.
func WithUserAudit(audit *AuditService) UserOption {
	return func(s *UserService) {
		s.audit = audit
	}
}

// UserService registers accounts and provisions their personal team.
type UserService struct {
	db       *gorm.DB
	verifier *EmailVerificationService
	audit    *AuditService
	cost     int
	now      func() time.Time
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB, verifier *EmailVerificationService, opts ...UserOption) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	if verifier == nil {
		return nil, errors.New("user service: verifier is required")
	}
	svc := &UserService{
		db:       db,
		verifier: verifier,
		cost:     crypto.DefaultPasswordCost,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.cost < crypto.MinPasswordCost {
		return nil, crypto.ErrPasswordCostTooLow
	}
	return svc, nil
}

// Signup creates an unverified account with a personal team and mails a confirmation link.
// A failed send rolls the whole registration back.
func (s *UserService) Signup(ctx context.Context, input SignupInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	email := models.NormalizeEmail(input.Email)
	if name == "" {
		return nil, apperrors.NewBadRequest("name is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperrors.NewBadRequest("a valid email is required")
	}
	if len(input.Password) < minPasswordLen {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}

	hash, err := crypto.HashPasswordWithCost(input.Password, s.cost)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := &models.User{Name: name, Email: email, PasswordHash: &hash}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
			return fmt.Errorf("user service: check email: %w", err)
		}
		if existing > 0 {
			return ErrEmailTaken
		}

		if err := tx.Create(user).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrEmailTaken
			}
			return fmt.Errorf("user service: create user: %w", err)
		}
		if err := provisionTeam(tx, newTeam(personalTeamName(name)), user.ID); err != nil {
			return fmt.Errorf("user service: %w", err)
		}
		return s.verifier.issue(ctx, tx, user)
	})
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   user.ID,
		Action:   "user.signup",
		Resource: user.ID,
		Result:   models.AuditResultSuccess,
	})
	return user, nil
}

// FindOrCreateFromIdentity returns the account matching the identity's email,
// creating a password-less verified account with a personal team on first login.
func (s *UserService) FindOrCreateFromIdentity(ctx context.Context, identity ExternalIdentity) (*models.User, bool, error) {
	ctx = ensureContext(ctx)

	email := models.NormalizeEmail(identity.Email)
	if email == "" {
		return nil, false, apperrors.NewBadRequest("identity has no email")
	}
	if !identity.EmailVerified {
		return nil, false, apperrors.ErrForbidden.WithMessage("Email address is not verified with the provider")
	}

	now := s.now()
	var user models.User
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("email = ?", email).Take(&user).Error
		switch {
		case err == nil:
			updates := map[string]any{}
			if user.EmailVerified == nil {
				updates["email_verified"] = now
				user.EmailVerified = &now
			}
			if user.Image == "" && identity.Picture != "" {
				updates["image"] = identity.Picture
				user.Image = identity.Picture
			}
			if len(updates) == 0 {
				return nil
			}
			return tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("user service: lookup user: %w", err)
		}

		name := strings.TrimSpace(identity.Name)
		if name == "" {
			name = email[:strings.Index(email, "@")]
		}
		user = models.User{
			Name:          name,
			Email:         email,
			Image:         identity.Picture,
			EmailVerified: &now,
		}
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("user service: create user: %w", err)
		}
		if err := provisionTeam(tx, newTeam(personalTeamName(name)), user.ID); err != nil {
			return fmt.Errorf("user service: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		recordAudit(s.audit, ctx, AuditEntry{
			UserID:   user.ID,
			Action:   "user.signup",
			Resource: user.ID,
			Result:   models.AuditResultSuccess,
			Metadata: map[string]any{"provider": "google"},
		})
	}
	return &user, created, nil
}

// GetByID loads a user.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get user: %w", err)
	}
	return &user, nil
}

func personalTeamName(name string) string {
	return name + "'s Team"
}
