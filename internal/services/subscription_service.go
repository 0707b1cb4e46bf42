package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/adpulse/internal/models"
	apperrors "github.com/charlesng35/adpulse/pkg/errors"
)

// UpsertSubscriptionInput sets a team's plan and quotas.
type UpsertSubscriptionInput struct {
	Plan           string
	Status         string
	MaxAdsSites    int
	MaxMetricSites int
}

// SubscriptionService reads and changes a team's plan.
type SubscriptionService struct {
	db    *gorm.DB
	guard *Guard
	audit *AuditService
}

// NewSubscriptionService constructs a SubscriptionService.
func NewSubscriptionService(db *gorm.DB, guard *Guard, audit *AuditService) (*SubscriptionService, error) {
	if db == nil {
		return nil, errors.New("subscription service: db is required")
	}
	if guard == nil {
		return nil, errors.New("subscription service: guard is required")
	}
	return &SubscriptionService{db: db, guard: guard, audit: audit}, nil
}

// Get returns the team's subscription. Members only.
func (s *SubscriptionService) Get(ctx context.Context, actor Actor, teamID string) (*models.Subscription, error) {
	ctx = ensureContext(ctx)

	if _, err := s.guard.RequireMembership(ctx, actor, teamID); err != nil {
		return nil, err
	}

	var subscription models.Subscription
	err := s.db.WithContext(ctx).Where("team_id = ?", teamID).Take(&subscription).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound.WithMessage("Subscription not found")
	}
	if err != nil {
		return nil, fmt.Errorf("subscription service: load subscription: %w", err)
	}
	return &subscription, nil
}

// Upsert creates or replaces the team's subscription. OWNER only.
func (s *SubscriptionService) Upsert(ctx context.Context, actor Actor, teamID string, input UpsertSubscriptionInput) (*models.Subscription, error) {
	ctx = ensureContext(ctx)

	plan := strings.ToUpper(strings.TrimSpace(input.Plan))
	if !models.ValidPlan(plan) {
		return nil, apperrors.NewBadRequest("plan must be BASIC, PRO or ENTERPRISE")
	}
	status := strings.ToUpper(strings.TrimSpace(input.Status))
	if status == "" {
		status = models.SubscriptionActive
	}
	switch status {
	case models.SubscriptionActive, models.SubscriptionCanceled, models.SubscriptionPastDue:
	default:
		return nil, apperrors.NewBadRequest("status must be ACTIVE, CANCELED or PAST_DUE")
	}
	if input.MaxAdsSites < 0 || input.MaxMetricSites < 0 {
		return nil, apperrors.NewBadRequest("site limits cannot be negative")
	}

	if _, err := s.guard.RequireTeamRole(ctx, actor, teamID, models.TeamRoleOwner); err != nil {
		return nil, err
	}

	var subscription models.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("team_id = ?", teamID).Take(&subscription).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			subscription = models.Subscription{TeamID: teamID}
		case err != nil:
			return fmt.Errorf("subscription service: load subscription: %w", err)
		}

		subscription.Plan = plan
		subscription.Status = status
		subscription.MaxAdsSites = input.MaxAdsSites
		subscription.MaxMetricSites = input.MaxMetricSites

		if subscription.ID == "" {
			if err := tx.Create(&subscription).Error; err != nil {
				return fmt.Errorf("subscription service: create subscription: %w", err)
			}
		}
		// Zero quotas would be replaced by column defaults on insert, so they are always written explicitly.
		if err := tx.Model(&models.Subscription{}).Where("id = ?", subscription.ID).Updates(map[string]any{
			"plan":             plan,
			"status":           status,
			"max_ads_sites":    input.MaxAdsSites,
			"max_metric_sites": input.MaxMetricSites,
		}).Error; err != nil {
			return fmt.Errorf("subscription service: update subscription: %w", err)
		}
		subscription.MaxAdsSites = input.MaxAdsSites
		subscription.MaxMetricSites = input.MaxMetricSites
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   actor.UserID,
		TeamID:   teamID,
		Action:   "subscription.change",
		Resource: subscription.ID,
		Result:   models.AuditResultSuccess,
		Metadata: map[string]any{
			"plan":             plan,
			"max_ads_sites":    input.MaxAdsSites,
			"max_metric_sites": input.MaxMetricSites,
		},
	})
	return &subscription, nil
}
