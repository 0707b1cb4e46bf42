package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/charlesng35/adpulse/internal/models"
	apperrors "github.com/charlesng35/adpulse/pkg/errors"
	"github.com/charlesng35/adpulse/pkg/metrics"
)

var (
	// ManagerRoles may administer members, sites and settings.
	ManagerRoles = []string{models.TeamRoleOwner, models.TeamRoleAdmin}
	// AnyRole accepts every active membership.
	AnyRole = []string{models.TeamRoleOwner, models.TeamRoleAdmin, models.TeamRoleMember}
)

// Guard checks an actor's membership before a service touches team data.
type Guard struct {
	db *gorm.DB
}

// NewGuard constructs a Guard.
func NewGuard(db *gorm.DB) (*Guard, error) {
	if db == nil {
		return nil, errors.New("guard: db is required")
	}
	return &Guard{db: db}, nil
}

// RequireTeamRole returns the actor's ACTIVE membership in teamID when its role is one of roles.
func (g *Guard) RequireTeamRole(ctx context.Context, actor Actor, teamID string, roles ...string) (*models.TeamMember, error) {
	return g.requireTeamRole(ensureContext(ctx), g.db, actor, teamID, roles...)
}

// RequireMembership accepts any ACTIVE membership.
func (g *Guard) RequireMembership(ctx context.Context, actor Actor, teamID string) (*models.TeamMember, error) {
	return g.RequireTeamRole(ctx, actor, teamID, AnyRole...)
}

// requireTeamRole runs against db so callers inside a transaction can pass tx.
func (g *Guard) requireTeamRole(ctx context.Context, db *gorm.DB, actor Actor, teamID string, roles ...string) (*models.TeamMember, error) {
	if actor.UserID == "" {
		metrics.TeamRoleChecks.WithLabelValues("unauthenticated").Inc()
		return nil, apperrors.ErrUnauthorized
	}
	if len(roles) == 0 {
		roles = AnyRole
	}

	var member models.TeamMember
	err := db.WithContext(ctx).
		Where("team_id = ? AND user_id = ? AND status = ?", teamID, actor.UserID, models.MemberStatusActive).
		Take(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.TeamRoleChecks.WithLabelValues("denied").Inc()
		return nil, apperrors.ErrForbidden
	}
	if err != nil {
		return nil, fmt.Errorf("guard: load membership: %w", err)
	}

	for _, role := range roles {
		if member.Role == role {
			metrics.TeamRoleChecks.WithLabelValues("allowed").Inc()
			return &member, nil
		}
	}

	metrics.TeamRoleChecks.WithLabelValues("denied").Inc()
	return nil, apperrors.ErrForbidden
}
