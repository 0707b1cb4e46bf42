package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/adpulse/internal/cache"
	"github.com/charlesng35/adpulse/internal/models"
	apperrors "github.com/charlesng35/adpulse/pkg/errors"
	"github.com/charlesng35/adpulse/pkg/logger"
)

// CreateTeamInput captures new team metadata.
type CreateTeamInput struct {
	Name           string
	AllowedDomains []string
	Language       string
	Timezone       string
	Currency       string
}

// UpdateTeamInput describes mutable team fields. Nil pointers leave a field unchanged.
type UpdateTeamInput struct {
	Name           *string
	AllowedDomains *[]string
	Language       *string
	Timezone       *string
	AutoTimezone   *bool
	Currency       *string
}

// TeamOption customises TeamService.
type TeamOption func(*TeamService)

// WithTeamAudit records team lifecycle events.
func WithTeamAudit(audit *AuditService) TeamOption {
	return func(s *TeamService) {
		s.audit = audit
	}
}

// WithTeamInviteCache evicts the invite previews of a deleted team's pending invites.
// Pass the same store given to WithInviteCache.
func WithTeamInviteCache(store cache.Store) TeamOption {
	return func(s *TeamService) {
		s.inviteCache = store
	}
}

// TeamService handles team lifecycle and membership listing.
type TeamService struct {
	db          *gorm.DB
	guard       *Guard
	audit       *AuditService
	inviteCache cache.Store
}

// NewTeamService constructs a TeamService instance.
func NewTeamService(db *gorm.DB, guard *Guard, opts ...TeamOption) (*TeamService, error) {
	if db == nil {
		return nil, errors.New("team service: db is required")
	}
	if guard == nil {
		return nil, errors.New("team service: guard is required")
	}
	svc := &TeamService{db: db, guard: guard}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// List returns the teams where the actor holds an ACTIVE membership.
func (s *TeamService) List(ctx context.Context, actor Actor) ([]models.Team, error) {
	ctx = ensureContext(ctx)

	if actor.UserID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	memberships := s.db.Model(&models.TeamMember{}).Select("team_id").
		Where("user_id = ? AND status = ?", actor.UserID, models.MemberStatusActive)

	var teams []models.Team
	if err := s.db.WithContext(ctx).
		Preload("Subscription").
		Where("id IN (?)", memberships).
		Order("created_at ASC").
		Find(&teams).Error; err != nil {
		return nil, fmt.Errorf("team service: list teams: %w", err)
	}
	return teams, nil
}

// Create registers a new team owned by the actor, with a BASIC subscription.
func (s *TeamService) Create(ctx context.Context, actor Actor, input CreateTeamInput) (*models.Team, error) {
	ctx = ensureContext(ctx)

	if actor.UserID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("team name is required")
	}

	team := newTeam(name)
	if domains := normaliseDomains(input.AllowedDomains); len(domains) > 0 {
		team.AllowedDomains = stringPtr(strings.Join(domains, ","))
	}
	if v := strings.TrimSpace(input.Language); v != "" {
		team.Language = v
	}
	if v := strings.TrimSpace(input.Timezone); v != "" {
		team.Timezone = v
	}
	if v := strings.TrimSpace(input.Currency); v != "" {
		team.Currency = strings.ToUpper(v)
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return provisionTeam(tx, team, actor.UserID)
	}); err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   actor.UserID,
		TeamID:   team.ID,
		Action:   "team.create",
		Resource: team.ID,
		Result:   models.AuditResultSuccess,
		Metadata: map[string]any{"name": team.Name},
	})
	return team, nil
}

// Get loads a team with its members, sites and subscription. Members only.
func (s *TeamService) Get(ctx context.Context, actor Actor, teamID string) (*models.Team, error) {
	ctx = ensureContext(ctx)

	if _, err := s.guard.RequireMembership(ctx, actor, teamID); err != nil {
		return nil, err
	}

	var team models.Team
	err := s.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		Preload("Members.User").
		Preload("Sites").
		Preload("Subscription").
		Take(&team, "id = ?", teamID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTeamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("team service: get team: %w", err)
	}
	return &team, nil
}

// Update modifies team settings. OWNER or ADMIN only.
func (s *TeamService) Update(ctx context.Context, actor Actor, teamID string, input UpdateTeamInput) (*models.Team, error) {
	ctx = ensureContext(ctx)

	if _, err := s.guard.RequireTeamRole(ctx, actor, teamID, ManagerRoles...); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewBadRequest("team name cannot be empty")
		}
		updates["name"] = name
	}
	if input.AllowedDomains != nil {
		if domains := normaliseDomains(*input.AllowedDomains); len(domains) > 0 {
			updates["allowed_domains"] = strings.Join(domains, ",")
		} else {
			updates["allowed_domains"] = nil
		}
	}
	if input.Language != nil {
		updates["language"] = strings.TrimSpace(*input.Language)
	}
	if input.Timezone != nil {
		updates["timezone"] = strings.TrimSpace(*input.Timezone)
	}
	if input.AutoTimezone != nil {
		updates["auto_timezone"] = *input.AutoTimezone
	}
	if input.Currency != nil {
		updates["currency"] = strings.ToUpper(strings.TrimSpace(*input.Currency))
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.Team{}).Where("id = ?", teamID).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("team service: update team: %w", err)
		}
	}

	var team models.Team
	if err := s.db.WithContext(ctx).Take(&team, "id = ?", teamID).Error; err != nil {
		return nil, fmt.Errorf("team service: reload team: %w", err)
	}

	if len(updates) > 0 {
		recordAudit(s.audit, ctx, AuditEntry{
			UserID:   actor.UserID,
			TeamID:   teamID,
			Action:   "team.update",
			Resource: teamID,
			Result:   models.AuditResultSuccess,
			Metadata: updates,
		})
	}
	return &team, nil
}

// Delete removes the team with its members, sites, site grants and subscription. OWNER only.
func (s *TeamService) Delete(ctx context.Context, actor Actor, teamID string) error {
	ctx = ensureContext(ctx)

	if _, err := s.guard.RequireTeamRole(ctx, actor, teamID, models.TeamRoleOwner); err != nil {
		return err
	}

	var pendingDigests []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.TeamMember{}).
			Where("team_id = ? AND status = ? AND invite_token_hash IS NOT NULL", teamID, models.MemberStatusPending).
			Pluck("invite_token_hash", &pendingDigests).Error; err != nil {
			return fmt.Errorf("team service: load pending invites: %w", err)
		}

		siteIDs := tx.Model(&models.Site{}).Select("id").Where("team_id = ?", teamID)
		if err := tx.Where("site_id IN (?)", siteIDs).Delete(&models.SiteUser{}).Error; err != nil {
			return fmt.Errorf("team service: delete site users: %w", err)
		}
		for _, model := range []any{&models.Site{}, &models.TeamMember{}, &models.Subscription{}} {
			if err := tx.Where("team_id = ?", teamID).Delete(model).Error; err != nil {
				return fmt.Errorf("team service: delete team data: %w", err)
			}
		}
		result := tx.Delete(&models.Team{}, "id = ?", teamID)
		if result.Error != nil {
			return fmt.Errorf("team service: delete team: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrTeamNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.inviteCache != nil && len(pendingDigests) > 0 {
		keys := make([]string, len(pendingDigests))
		for i, digest := range pendingDigests {
			keys[i] = inviteCacheKey(digest)
		}
		if err := s.inviteCache.Delete(ctx, keys...); err != nil {
			logger.WithModule("teams").Warn("failed to evict invite previews",
				zap.String("team_id", teamID), zap.Int("invites", len(keys)), zap.Error(err))
		}
	}

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   actor.UserID,
		Action:   "team.delete",
		Resource: teamID,
		Result:   models.AuditResultSuccess,
	})
	return nil
}

// ListMembers returns every membership row of the team, pending invites included, newest first.
func (s *TeamService) ListMembers(ctx context.Context, actor Actor, teamID string) ([]models.TeamMember, error) {
	ctx = ensureContext(ctx)

	if _, err := s.guard.RequireMembership(ctx, actor, teamID); err != nil {
		return nil, err
	}

	var members []models.TeamMember
	if err := s.db.WithContext(ctx).
		Preload("User").
		Where("team_id = ? AND status <> ?", teamID, models.MemberStatusExpired).
		Order("created_at DESC").
		Find(&members).Error; err != nil {
		return nil, fmt.Errorf("team service: list members: %w", err)
	}
	return members, nil
}

func newTeam(name string) *models.Team {
	return &models.Team{
		Name:         name,
		Language:     "pt-BR",
		Timezone:     "America/Sao_Paulo",
		AutoTimezone: true,
		Currency:     "BRL",
	}
}

// provisionTeam creates team with an ACTIVE OWNER membership for ownerID and a BASIC subscription.
func provisionTeam(tx *gorm.DB, team *models.Team, ownerID string) error {
	if err := tx.Create(team).Error; err != nil {
		return fmt.Errorf("create team: %w", err)
	}

	owner := models.TeamMember{
		TeamID: team.ID,
		UserID: stringPtr(ownerID),
		Role:   models.TeamRoleOwner,
		Status: models.MemberStatusActive,
	}
	if err := tx.Create(&owner).Error; err != nil {
		return fmt.Errorf("create owner membership: %w", err)
	}

	subscription := models.Subscription{
		TeamID:         team.ID,
		Plan:           models.PlanBasic,
		Status:         models.SubscriptionActive,
		MaxAdsSites:    models.DefaultMaxAdsSites,
		MaxMetricSites: models.DefaultMaxMetricSites,
	}
	if err := tx.Create(&subscription).Error; err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	team.Subscription = &subscription
	return nil
}
