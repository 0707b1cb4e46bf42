package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/adpulse/internal/models"
	apperrors "github.com/charlesng35/adpulse/pkg/errors"
)

// CreateSiteInput describes a new monitored property. Users lists the ids of
// team members who receive MEMBER access next to the creator.
type CreateSiteInput struct {
	Name  string
	URL   string
	Users []string
}

// UpdateSiteInput lists mutable site fields.
type UpdateSiteInput struct {
	Name   *string
	URL    *string
	Status *string
}

// SiteOption customises SiteService.
type SiteOption func(*SiteService)

// WithSiteAudit records site lifecycle events.
func WithSiteAudit(audit *AuditService) SiteOption {
	return func(s *SiteService) {
		s.audit = audit
	}
}

// SiteService manages a team's sites within its subscription quota.
type SiteService struct {
	db    *gorm.DB
	guard *Guard
	audit *AuditService
}

// NewSiteService constructs a SiteService.
func NewSiteService(db *gorm.DB, guard *Guard, opts ...SiteOption) (*SiteService, error) {
	if db == nil {
		return nil, errors.New("site service: db is required")
	}
	if guard == nil {
		return nil, errors.New("site service: guard is required")
	}
	svc := &SiteService{db: db, guard: guard}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// List returns the team's sites ordered by name.
func (s *SiteService) List(ctx context.Context, actor Actor, teamID string) ([]models.Site, error) {
	ctx = ensureContext(ctx)

	if _, err := s.guard.RequireMembership(ctx, actor, teamID); err != nil {
		return nil, err
	}

	var sites []models.Site
	if err := s.db.WithContext(ctx).
		Where("team_id = ?", teamID).
		Order("name ASC").
		Find(&sites).Error; err != nil {
		return nil, fmt.Errorf("site service: list sites: %w", err)
	}
	return sites, nil
}

// Create adds a site when the subscription quota allows it. The creator receives ADMIN
// access; listed users must be ACTIVE members of the team.
func (s *SiteService) Create(ctx context.Context, actor Actor, teamID string, input CreateSiteInput) (*models.Site, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("site name is required")
	}
	siteURL, err := normaliseSiteURL(input.URL)
	if err != nil {
		return nil, err
	}

	if _, err := s.guard.RequireTeamRole(ctx, actor, teamID, ManagerRoles...); err != nil {
		return nil, err
	}
	grantees := siteGrantees(input.Users, actor.UserID)

	site := &models.Site{TeamID: teamID, Name: name, URL: siteURL, Status: models.SiteStatusActive}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var subscription models.Subscription
		err := tx.Where("team_id = ?", teamID).Take(&subscription).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubscriptionRequired
		}
		if err != nil {
			return fmt.Errorf("site service: load subscription: %w", err)
		}
		if subscription.Status != models.SubscriptionActive {
			return ErrSubscriptionRequired
		}

		var count int64
		if err := tx.Model(&models.Site{}).Where("team_id = ?", teamID).Count(&count).Error; err != nil {
			return fmt.Errorf("site service: count sites: %w", err)
		}
		if count >= int64(subscription.MaxAdsSites) {
			return ErrSiteLimitReached.WithMessage(
				fmt.Sprintf("Site limit reached: your plan allows %d site(s)", subscription.MaxAdsSites))
		}

		if err := tx.Create(site).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrSiteURLTaken
			}
			return fmt.Errorf("site service: create site: %w", err)
		}

		grants := []models.SiteUser{{SiteID: site.ID, UserID: actor.UserID, Role: models.SiteRoleAdmin}}
		if len(grantees) > 0 {
			var active int64
			if err := tx.Model(&models.TeamMember{}).
				Where("team_id = ? AND status = ? AND user_id IN ?", teamID, models.MemberStatusActive, grantees).
				Count(&active).Error; err != nil {
				return fmt.Errorf("site service: check site users: %w", err)
			}
			if active != int64(len(grantees)) {
				return ErrSiteUserNotMember
			}
			for _, userID := range grantees {
				grants = append(grants, models.SiteUser{SiteID: site.ID, UserID: userID, Role: models.SiteRoleMember})
			}
		}
		if err := tx.Create(&grants).Error; err != nil {
			return fmt.Errorf("site service: grant site access: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   actor.UserID,
		TeamID:   teamID,
		Action:   "site.create",
		Resource: site.ID,
		Result:   models.AuditResultSuccess,
		Metadata: map[string]any{"url": site.URL},
	})
	return site, nil
}

// Get returns one site of the team with its access grants.
func (s *SiteService) Get(ctx context.Context, actor Actor, teamID, siteID string) (*models.Site, error) {
	ctx = ensureContext(ctx)

	if _, err := s.guard.RequireMembership(ctx, actor, teamID); err != nil {
		return nil, err
	}
	return s.load(ctx, teamID, siteID, true)
}

// Update changes a site's name, URL or status. URLs stay globally unique.
func (s *SiteService) Update(ctx context.Context, actor Actor, teamID, siteID string, input UpdateSiteInput) (*models.Site, error) {
	ctx = ensureContext(ctx)

	if _, err := s.guard.RequireTeamRole(ctx, actor, teamID, ManagerRoles...); err != nil {
		return nil, err
	}
	site, err := s.load(ctx, teamID, siteID, false)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewBadRequest("site name cannot be empty")
		}
		updates["name"] = name
	}
	if input.URL != nil {
		siteURL, err := normaliseSiteURL(*input.URL)
		if err != nil {
			return nil, err
		}
		if siteURL != site.URL {
			var taken int64
			if err := s.db.WithContext(ctx).Model(&models.Site{}).
				Where("url = ? AND id <> ?", siteURL, site.ID).Count(&taken).Error; err != nil {
				return nil, fmt.Errorf("site service: check url: %w", err)
			}
			if taken > 0 {
				return nil, ErrSiteURLTaken
			}
			updates["url"] = siteURL
		}
	}
	if input.Status != nil {
		status := strings.ToUpper(strings.TrimSpace(*input.Status))
		if status != models.SiteStatusActive && status != models.SiteStatusInactive {
			return nil, apperrors.NewBadRequest("status must be ACTIVE or INACTIVE")
		}
		updates["status"] = status
	}

	if len(updates) == 0 {
		return site, nil
	}
	if err := s.db.WithContext(ctx).Model(&models.Site{}).Where("id = ?", site.ID).Updates(updates).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrSiteURLTaken
		}
		return nil, fmt.Errorf("site service: update site: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   actor.UserID,
		TeamID:   teamID,
		Action:   "site.update",
		Resource: site.ID,
		Result:   models.AuditResultSuccess,
		Metadata: updates,
	})
	return s.load(ctx, teamID, siteID, false)
}

// Delete removes a site and its access grants.
func (s *SiteService) Delete(ctx context.Context, actor Actor, teamID, siteID string) error {
	ctx = ensureContext(ctx)

	if _, err := s.guard.RequireTeamRole(ctx, actor, teamID, ManagerRoles...); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("site_id = ?", siteID).Delete(&models.SiteUser{}).Error; err != nil {
			return fmt.Errorf("site service: delete site users: %w", err)
		}
		result := tx.Where("id = ? AND team_id = ?", siteID, teamID).Delete(&models.Site{})
		if result.Error != nil {
			return fmt.Errorf("site service: delete site: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrSiteNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   actor.UserID,
		TeamID:   teamID,
		Action:   "site.delete",
		Resource: siteID,
		Result:   models.AuditResultSuccess,
	})
	return nil
}

func (s *SiteService) load(ctx context.Context, teamID, siteID string, withUsers bool) (*models.Site, error) {
	query := s.db.WithContext(ctx)
	if withUsers {
		query = query.Preload("Users")
	}

	var site models.Site
	err := query.Where("id = ? AND team_id = ?", siteID, teamID).Take(&site).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSiteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("site service: load site: %w", err)
	}
	return &site, nil
}

// siteGrantees trims and dedupes user ids, dropping the creator who already gets ADMIN.
func siteGrantees(userIDs []string, creator string) []string {
	var out []string
	for _, id := range userIDs {
		id = strings.TrimSpace(id)
		if id == "" || id == creator || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}

func normaliseSiteURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", apperrors.NewBadRequest("url must be an absolute http(s) URL")
	}
	parsed.Host = strings.ToLower(parsed.Host)
	return strings.TrimRight(parsed.String(), "/"), nil
}
