package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/adpulse/internal/cache"
	"github.com/charlesng35/adpulse/internal/models"
	"github.com/charlesng35/adpulse/pkg/crypto"
	apperrors "github.com/charlesng35/adpulse/pkg/errors"
	"github.com/charlesng35/adpulse/pkg/logger"
	"github.com/charlesng35/adpulse/pkg/mail"
	"github.com/charlesng35/adpulse/pkg/metrics"
)

const (
	defaultInviteTTL = 7 * 24 * time.Hour
	inviteCacheTTL   = 5 * time.Minute
)

// InviteSummary is the public view of a pending invitation. It never carries the token.
type InviteSummary struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
	InvitedBy *string   `json:"invitedBy,omitempty"`
}

// InviteTeam identifies the team an invitation belongs to.
type InviteTeam struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// InviteInfo is shown on the registration page before an invite is accepted.
type InviteInfo struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	ExpiresAt time.Time  `json:"expiresAt"`
	Team      InviteTeam `json:"team"`
}

// AcceptInviteInput carries the registration form submitted with an invite token.
type AcceptInviteInput struct {
	Token    string
	Name     string
	Email    string
	Password string
}

// AcceptInviteResult describes the membership created by an accepted invite.
type AcceptInviteResult struct {
	UserID   string `json:"userId"`
	TeamID   string `json:"teamId"`
	TeamName string `json:"teamName"`
}

// InviteOption customises InviteService behaviour.
type InviteOption func(*InviteService)

// WithInviteBaseURL configures the base URL used to create invite hyperlinks.
func WithInviteBaseURL(url string) InviteOption {
	return func(s *InviteService) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithInviteTTL overrides the invite token lifetime.
func WithInviteTTL(d time.Duration) InviteOption {
	return func(s *InviteService) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithInvitePasswordCost sets the bcrypt cost for accounts created by accepting an invite.
func WithInvitePasswordCost(cost int) InviteOption {
	return func(s *InviteService) {
		if cost > 0 {
			s.cost = cost
		}
	}
}

// WithInviteClock injects a custom clock primarily for testing.
func WithInviteClock(clock func() time.Time) InviteOption {
	return func(s *InviteService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithInviteAudit records invitation and membership changes.
func WithInviteAudit(audit *AuditService) InviteOption {
	return func(s *InviteService) {
		s.audit = audit
	}
}

// WithInviteCache caches invite previews served by VerifyInvite.
func WithInviteCache(store cache.Store) InviteOption {
	return func(s *InviteService) {
		s.cache = store
	}
}

// InviteService manages team invitations and the memberships they turn into.
type InviteService struct {
	db      *gorm.DB
	mailer  mail.Mailer
	guard   *Guard
	audit   *AuditService
	cache   cache.Store
	baseURL string
	ttl     time.Duration
	cost    int
	now     func() time.Time
	log     *zap.Logger
}

// NewInviteService constructs an InviteService with the provided dependencies.
func NewInviteService(db *gorm.DB, mailer mail.Mailer, guard *Guard, opts ...InviteOption) (*InviteService, error) {
	if db == nil {
		return nil, errors.New("invite service: db is required")
	}
	if mailer == nil {
		return nil, errors.New("invite service: mailer is required")
	}
	if guard == nil {
		return nil, errors.New("invite service: guard is required")
	}

	svc := &InviteService{
		db:     db,
		mailer: mailer,
		guard:  guard,
		ttl:    defaultInviteTTL,
		cost:   crypto.DefaultPasswordCost,
		now:    time.Now,
		log:    logger.WithModule("invites"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreateInvite records a PENDING membership for email and mails the invitation link.
func (s *InviteService) CreateInvite(ctx context.Context, actor Actor, teamID, email, role string) (*InviteSummary, error) {
	ctx = ensureContext(ctx)

	email = models.NormalizeEmail(email)
	role = strings.ToUpper(strings.TrimSpace(role))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperrors.NewBadRequest("a valid email is required")
	}
	if !models.ValidTeamRole(role) {
		return nil, apperrors.NewBadRequest("role must be OWNER, ADMIN or MEMBER")
	}

	inviter, err := s.guard.RequireTeamRole(ctx, actor, teamID, ManagerRoles...)
	if err != nil {
		return nil, err
	}
	if role == models.TeamRoleOwner && inviter.Role != models.TeamRoleOwner {
		return nil, apperrors.ErrForbidden.WithMessage("Only owners can invite owners")
	}

	team, err := s.loadTeam(ctx, s.db, teamID)
	if err != nil {
		return nil, err
	}
	if !team.AllowsEmail(email) {
		return nil, domainNotAllowed(team)
	}

	token, err := crypto.GenerateHexToken(tokenBytes)
	if err != nil {
		return nil, fmt.Errorf("invite service: generate token: %w", err)
	}

	now := s.now()
	invite := models.TeamMember{
		TeamID:          team.ID,
		Role:            role,
		Status:          models.MemberStatusPending,
		InviteEmail:     stringPtr(email),
		InviteTokenHash: stringPtr(crypto.HashToken(token)),
		InviteExpires:   timePtr(now.Add(s.ttl)),
		InvitedBy:       stringPtr(actor.UserID),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := expirePending(tx, now, "team_id = ? AND invite_email = ?", team.ID, email); err != nil {
			return err
		}

		duplicate, err := s.hasOpenMembership(tx, team.ID, email, now)
		if err != nil {
			return err
		}
		if duplicate {
			return ErrDuplicateInvite
		}

		var existing models.User
		err = tx.Select("id").Where("email = ?", email).Take(&existing).Error
		switch {
		case err == nil:
			invite.UserID = stringPtr(existing.ID)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("invite service: lookup user: %w", err)
		}

		if err := tx.Create(&invite).Error; err != nil {
			return fmt.Errorf("invite service: create invite: %w", err)
		}

		inviterName := actor.Email
		var inviterUser models.User
		if err := tx.Select("name", "email").Take(&inviterUser, "id = ?", actor.UserID).Error; err == nil && inviterUser.Name != "" {
			inviterName = inviterUser.Name
		}

		msg, err := mail.Compose(email, "Invitation to "+team.Name, mail.TeamInviteData{
			TeamName:    team.Name,
			InviterName: inviterName,
			Role:        role,
			Link:        link(s.baseURL, "/register", token),
			ExpiresIn:   s.ttl,
		})
		if err != nil {
			return fmt.Errorf("invite service: compose email: %w", err)
		}
		// Returning the send error rolls the invite back.
		if err := s.mailer.Send(ctx, msg); err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
			s.log.Warn("invite email failed", zap.String("team_id", team.ID), zap.Error(err))
			return mailFailure(fmt.Errorf("invite service: send email: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Invites.WithLabelValues("created").Inc()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   actor.UserID,
		TeamID:   team.ID,
		Action:   "invite.create",
		Resource: invite.ID,
		Result:   models.AuditResultSuccess,
		Metadata: map[string]any{"role": role},
	})

	return summarise(invite), nil
}

// VerifyInvite returns display details for a PENDING, unexpired invite without changing it.
func (s *InviteService) VerifyInvite(ctx context.Context, token string) (*InviteInfo, error) {
	ctx = ensureContext(ctx)

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidOrExpiredInvite
	}
	digest := crypto.HashToken(token)
	now := s.now()

	if info := s.cachedInvite(ctx, digest); info != nil && now.Before(info.ExpiresAt) {
		return info, nil
	}

	var invite models.TeamMember
	err := s.db.WithContext(ctx).Preload("Team").
		Where("invite_token_hash = ? AND status = ? AND invite_expires > ?", digest, models.MemberStatusPending, now).
		Take(&invite).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidOrExpiredInvite
	}
	if err != nil {
		return nil, fmt.Errorf("invite service: load invite: %w", err)
	}

	info := &InviteInfo{
		ID:        invite.ID,
		Email:     stringValue(invite.InviteEmail),
		Role:      invite.Role,
		ExpiresAt: *invite.InviteExpires,
	}
	if invite.Team != nil {
		info.Team = InviteTeam{ID: invite.Team.ID, Name: invite.Team.Name}
	}
	s.cacheInvite(ctx, digest, info, now)
	return info, nil
}

// AcceptInvite turns a PENDING invite into an ACTIVE membership, creating the
// account when no user owns the email yet.
func (s *InviteService) AcceptInvite(ctx context.Context, input AcceptInviteInput) (*AcceptInviteResult, error) {
	ctx = ensureContext(ctx)

	token := strings.TrimSpace(input.Token)
	if token == "" {
		return nil, ErrInvalidOrExpiredInvite
	}
	digest := crypto.HashToken(token)
	now := s.now()

	var record models.TeamMember
	err := s.db.WithContext(ctx).
		Where("invite_token_hash = ? AND status = ?", digest, models.MemberStatusPending).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidOrExpiredInvite
	}
	if err != nil {
		return nil, fmt.Errorf("invite service: load invite: %w", err)
	}

	membership, err := MembershipFromRecord(record)
	if err != nil {
		s.log.Warn("rejecting malformed invite", zap.String("invite_id", record.ID), zap.Error(err))
		return nil, ErrInvalidOrExpiredInvite
	}
	pending, ok := membership.(PendingMembership)
	if !ok {
		return nil, ErrInvalidOrExpiredInvite
	}
	if pending.ExpiredAt(now) {
		if n, err := expirePending(s.db.WithContext(ctx), now, "id = ?", record.ID); err == nil && n > 0 {
			metrics.Invites.WithLabelValues("expired").Add(float64(n))
		}
		s.forgetInvite(ctx, digest)
		return nil, ErrInvalidOrExpiredInvite
	}

	email := models.NormalizeEmail(input.Email)
	if email == "" {
		email = pending.Email
	}
	if pending.Email != "" && email != pending.Email {
		return nil, ErrEmailMismatch
	}
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}

	team, err := s.loadTeam(ctx, s.db, pending.TeamID)
	if err != nil {
		return nil, err
	}
	if !team.AllowsEmail(email) {
		return nil, domainNotAllowed(team)
	}

	var existing models.User
	err = s.db.WithContext(ctx).Where("email = ?", email).Take(&existing).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("invite service: lookup user: %w", err)
	}
	var passwordHash string
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if strings.TrimSpace(input.Name) == "" {
			return nil, apperrors.NewBadRequest("name is required")
		}
		if len(input.Password) < minPasswordLen {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("password must be at least %d characters", minPasswordLen))
		}
		if passwordHash, err = crypto.HashPasswordWithCost(input.Password, s.cost); err != nil {
			return nil, fmt.Errorf("invite service: hash password: %w", err)
		}
	}

	var userID string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		err := tx.Where("email = ?", email).Take(&user).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if passwordHash == "" {
				return ErrInvalidOrExpiredInvite
			}
			user = models.User{
				Name:          strings.TrimSpace(input.Name),
				Email:         email,
				PasswordHash:  stringPtr(passwordHash),
				EmailVerified: timePtr(now),
			}
			if err := tx.Create(&user).Error; err != nil {
				if isUniqueConstraintError(err) {
					return ErrEmailTaken
				}
				return fmt.Errorf("invite service: create user: %w", err)
			}
		case err != nil:
			return fmt.Errorf("invite service: lookup user: %w", err)
		case user.EmailVerified == nil:
			if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Update("email_verified", now).Error; err != nil {
				return fmt.Errorf("invite service: verify email: %w", err)
			}
		}

		// Conditional on the token still being pending so concurrent accepts race to a single winner.
		result := tx.Model(&models.TeamMember{}).
			Where("id = ? AND status = ? AND invite_token_hash = ? AND invite_expires > ?",
				record.ID, models.MemberStatusPending, digest, now).
			Updates(map[string]any{
				"user_id":           user.ID,
				"status":            models.MemberStatusActive,
				"invite_token_hash": nil,
				"invite_expires":    nil,
				"invite_email":      nil,
			})
		if result.Error != nil {
			return fmt.Errorf("invite service: activate membership: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrInvalidOrExpiredInvite
		}

		var active int64
		if err := tx.Model(&models.TeamMember{}).
			Where("team_id = ? AND user_id = ? AND status = ? AND id <> ?", team.ID, user.ID, models.MemberStatusActive, record.ID).
			Count(&active).Error; err != nil {
			return fmt.Errorf("invite service: check membership: %w", err)
		}
		if active > 0 {
			return ErrDuplicateInvite
		}

		userID = user.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.forgetInvite(ctx, digest)
	metrics.Invites.WithLabelValues("accepted").Inc()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   userID,
		TeamID:   team.ID,
		Action:   "invite.accept",
		Resource: record.ID,
		Result:   models.AuditResultSuccess,
	})

	return &AcceptInviteResult{UserID: userID, TeamID: team.ID, TeamName: team.Name}, nil
}

// ListPending returns the team's open invitations, newest first. Lapsed
// invitations are marked EXPIRED on the way.
func (s *InviteService) ListPending(ctx context.Context, actor Actor, teamID string) ([]InviteSummary, error) {
	ctx = ensureContext(ctx)

	if _, err := s.guard.RequireTeamRole(ctx, actor, teamID, ManagerRoles...); err != nil {
		return nil, err
	}

	now := s.now()
	expired, err := expirePending(s.db.WithContext(ctx), now, "team_id = ?", teamID)
	if err != nil {
		return nil, err
	}
	if expired > 0 {
		metrics.Invites.WithLabelValues("expired").Add(float64(expired))
	}

	var rows []models.TeamMember
	if err := s.db.WithContext(ctx).
		Where("team_id = ? AND status = ?", teamID, models.MemberStatusPending).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("invite service: list invites: %w", err)
	}

	out := make([]InviteSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, *summarise(row))
	}
	return out, nil
}

// RevokeInvite deletes a PENDING invitation.
func (s *InviteService) RevokeInvite(ctx context.Context, actor Actor, teamID, inviteID string) error {
	ctx = ensureContext(ctx)

	if _, err := s.guard.RequireTeamRole(ctx, actor, teamID, ManagerRoles...); err != nil {
		return err
	}

	var invite models.TeamMember
	err := s.db.WithContext(ctx).
		Where("id = ? AND team_id = ? AND status = ?", inviteID, teamID, models.MemberStatusPending).
		Take(&invite).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrMemberNotFound.WithMessage("Invitation not found")
	}
	if err != nil {
		return fmt.Errorf("invite service: load invite: %w", err)
	}

	result := s.db.WithContext(ctx).
		Where("id = ? AND status = ?", invite.ID, models.MemberStatusPending).
		Delete(&models.TeamMember{})
	if result.Error != nil {
		return fmt.Errorf("invite service: revoke invite: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrMemberNotFound.WithMessage("Invitation not found")
	}

	if invite.InviteTokenHash != nil {
		s.forgetInvite(ctx, *invite.InviteTokenHash)
	}
	metrics.Invites.WithLabelValues("revoked").Inc()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   actor.UserID,
		TeamID:   teamID,
		Action:   "invite.revoke",
		Resource: invite.ID,
		Result:   models.AuditResultSuccess,
	})
	return nil
}

// RemoveMember deletes a membership or a pending invitation. Members may
// always remove themselves; removing anyone else needs OWNER or ADMIN.
func (s *InviteService) RemoveMember(ctx context.Context, actor Actor, teamID, memberID string) error {
	ctx = ensureContext(ctx)

	actorMember, err := s.guard.RequireMembership(ctx, actor, teamID)
	if err != nil {
		return err
	}

	var removed models.TeamMember
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target models.TeamMember
		err := tx.Where("id = ? AND team_id = ?", memberID, teamID).Take(&target).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMemberNotFound
		}
		if err != nil {
			return fmt.Errorf("invite service: load member: %w", err)
		}

		self := target.UserID != nil && *target.UserID == actor.UserID && target.Status == models.MemberStatusActive
		manager := actorMember.Role == models.TeamRoleOwner || actorMember.Role == models.TeamRoleAdmin
		if !self && !manager {
			return apperrors.ErrForbidden
		}

		if target.Status == models.MemberStatusActive && target.Role == models.TeamRoleOwner {
			owners, err := countActiveOwners(tx, teamID)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return ErrLastOwnerProtected
			}
		}

		if err := tx.Delete(&models.TeamMember{}, "id = ?", target.ID).Error; err != nil {
			return fmt.Errorf("invite service: delete member: %w", err)
		}

		if target.UserID != nil && !(self && manager) {
			siteIDs := tx.Model(&models.Site{}).Select("id").Where("team_id = ?", teamID)
			if err := tx.Where("user_id = ? AND site_id IN (?)", *target.UserID, siteIDs).
				Delete(&models.SiteUser{}).Error; err != nil {
				return fmt.Errorf("invite service: delete site access: %w", err)
			}
		}

		removed = target
		return nil
	})
	if err != nil {
		return err
	}

	action := "member.remove"
	if removed.Status == models.MemberStatusPending {
		action = "invite.revoke"
		metrics.Invites.WithLabelValues("revoked").Inc()
		if removed.InviteTokenHash != nil {
			s.forgetInvite(ctx, *removed.InviteTokenHash)
		}
	}
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   actor.UserID,
		TeamID:   teamID,
		Action:   action,
		Resource: removed.ID,
		Result:   models.AuditResultSuccess,
		Metadata: map[string]any{"role": removed.Role, "status": removed.Status},
	})
	return nil
}

// ChangeRole updates an ACTIVE member's role. Only owners may touch the OWNER role.
func (s *InviteService) ChangeRole(ctx context.Context, actor Actor, teamID, memberID, newRole string) (*models.TeamMember, error) {
	ctx = ensureContext(ctx)

	newRole = strings.ToUpper(strings.TrimSpace(newRole))
	if !models.ValidTeamRole(newRole) {
		return nil, apperrors.NewBadRequest("role must be OWNER, ADMIN or MEMBER")
	}

	actorMember, err := s.guard.RequireTeamRole(ctx, actor, teamID, ManagerRoles...)
	if err != nil {
		return nil, err
	}

	var updated models.TeamMember
	var previous string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND team_id = ?", memberID, teamID).Take(&updated).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMemberNotFound
		}
		if err != nil {
			return fmt.Errorf("invite service: load member: %w", err)
		}
		if updated.Status != models.MemberStatusActive {
			return apperrors.NewBadRequest("only active members can change role")
		}

		if (updated.Role == models.TeamRoleOwner || newRole == models.TeamRoleOwner) &&
			actorMember.Role != models.TeamRoleOwner {
			return apperrors.ErrForbidden.WithMessage("Only owners can change the owner role")
		}

		if updated.Role == models.TeamRoleOwner && newRole != models.TeamRoleOwner {
			owners, err := countActiveOwners(tx, teamID)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return ErrLastOwnerProtected
			}
		}

		previous = updated.Role
		if previous == newRole {
			return nil
		}
		if err := tx.Model(&models.TeamMember{}).Where("id = ?", updated.ID).Update("role", newRole).Error; err != nil {
			return fmt.Errorf("invite service: update role: %w", err)
		}
		updated.Role = newRole
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   actor.UserID,
		TeamID:   teamID,
		Action:   "member.role_change",
		Resource: updated.ID,
		Result:   models.AuditResultSuccess,
		Metadata: map[string]any{"from": previous, "to": newRole},
	})
	return &updated, nil
}

// ExpireStale marks every PENDING invitation whose expiry is at or before now as EXPIRED.
func (s *InviteService) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	ctx = ensureContext(ctx)

	n, err := expirePending(s.db.WithContext(ctx), now, "1 = 1")
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.Invites.WithLabelValues("expired").Add(float64(n))
		s.log.Info("expired stale invitations", zap.Int64("count", n))
	}
	return n, nil
}

func (s *InviteService) loadTeam(ctx context.Context, db *gorm.DB, teamID string) (*models.Team, error) {
	var team models.Team
	err := db.WithContext(ctx).Take(&team, "id = ?", teamID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTeamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("invite service: load team: %w", err)
	}
	return &team, nil
}

func (s *InviteService) hasOpenMembership(tx *gorm.DB, teamID, email string, now time.Time) (bool, error) {
	var pending int64
	if err := tx.Model(&models.TeamMember{}).
		Where("team_id = ? AND invite_email = ? AND status = ? AND invite_expires > ?",
			teamID, email, models.MemberStatusPending, now).
		Count(&pending).Error; err != nil {
		return false, fmt.Errorf("invite service: check pending invites: %w", err)
	}
	if pending > 0 {
		return true, nil
	}

	users := tx.Model(&models.User{}).Select("id").Where("email = ?", email)
	var active int64
	if err := tx.Model(&models.TeamMember{}).
		Where("team_id = ? AND status = ? AND user_id IN (?)", teamID, models.MemberStatusActive, users).
		Count(&active).Error; err != nil {
		return false, fmt.Errorf("invite service: check memberships: %w", err)
	}
	return active > 0, nil
}

func inviteCacheKey(digest string) string {
	return cache.Key("invites", digest)
}

func (s *InviteService) cachedInvite(ctx context.Context, digest string) *InviteInfo {
	if s.cache == nil {
		return nil
	}
	raw, ok, err := s.cache.Get(ctx, inviteCacheKey(digest))
	if err != nil || !ok {
		return nil
	}
	var info InviteInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil
	}
	return &info
}

func (s *InviteService) cacheInvite(ctx context.Context, digest string, info *InviteInfo, now time.Time) {
	if s.cache == nil {
		return
	}
	ttl := info.ExpiresAt.Sub(now)
	if ttl > inviteCacheTTL {
		ttl = inviteCacheTTL
	}
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, inviteCacheKey(digest), raw, ttl)
}

func (s *InviteService) forgetInvite(ctx context.Context, digest string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, inviteCacheKey(digest))
}

// expirePending moves lapsed PENDING rows matching the extra condition to EXPIRED.
func expirePending(db *gorm.DB, now time.Time, query string, args ...any) (int64, error) {
	result := db.Model(&models.TeamMember{}).
		Where("status = ? AND invite_expires <= ?", models.MemberStatusPending, now).
		Where(query, args...).
		Updates(map[string]any{
			"status":            models.MemberStatusExpired,
			"invite_token_hash": nil,
			"invite_expires":    nil,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("invite service: expire invites: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func countActiveOwners(tx *gorm.DB, teamID string) (int64, error) {
	var owners int64
	if err := tx.Model(&models.TeamMember{}).
		Where("team_id = ? AND role = ? AND status = ?", teamID, models.TeamRoleOwner, models.MemberStatusActive).
		Count(&owners).Error; err != nil {
		return 0, fmt.Errorf("count owners: %w", err)
	}
	return owners, nil
}

func summarise(row models.TeamMember) *InviteSummary {
	summary := &InviteSummary{
		ID:        row.ID,
		Email:     stringValue(row.InviteEmail),
		Role:      row.Role,
		InvitedBy: row.InvitedBy,
	}
	if row.InviteExpires != nil {
		summary.ExpiresAt = *row.InviteExpires
	}
	return summary
}

func domainNotAllowed(team *models.Team) error {
	return ErrDomainNotAllowed.WithMessage(
		"Email domain is not allowed for this team. Allowed domains: " + strings.Join(team.DomainList(), ", "))
}
