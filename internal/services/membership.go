package services

import (
	"fmt"
	"time"

	"github.com/charlesng35/adpulse/internal/models"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID string
	Email  string
}

// Membership is the state of a team_members row. The concrete type is one of
// PendingMembership, ActiveMembership or ExpiredMembership.
type Membership interface {
	Team() string
	MemberRole() string
	membership()
}

// PendingMembership is an outstanding invitation.
type PendingMembership struct {
	TeamID    string
	Email     string
	Role      string
	ExpiresAt time.Time
	UserID    *string
}

// ActiveMembership is an accepted membership tied to a user.
type ActiveMembership struct {
	TeamID string
	UserID string
	Role   string
}

// ExpiredMembership is an invitation that lapsed before acceptance.
type ExpiredMembership struct {
	TeamID string
	Email  string
	Role   string
}

func (m PendingMembership) Team() string       { return m.TeamID }
func (m PendingMembership) MemberRole() string { return m.Role }
func (PendingMembership) membership()          {}

func (m ActiveMembership) Team() string       { return m.TeamID }
func (m ActiveMembership) MemberRole() string { return m.Role }
func (ActiveMembership) membership()          {}

func (m ExpiredMembership) Team() string       { return m.TeamID }
func (m ExpiredMembership) MemberRole() string { return m.Role }
func (ExpiredMembership) membership()          {}

// ExpiredAt reports whether the invitation can no longer be accepted at now.
func (m PendingMembership) ExpiredAt(now time.Time) bool {
	return !now.Before(m.ExpiresAt)
}

// IsOwner reports whether the membership grants ownership.
func (m ActiveMembership) IsOwner() bool {
	return m.Role == models.TeamRoleOwner
}

// CanManage reports whether the membership may administer the team.
func (m ActiveMembership) CanManage() bool {
	return m.Role == models.TeamRoleOwner || m.Role == models.TeamRoleAdmin
}

// MembershipFromRecord converts a row into its variant, rejecting rows that
// break the status invariants.
func MembershipFromRecord(rec models.TeamMember) (Membership, error) {
	if !models.ValidTeamRole(rec.Role) {
		return nil, fmt.Errorf("membership %s: unknown role %q", rec.ID, rec.Role)
	}

	switch rec.Status {
	case models.MemberStatusPending:
		if rec.InviteTokenHash == nil || rec.InviteExpires == nil {
			return nil, fmt.Errorf("membership %s: pending without token or expiry", rec.ID)
		}
		return PendingMembership{
			TeamID:    rec.TeamID,
			Email:     stringValue(rec.InviteEmail),
			Role:      rec.Role,
			ExpiresAt: *rec.InviteExpires,
			UserID:    rec.UserID,
		}, nil
	case models.MemberStatusActive:
		if rec.UserID == nil || *rec.UserID == "" {
			return nil, fmt.Errorf("membership %s: active without user", rec.ID)
		}
		if rec.InviteTokenHash != nil || rec.InviteExpires != nil {
			return nil, fmt.Errorf("membership %s: active with invite token", rec.ID)
		}
		return ActiveMembership{TeamID: rec.TeamID, UserID: *rec.UserID, Role: rec.Role}, nil
	case models.MemberStatusExpired:
		return ExpiredMembership{TeamID: rec.TeamID, Email: stringValue(rec.InviteEmail), Role: rec.Role}, nil
	default:
		return nil, fmt.Errorf("membership %s: unknown status %q", rec.ID, rec.Status)
	}
}
