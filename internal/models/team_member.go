package models

import "time"

// Team roles.
const (
	TeamRoleOwner  = "OWNER"
	TeamRoleAdmin  = "ADMIN"
	TeamRoleMember = "MEMBER"
)

// Membership statuses.
const (
	MemberStatusPending = "PENDING"
	MemberStatusActive  = "ACTIVE"
	MemberStatusExpired = "EXPIRED"
)

// TeamMember stores both active memberships and pending invitations.
// Invite columns are only populated while Status is PENDING.
type TeamMember struct {
	BaseModel

	TeamID string  `gorm:"type:uuid;not null;index" json:"team_id"`
	UserID *string `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Role   string  `gorm:"not null;default:'MEMBER'" json:"role"`
	Status string  `gorm:"not null;default:'PENDING';index" json:"status"`

	InviteEmail     *string    `gorm:"index" json:"invite_email,omitempty"`
	InviteTokenHash *string    `gorm:"uniqueIndex" json:"-"`
	InviteExpires   *time.Time `json:"invite_expires,omitempty"`
	InvitedBy       *string    `gorm:"type:uuid" json:"invited_by,omitempty"`

	Team *Team `gorm:"foreignKey:TeamID" json:"team,omitempty"`
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// ValidTeamRole reports whether role is one of the known team roles.
func ValidTeamRole(role string) bool {
	switch role {
	case TeamRoleOwner, TeamRoleAdmin, TeamRoleMember:
		return true
	}
	return false
}
