package models

// Site statuses.
const (
	SiteStatusActive   = "ACTIVE"
	SiteStatusInactive = "INACTIVE"
)

// Site access roles.
const (
	SiteRoleAdmin  = "ADMIN"
	SiteRoleMember = "MEMBER"
)

// Site is a monitored web property owned by a team.
type Site struct {
	BaseModel

	TeamID string `gorm:"type:uuid;not null;index" json:"team_id"`
	Name   string `gorm:"not null" json:"name"`
	URL    string `gorm:"not null;uniqueIndex" json:"url"`
	Status string `gorm:"not null;default:'ACTIVE'" json:"status"`

	Users []SiteUser `gorm:"foreignKey:SiteID;constraint:OnDelete:CASCADE" json:"users,omitempty"`
}

// SiteUser grants a user access to a single site.
type SiteUser struct {
	BaseModel

	SiteID string `gorm:"type:uuid;not null;uniqueIndex:idx_site_user" json:"site_id"`
	UserID string `gorm:"type:uuid;not null;uniqueIndex:idx_site_user;index" json:"user_id"`
	Role   string `gorm:"not null;default:'MEMBER'" json:"role"`
}
