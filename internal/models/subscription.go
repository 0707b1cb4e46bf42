package models

// Subscription plans.
const (
	PlanBasic      = "BASIC"
	PlanPro        = "PRO"
	PlanEnterprise = "ENTERPRISE"
)

// Subscription statuses.
const (
	SubscriptionActive   = "ACTIVE"
	SubscriptionCanceled = "CANCELED"
	SubscriptionPastDue  = "PAST_DUE"
)

// Default quotas applied to new teams.
const (
	DefaultMaxAdsSites    = 1
	DefaultMaxMetricSites = 3
)

// Subscription holds the plan limits of a team.
type Subscription struct {
	BaseModel

	TeamID         string `gorm:"type:uuid;not null;uniqueIndex" json:"team_id"`
	Plan           string `gorm:"not null;default:'BASIC'" json:"plan"`
	Status         string `gorm:"not null;default:'ACTIVE'" json:"status"`
	MaxAdsSites    int    `gorm:"not null;default:1" json:"max_ads_sites"`
	MaxMetricSites int    `gorm:"not null;default:3" json:"max_metric_sites"`
}

// ValidPlan reports whether plan is a known tier.
func ValidPlan(plan string) bool {
	switch plan {
	case PlanBasic, PlanPro, PlanEnterprise:
		return true
	}
	return false
}
