package models

import "strings"

// Team is the tenant that owns members, sites and a subscription.
type Team struct {
	BaseModel

	Name           string  `gorm:"not null" json:"name"`
	AllowedDomains *string `json:"allowed_domains,omitempty"`
	Language       string  `gorm:"default:'pt-BR'" json:"language"`
	Timezone       string  `gorm:"default:'America/Sao_Paulo'" json:"timezone"`
	AutoTimezone   bool    `gorm:"default:true" json:"auto_timezone"`
	Currency       string  `gorm:"default:'BRL'" json:"currency"`

	Members      []TeamMember  `gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE" json:"members,omitempty"`
	Sites        []Site        `gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE" json:"sites,omitempty"`
	Subscription *Subscription `gorm:"foreignKey:TeamID;constraint:OnDelete:CASCADE" json:"subscription,omitempty"`
}

// DomainList returns the parsed, lower-cased allow-list. An empty result means any domain is allowed.
func (t *Team) DomainList() []string {
	if t == nil || t.AllowedDomains == nil {
		return nil
	}
	var domains []string
	for _, part := range strings.Split(*t.AllowedDomains, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			domains = append(domains, part)
		}
	}
	return domains
}

// AllowsEmail reports whether email's domain passes the team allow-list.
func (t *Team) AllowsEmail(email string) bool {
	domains := t.DomainList()
	if len(domains) == 0 {
		return true
	}
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := strings.ToLower(strings.TrimSpace(email[at+1:]))
	for _, allowed := range domains {
		if domain == allowed {
			return true
		}
	}
	return false
}
