package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/charlesng35/adpulse/internal/models"
)

// Models lists every table managed by AutoMigrate, parents first.
func Models() []any {
	return []any{
		&models.User{},
		&models.Team{},
		&models.TeamMember{},
		&models.Subscription{},
		&models.Site{},
		&models.SiteUser{},
		&models.Session{},
		&models.EmailVerification{},
		&models.AuditLog{},
		&models.CacheEntry{},
	}
}

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
