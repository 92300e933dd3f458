package database

import (
	"gorm.io/gorm"

	"github.com/matchbook/notifier/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Listing{},
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.Message{},
		&models.Notification{},
		&models.CronRun{},
		&models.CacheEntry{},
	)
}
