package db

import (
	types "github.com/yungbote/tutorbridge-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Thread state snapshots (conversation + quiz), one row per thread id.
		&types.Checkpoint{},

		// Retrieval side of document storage.
		&types.Document{},
	)
}
