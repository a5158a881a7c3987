package model

import "gorm.io/gorm"

// AutoMigrate runs GORM auto-migration for all models and creates custom indexes.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&Recruitment{},
		&Participant{},
		&ActivityLog{},
		&LinkedAccount{},
	); err != nil {
		return err
	}

	// At most one open recruitment per creator within a guild.
	return db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_recruitments_open_creator " +
			"ON recruitments (guild_id, creator_id) WHERE status = 'open'",
	).Error
}
