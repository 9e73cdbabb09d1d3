package repository

import (
	"github.com/cloudconsole/engine/internal/models"
	"gorm.io/gorm"
)

// Migrate executes all database migrations.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return err
	}
	return runCustomMigrations(db)
}

// runCustomMigrations handles schema changes AutoMigrate can't handle
func runCustomMigrations(db *gorm.DB) error {
	migrations := []func(*gorm.DB) error{
		enableUUIDExtension,
		addDeploymentIndexes,
	}
	for _, migration := range migrations {
		if err := migration(db); err != nil {
			return err
		}
	}
	return nil
}

// enableUUIDExtension ensures UUID generation is available on postgres.
func enableUUIDExtension(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	return db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error
}

// addDeploymentIndexes adds the account listing index. Partial indexes work on both
// postgres and sqlite.
func addDeploymentIndexes(db *gorm.DB) error {
	return db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_deployments_account_created
		ON deployments(account_id, created_at)
		WHERE deleted_at IS NULL
	`).Error
}
