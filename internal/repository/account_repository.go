package repository

import (
	"context"

	"github.com/cloudconsole/engine/internal/models"
	appErr "github.com/cloudconsole/engine/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CloudAccountRepository reads connected accounts. Account CRUD belongs to the account
// service; Upsert exists for seeding and tests.
type CloudAccountRepository interface {
	BaseRepository[models.CloudAccount]
	Upsert(ctx context.Context, acct *models.CloudAccount) error
}

type cloudAccountRepository struct {
	BaseRepository[models.CloudAccount]
	db *gorm.DB
}

func NewCloudAccountRepository(db *gorm.DB) CloudAccountRepository {
	return &cloudAccountRepository{BaseRepository: NewBaseRepository[models.CloudAccount](db, "account"), db: db}
}

func (r *cloudAccountRepository) Upsert(ctx context.Context, acct *models.CloudAccount) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"provider", "name", "credentials", "metadata", "updated_at"}),
	}).Create(acct).Error
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "upsert account failed")
	}
	return nil
}
