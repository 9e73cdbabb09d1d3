package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudconsole/engine/internal/models"
	"github.com/cloudconsole/engine/internal/tracker"
	appErr "github.com/cloudconsole/engine/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DeploymentRepository is the durable deployment record store.
type DeploymentRepository interface {
	BaseRepository[models.Deployment]
	// GetWithResources loads a record and its resources in extraction order.
	GetWithResources(ctx context.Context, id string) (*models.Deployment, error)
	ListByAccount(ctx context.Context, accountID string) ([]models.Deployment, error)
	List(ctx context.Context) ([]models.Deployment, error)
	UpdateStatus(ctx context.Context, id, status, errMsg string) error
	// ReplaceResources swaps the resource set and state snapshot of a deployment atomically.
	ReplaceResources(ctx context.Context, id string, resources []models.Resource, state []byte) error
	// DeleteResource removes one resource entry by address, optionally saving a new state snapshot.
	DeleteResource(ctx context.Context, id, address string, state []byte) error
	// SaveState stores a raw state snapshot without touching resources.
	SaveState(ctx context.Context, id string, state []byte) error
	// Purge deletes a record together with its resources.
	Purge(ctx context.Context, id string) error
}

type deploymentRepository struct {
	BaseRepository[models.Deployment]
	db *gorm.DB
}

func NewDeploymentRepository(db *gorm.DB) DeploymentRepository {
	return &deploymentRepository{BaseRepository: NewBaseRepository[models.Deployment](db, "deployment"), db: db}
}

func (r *deploymentRepository) GetWithResources(ctx context.Context, id string) (*models.Deployment, error) {
	var d models.Deployment
	err := r.db.WithContext(ctx).
		Preload("Resources", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		First(&d, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, appErr.New(appErr.CodeNotFound, fmt.Sprintf("deployment %s not found", id))
	}
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "get deployment failed")
	}
	return &d, nil
}

func (r *deploymentRepository) ListByAccount(ctx context.Context, accountID string) ([]models.Deployment, error) {
	var out []models.Deployment
	err := r.db.WithContext(ctx).
		Preload("Resources", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list deployments failed")
	}
	return out, nil
}

func (r *deploymentRepository) List(ctx context.Context) ([]models.Deployment, error) {
	var out []models.Deployment
	if err := r.db.WithContext(ctx).Order("started_at ASC, id ASC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list deployments failed")
	}
	return out, nil
}

func (r *deploymentRepository) UpdateStatus(ctx context.Context, id, status, errMsg string) error {
	fields := map[string]any{"status": status, "error": errMsg}
	if tracker.Status(status).Terminal() {
		// first terminal transition wins; error-only rewrites keep the timestamp
		fields["completed_at"] = gorm.Expr("COALESCE(completed_at, ?)", time.Now().UTC())
	} else {
		fields["completed_at"] = nil
	}
	res := r.db.WithContext(ctx).Model(&models.Deployment{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "update deployment status failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, fmt.Sprintf("deployment %s not found", id))
	}
	return nil
}

func (r *deploymentRepository) ReplaceResources(ctx context.Context, id string, resources []models.Resource, state []byte) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("deployment_id = ?", id).Delete(&models.Resource{}).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "clear resources failed")
		}
		for i := range resources {
			resources[i].DeploymentID = id
			resources[i].Position = i
		}
		if len(resources) > 0 {
			if err := tx.Create(&resources).Error; err != nil {
				return appErr.Wrap(err, appErr.CodeInternal, "save resources failed")
			}
		}
		if state != nil {
			res := tx.Model(&models.Deployment{}).Where("id = ?", id).Update("terraform_state", datatypes.JSON(state))
			if res.Error != nil {
				return appErr.Wrap(res.Error, appErr.CodeInternal, "save state snapshot failed")
			}
		}
		return nil
	})
}

func (r *deploymentRepository) DeleteResource(ctx context.Context, id, address string, state []byte) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Unscoped().Where("deployment_id = ? AND address = ?", id, address).Delete(&models.Resource{})
		if res.Error != nil {
			return appErr.Wrap(res.Error, appErr.CodeInternal, "delete resource failed")
		}
		if res.RowsAffected == 0 {
			return appErr.New(appErr.CodeNotFound, fmt.Sprintf("resource %s not found in deployment %s", address, id))
		}
		if state != nil {
			if err := tx.Model(&models.Deployment{}).Where("id = ?", id).Update("terraform_state", datatypes.JSON(state)).Error; err != nil {
				return appErr.Wrap(err, appErr.CodeInternal, "save state snapshot failed")
			}
		}
		return nil
	})
}

func (r *deploymentRepository) SaveState(ctx context.Context, id string, state []byte) error {
	res := r.db.WithContext(ctx).Model(&models.Deployment{}).Where("id = ?", id).Update("terraform_state", datatypes.JSON(state))
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "save state snapshot failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, fmt.Sprintf("deployment %s not found", id))
	}
	return nil
}

func (r *deploymentRepository) Purge(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("deployment_id = ?", id).Delete(&models.Resource{}).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "delete resources failed")
		}
		res := tx.Unscoped().Delete(&models.Deployment{}, "id = ?", id)
		if res.Error != nil {
			return appErr.Wrap(res.Error, appErr.CodeInternal, "delete deployment failed")
		}
		if res.RowsAffected == 0 {
			return appErr.New(appErr.CodeNotFound, fmt.Sprintf("deployment %s not found", id))
		}
		return nil
	})
}
