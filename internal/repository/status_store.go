package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudconsole/engine/internal/models"
	"github.com/cloudconsole/engine/internal/tracker"
	appErr "github.com/cloudconsole/engine/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatusStore is the durable tracker.Store backed by the deployment_statuses table.
type StatusStore struct {
	db *gorm.DB
}

var _ tracker.Store = (*StatusStore)(nil)

func NewStatusStore(db *gorm.DB) *StatusStore {
	return &StatusStore{db: db}
}

func (s *StatusStore) Get(ctx context.Context, id string) (*tracker.Entry, error) {
	var row models.DeploymentStatus
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, appErr.New(appErr.CodeNotFound, fmt.Sprintf("deployment %s not found", id))
	}
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "get deployment status failed")
	}
	e := toEntry(row)
	return &e, nil
}

func (s *StatusStore) Put(ctx context.Context, e *tracker.Entry) error {
	row := models.DeploymentStatus{
		ID:          e.ID,
		AccountID:   e.AccountID,
		Provider:    e.Provider,
		Status:      string(e.Status),
		StartedAt:   e.StartedAt.UTC(),
		CompletedAt: e.CompletedAt,
		Error:       e.Error,
	}
	if row.CompletedAt != nil {
		c := row.CompletedAt.UTC()
		row.CompletedAt = &c
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"account_id", "provider", "status", "started_at", "completed_at", "error", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "save deployment status failed")
	}
	return nil
}

func (s *StatusStore) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&models.DeploymentStatus{}, "id = ?", id).Error; err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "delete deployment status failed")
	}
	return nil
}

func (s *StatusStore) List(ctx context.Context) ([]tracker.Entry, error) {
	var rows []models.DeploymentStatus
	if err := s.db.WithContext(ctx).Order("started_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list deployment statuses failed")
	}
	out := make([]tracker.Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, toEntry(r))
	}
	return out, nil
}

func toEntry(r models.DeploymentStatus) tracker.Entry {
	return tracker.Entry{
		ID:          r.ID,
		AccountID:   r.AccountID,
		Provider:    r.Provider,
		Status:      tracker.Status(r.Status),
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		Error:       r.Error,
	}
}
