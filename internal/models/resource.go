package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Resource represents a managed cloud resource in a deployment.
type Resource struct {
	ID           string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	DeploymentID string         `gorm:"type:varchar(64);index:idx_resources_deployment_address;not null" json:"deployment_id" validate:"required"`
	Address      string         `gorm:"type:varchar(512);index:idx_resources_deployment_address;not null" json:"address" validate:"required"`
	Name         string         `gorm:"type:varchar(256)" json:"name"`
	Type         string         `gorm:"type:varchar(128);index;not null" json:"type" validate:"required"`
	Provider     string         `gorm:"type:varchar(256)" json:"provider"`
	Status       string         `gorm:"type:varchar(32)" json:"status"`
	Attributes   datatypes.JSON `json:"attributes"`
	Position     int            `gorm:"not null;default:0" json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns a row id.
func (r *Resource) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
