package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Deployment is the durable record of one provisioning request.
type Deployment struct {
	ID             string         `gorm:"type:varchar(64);primaryKey" json:"id"`
	AccountID      string         `gorm:"type:varchar(64);index;not null" json:"account_id" validate:"required"`
	Provider       string         `gorm:"type:varchar(32);index;not null" json:"provider" validate:"required,oneof=aws gcp azure"`
	Region         string         `gorm:"type:varchar(64);not null" json:"region" validate:"required"`
	Modules        datatypes.JSON `json:"modules"`
	ModuleConfig   datatypes.JSON `json:"module_config"`
	DocumentDigest string         `gorm:"type:varchar(64)" json:"document_digest"`
	Status         string         `gorm:"type:varchar(32);index;not null" json:"status" validate:"required,oneof=pending deploying success failed destroyed"`
	Error          string         `gorm:"type:text" json:"error,omitempty"`
	TerraformState datatypes.JSON `json:"-"`
	StartedAt      time.Time      `json:"started_at"`
	CompletedAt    *time.Time     `json:"completed_at"`
	Resources      []Resource     `gorm:"foreignKey:DeploymentID" json:"resources,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}
