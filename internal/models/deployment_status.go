package models

import "time"

// DeploymentStatus backs the durable tracker store.
type DeploymentStatus struct {
	ID          string     `gorm:"type:varchar(64);primaryKey"`
	AccountID   string     `gorm:"type:varchar(64);index"`
	Provider    string     `gorm:"type:varchar(32)"`
	Status      string     `gorm:"type:varchar(32);index;not null"`
	StartedAt   time.Time  `gorm:"index"`
	CompletedAt *time.Time
	Error       string `gorm:"type:text"`
	UpdatedAt   time.Time
}

// All returns every model managed by migrations.
func All() []any {
	return []any{
		&CloudAccount{},
		&Deployment{},
		&Resource{},
		&DeploymentStatus{},
	}
}
