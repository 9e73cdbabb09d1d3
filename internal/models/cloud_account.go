package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CloudAccount stores provider credentials for a connected account. Credentials holds the
// decrypted JSON document handed over by the account service.
type CloudAccount struct {
	ID          string         `gorm:"type:varchar(64);primaryKey" json:"id"`
	Provider    string         `gorm:"type:varchar(32);index;not null" json:"provider" validate:"required,oneof=aws gcp azure"`
	Name        string         `gorm:"type:varchar(128)" json:"name"`
	Credentials []byte         `gorm:"not null" json:"-"`
	Metadata    datatypes.JSON `json:"metadata"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}
