package models

import "time"

// Module is a navigable UI section granted to users through roles.
type Module struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string `gorm:"type:text;not null;uniqueIndex"` // Unique module name.
	Description string `gorm:"type:text;not null"`             // Description shown in the UI.
	Path        string `gorm:"type:text;not null"`             // Frontend navigation path.
	Icon        string `gorm:"type:text;not null"`             // Icon reference.

	Active bool `gorm:"not null"` // Soft-delete flag.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
