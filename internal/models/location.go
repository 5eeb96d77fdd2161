package models

import "time"

// Location is a monitored traffic point (camera or intersection).
type Location struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string  `gorm:"type:text;not null;uniqueIndex"` // Unique location name.
	Description string  `gorm:"type:text"`                      // Optional description.
	Latitude    float64 `gorm:"not null"`                       // WGS84 latitude.
	Longitude   float64 `gorm:"not null"`                       // WGS84 longitude.

	Active bool `gorm:"not null"` // Soft-delete flag.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
