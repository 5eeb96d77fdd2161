package models

import "time"

// User represents a platform operator account stored in the database.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Email          string `gorm:"type:text;not null;uniqueIndex"` // Unique login email.
	Name           string `gorm:"type:text;not null"`             // Display name.
	Identification string `gorm:"type:text;not null;uniqueIndex"` // National identification number.
	Password       string `gorm:"type:text"`                      // Hashed password, empty until first activation.

	MustChangePassword bool    `gorm:"not null;default:false"` // Forces a password reset before login.
	PasswordResetToken *string `gorm:"type:text;uniqueIndex"`  // One-time reset token, cleared on use.

	Active bool `gorm:"not null"` // Soft-delete flag.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
