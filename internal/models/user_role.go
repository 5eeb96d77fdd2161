package models

import "time"

// UserRole links a user to a role. Rows are never deleted; assignment
// changes flip the Active flag so the pair stays unique over its lifetime.
type UserRole struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;uniqueIndex:idx_user_roles_pair;index"` // Linked user ID.
	RoleID uint64 `gorm:"not null;uniqueIndex:idx_user_roles_pair"`       // Linked role ID.

	Active bool `gorm:"not null"` // Whether the assignment is current.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
