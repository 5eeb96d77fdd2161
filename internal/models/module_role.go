package models

import "time"

// ModuleRole links a module to a role under the same soft-activate
// discipline as UserRole: one row per pair, reused across reactivations.
type ModuleRole struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	RoleID   uint64 `gorm:"not null;uniqueIndex:idx_module_roles_pair;index"` // Linked role ID.
	ModuleID uint64 `gorm:"not null;uniqueIndex:idx_module_roles_pair"`       // Linked module ID.

	Active bool `gorm:"not null"` // Whether the assignment is current.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
