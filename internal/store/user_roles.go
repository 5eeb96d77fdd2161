// Package store reconciles the soft-delete join tables that connect users,
// roles and modules. Assignments are never deleted; membership is expressed
// through the active flag so the full assignment history stays queryable.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/smartcitybq/traffic-admin/internal/models"
	"gorm.io/gorm"
)

// SyncUserRoles reconciles a user's role assignments against the target set.
// Rows missing from the join table are created active, rows outside the
// target set are deactivated, and previously deactivated rows inside the
// target set are reactivated. An empty target deactivates everything. The
// call is idempotent and keeps at most one row per (user, role) pair.
func SyncUserRoles(ctx context.Context, db *gorm.DB, userID uint64, roleIDs []uint64) error {
	if db == nil {
		return fmt.Errorf("sync user roles: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	target := make(map[uint64]struct{}, len(roleIDs))
	for _, roleID := range roleIDs {
		target[roleID] = struct{}{}
	}

	var existing []models.UserRole
	if errLoad := db.WithContext(ctx).Where("user_id = ?", userID).Find(&existing).Error; errLoad != nil {
		return fmt.Errorf("sync user roles: load assignments: %w", errLoad)
	}

	now := time.Now().UTC()
	activate := make([]uint64, 0, len(existing))
	deactivate := make([]uint64, 0, len(existing))
	seen := make(map[uint64]struct{}, len(existing))
	for _, row := range existing {
		seen[row.RoleID] = struct{}{}
		_, wanted := target[row.RoleID]
		switch {
		case wanted && !row.Active:
			activate = append(activate, row.ID)
		case !wanted && row.Active:
			deactivate = append(deactivate, row.ID)
		}
	}

	missing := make([]models.UserRole, 0, len(roleIDs))
	for _, roleID := range roleIDs {
		if _, ok := seen[roleID]; ok {
			continue
		}
		seen[roleID] = struct{}{}
		missing = append(missing, models.UserRole{
			UserID:    userID,
			RoleID:    roleID,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	if len(activate) > 0 {
		if errUpdate := db.WithContext(ctx).Model(&models.UserRole{}).Where("id IN ?", activate).Updates(map[string]any{
			"active":     true,
			"updated_at": now,
		}).Error; errUpdate != nil {
			return fmt.Errorf("sync user roles: activate: %w", errUpdate)
		}
	}
	if len(deactivate) > 0 {
		if errUpdate := db.WithContext(ctx).Model(&models.UserRole{}).Where("id IN ?", deactivate).Updates(map[string]any{
			"active":     false,
			"updated_at": now,
		}).Error; errUpdate != nil {
			return fmt.Errorf("sync user roles: deactivate: %w", errUpdate)
		}
	}
	if len(missing) > 0 {
		if errCreate := db.WithContext(ctx).Create(&missing).Error; errCreate != nil {
			return fmt.Errorf("sync user roles: create: %w", errCreate)
		}
	}
	return nil
}

// RolesByUserIDs resolves the active roles for every requested user in at
// most two queries. The result always carries an entry per requested user;
// users without active assignments map to an empty slice. Assignments whose
// role row no longer exists or was deactivated are dropped.
func RolesByUserIDs(ctx context.Context, db *gorm.DB, userIDs []uint64) (map[uint64][]models.Role, error) {
	if db == nil {
		return nil, fmt.Errorf("roles by user ids: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result := make(map[uint64][]models.Role, len(userIDs))
	for _, userID := range userIDs {
		if _, ok := result[userID]; !ok {
			result[userID] = []models.Role{}
		}
	}
	if len(result) == 0 {
		return result, nil
	}

	var links []models.UserRole
	if errLinks := db.WithContext(ctx).
		Where("user_id IN ? AND active = ?", userIDs, true).
		Order("user_id ASC, role_id ASC").
		Find(&links).Error; errLinks != nil {
		return nil, fmt.Errorf("roles by user ids: load assignments: %w", errLinks)
	}
	if len(links) == 0 {
		return result, nil
	}

	roleIDs := make([]uint64, 0, len(links))
	wanted := make(map[uint64]struct{}, len(links))
	for _, link := range links {
		if _, ok := wanted[link.RoleID]; ok {
			continue
		}
		wanted[link.RoleID] = struct{}{}
		roleIDs = append(roleIDs, link.RoleID)
	}

	var roles []models.Role
	if errRoles := db.WithContext(ctx).Where("id IN ? AND active = ?", roleIDs, true).Find(&roles).Error; errRoles != nil {
		return nil, fmt.Errorf("roles by user ids: load roles: %w", errRoles)
	}
	byID := make(map[uint64]models.Role, len(roles))
	for _, role := range roles {
		byID[role.ID] = role
	}

	for _, link := range links {
		role, ok := byID[link.RoleID]
		if !ok {
			continue
		}
		result[link.UserID] = append(result[link.UserID], role)
	}
	return result, nil
}

// ActiveUserIDsByRole returns the ids of users actively holding the role.
func ActiveUserIDsByRole(ctx context.Context, db *gorm.DB, roleID uint64) ([]uint64, error) {
	if db == nil {
		return nil, fmt.Errorf("active users by role: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var userIDs []uint64
	if errQuery := db.WithContext(ctx).Model(&models.UserRole{}).
		Where("role_id = ? AND active = ?", roleID, true).
		Order("user_id ASC").
		Pluck("user_id", &userIDs).Error; errQuery != nil {
		return nil, fmt.Errorf("active users by role: %w", errQuery)
	}
	return userIDs, nil
}
