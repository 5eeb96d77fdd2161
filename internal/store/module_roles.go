package store

import (
	"context"
	"fmt"
	"time"

	"github.com/smartcitybq/traffic-admin/internal/models"
	"gorm.io/gorm"
)

// SyncModuleRoles reconciles the modules granted to a role against the
// target set. Semantics mirror SyncUserRoles: rows are created active,
// flipped, or deactivated, never deleted.
func SyncModuleRoles(ctx context.Context, db *gorm.DB, roleID uint64, moduleIDs []uint64) error {
	if db == nil {
		return fmt.Errorf("sync module roles: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	target := make(map[uint64]struct{}, len(moduleIDs))
	for _, moduleID := range moduleIDs {
		target[moduleID] = struct{}{}
	}

	var existing []models.ModuleRole
	if errLoad := db.WithContext(ctx).Where("role_id = ?", roleID).Find(&existing).Error; errLoad != nil {
		return fmt.Errorf("sync module roles: load grants: %w", errLoad)
	}

	now := time.Now().UTC()
	activate := make([]uint64, 0, len(existing))
	deactivate := make([]uint64, 0, len(existing))
	seen := make(map[uint64]struct{}, len(existing))
	for _, row := range existing {
		seen[row.ModuleID] = struct{}{}
		_, wanted := target[row.ModuleID]
		switch {
		case wanted && !row.Active:
			activate = append(activate, row.ID)
		case !wanted && row.Active:
			deactivate = append(deactivate, row.ID)
		}
	}

	missing := make([]models.ModuleRole, 0, len(moduleIDs))
	for _, moduleID := range moduleIDs {
		if _, ok := seen[moduleID]; ok {
			continue
		}
		seen[moduleID] = struct{}{}
		missing = append(missing, models.ModuleRole{
			RoleID:    roleID,
			ModuleID:  moduleID,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	if len(activate) > 0 {
		if errUpdate := db.WithContext(ctx).Model(&models.ModuleRole{}).Where("id IN ?", activate).Updates(map[string]any{
			"active":     true,
			"updated_at": now,
		}).Error; errUpdate != nil {
			return fmt.Errorf("sync module roles: activate: %w", errUpdate)
		}
	}
	if len(deactivate) > 0 {
		if errUpdate := db.WithContext(ctx).Model(&models.ModuleRole{}).Where("id IN ?", deactivate).Updates(map[string]any{
			"active":     false,
			"updated_at": now,
		}).Error; errUpdate != nil {
			return fmt.Errorf("sync module roles: deactivate: %w", errUpdate)
		}
	}
	if len(missing) > 0 {
		if errCreate := db.WithContext(ctx).Create(&missing).Error; errCreate != nil {
			return fmt.Errorf("sync module roles: create: %w", errCreate)
		}
	}
	return nil
}

// ModulesByRoleIDs resolves the active modules for every requested role in
// at most two queries. Every requested role gets an entry, empty when the
// role grants nothing. Grants pointing at missing or deactivated module
// rows are dropped.
func ModulesByRoleIDs(ctx context.Context, db *gorm.DB, roleIDs []uint64) (map[uint64][]models.Module, error) {
	if db == nil {
		return nil, fmt.Errorf("modules by role ids: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result := make(map[uint64][]models.Module, len(roleIDs))
	for _, roleID := range roleIDs {
		if _, ok := result[roleID]; !ok {
			result[roleID] = []models.Module{}
		}
	}
	if len(result) == 0 {
		return result, nil
	}

	var links []models.ModuleRole
	if errLinks := db.WithContext(ctx).
		Where("role_id IN ? AND active = ?", roleIDs, true).
		Order("role_id ASC, module_id ASC").
		Find(&links).Error; errLinks != nil {
		return nil, fmt.Errorf("modules by role ids: load grants: %w", errLinks)
	}
	if len(links) == 0 {
		return result, nil
	}

	moduleIDs := make([]uint64, 0, len(links))
	wanted := make(map[uint64]struct{}, len(links))
	for _, link := range links {
		if _, ok := wanted[link.ModuleID]; ok {
			continue
		}
		wanted[link.ModuleID] = struct{}{}
		moduleIDs = append(moduleIDs, link.ModuleID)
	}

	var modules []models.Module
	if errModules := db.WithContext(ctx).Where("id IN ? AND active = ?", moduleIDs, true).Find(&modules).Error; errModules != nil {
		return nil, fmt.Errorf("modules by role ids: load modules: %w", errModules)
	}
	byID := make(map[uint64]models.Module, len(modules))
	for _, module := range modules {
		byID[module.ID] = module
	}

	for _, link := range links {
		module, ok := byID[link.ModuleID]
		if !ok {
			continue
		}
		result[link.RoleID] = append(result[link.RoleID], module)
	}
	return result, nil
}
