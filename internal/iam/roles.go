package iam

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smartcitybq/traffic-admin/internal/models"
	"github.com/smartcitybq/traffic-admin/internal/store"
	"gorm.io/gorm"
)

// CreateRoleInput carries the fields accepted when creating a role.
// ModuleIDs follows the same tri-state convention as CreateUserInput.
type CreateRoleInput struct {
	Name        string
	Description string
	Active      *bool
	ModuleIDs   *[]uint64
}

// CreateRole persists a new role and reconciles its module grants in one
// transaction. Module ids are validated before any write.
func CreateRole(ctx context.Context, db *gorm.DB, in CreateRoleInput) (*models.Role, error) {
	if db == nil {
		return nil, fmt.Errorf("create role: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if in.ModuleIDs != nil {
		if errValidate := validateModuleIDs(ctx, db, *in.ModuleIDs); errValidate != nil {
			return nil, errValidate
		}
	}

	now := time.Now().UTC()
	role := models.Role{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Active != nil {
		role.Active = *in.Active
	}

	errTx := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&role).Error; errCreate != nil {
			return fmt.Errorf("create role: %w", errCreate)
		}
		if in.ModuleIDs != nil {
			if errSync := store.SyncModuleRoles(ctx, tx, role.ID, *in.ModuleIDs); errSync != nil {
				return errSync
			}
		}
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return &role, nil
}

// UpdateRoleInput carries the optional fields accepted when updating a role.
type UpdateRoleInput struct {
	Name        *string
	Description *string
	Active      *bool
	ModuleIDs   *[]uint64
}

// UpdateRole applies a partial update and reconciles module grants in one
// transaction.
func UpdateRole(ctx context.Context, db *gorm.DB, roleID uint64, in UpdateRoleInput) (*models.Role, error) {
	if db == nil {
		return nil, fmt.Errorf("update role: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var role models.Role
	if errFind := db.WithContext(ctx).First(&role, roleID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update role: load: %w", errFind)
	}

	if in.ModuleIDs != nil {
		if errValidate := validateModuleIDs(ctx, db, *in.ModuleIDs); errValidate != nil {
			return nil, errValidate
		}
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if in.Name != nil {
		updates["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		updates["description"] = strings.TrimSpace(*in.Description)
	}
	if in.Active != nil {
		updates["active"] = *in.Active
	}

	errTx := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errUpdate := tx.Model(&role).Updates(updates).Error; errUpdate != nil {
			return fmt.Errorf("update role: %w", errUpdate)
		}
		if in.ModuleIDs != nil {
			if errSync := store.SyncModuleRoles(ctx, tx, role.ID, *in.ModuleIDs); errSync != nil {
				return errSync
			}
		}
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}

	if errReload := db.WithContext(ctx).First(&role, roleID).Error; errReload != nil {
		return nil, fmt.Errorf("update role: reload: %w", errReload)
	}
	return &role, nil
}

// DeactivateRole soft-deletes a role by flipping its active flag.
func DeactivateRole(ctx context.Context, db *gorm.DB, roleID uint64) error {
	if db == nil {
		return fmt.Errorf("deactivate role: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result := db.WithContext(ctx).Model(&models.Role{}).Where("id = ?", roleID).Updates(map[string]any{
		"active":     false,
		"updated_at": time.Now().UTC(),
	})
	if result.Error != nil {
		return fmt.Errorf("deactivate role: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// validateModuleIDs fails with ErrInvalidReference unless every id resolves
// to an existing module.
func validateModuleIDs(ctx context.Context, db *gorm.DB, moduleIDs []uint64) error {
	unique := uniqueIDs(moduleIDs)
	if len(unique) == 0 {
		return nil
	}
	var count int64
	if errCount := db.WithContext(ctx).Model(&models.Module{}).Where("id IN ?", unique).Count(&count).Error; errCount != nil {
		return fmt.Errorf("validate module ids: %w", errCount)
	}
	if count != int64(len(unique)) {
		return fmt.Errorf("%w: unknown module id", ErrInvalidReference)
	}
	return nil
}
