package iam

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/smartcitybq/traffic-admin/internal/models"
	"github.com/smartcitybq/traffic-admin/internal/security"
	"github.com/smartcitybq/traffic-admin/internal/store"
	"gorm.io/gorm"
)

// CreateUserInput carries the fields accepted when creating a user. RoleIDs
// is tri-state: nil leaves assignments untouched, an empty slice clears
// them, values reconcile to exactly that set.
type CreateUserInput struct {
	Email          string
	Name           string
	Identification string
	Active         *bool
	RoleIDs        *[]uint64
}

// CreateUser persists a new user and reconciles its role assignments in one
// transaction. New users carry no password; a single-use reset token is
// generated so the welcome email can point at the change-password flow.
func CreateUser(ctx context.Context, db *gorm.DB, in CreateUserInput) (*models.User, error) {
	if db == nil {
		return nil, fmt.Errorf("create user: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if in.RoleIDs != nil {
		if errValidate := validateRoleIDs(ctx, db, *in.RoleIDs); errValidate != nil {
			return nil, errValidate
		}
	}

	now := time.Now().UTC()
	resetToken := uuid.NewString()
	user := models.User{
		Email:              strings.TrimSpace(strings.ToLower(in.Email)),
		Name:               strings.TrimSpace(in.Name),
		Identification:     strings.TrimSpace(in.Identification),
		MustChangePassword: true,
		PasswordResetToken: &resetToken,
		Active:             true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if in.Active != nil {
		user.Active = *in.Active
	}

	errTx := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&user).Error; errCreate != nil {
			return fmt.Errorf("create user: %w", errCreate)
		}
		if in.RoleIDs != nil {
			if errSync := store.SyncUserRoles(ctx, tx, user.ID, *in.RoleIDs); errSync != nil {
				return errSync
			}
		}
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return &user, nil
}

// UpdateUserInput carries the optional fields accepted when updating a
// user. Nil pointers leave the column untouched.
type UpdateUserInput struct {
	Email          *string
	Name           *string
	Identification *string
	Active         *bool
	RoleIDs        *[]uint64
}

// UpdateUser applies a partial update and reconciles role assignments in
// one transaction. Referenced role ids are validated before any write.
func UpdateUser(ctx context.Context, db *gorm.DB, userID uint64, in UpdateUserInput) (*models.User, error) {
	if db == nil {
		return nil, fmt.Errorf("update user: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var user models.User
	if errFind := db.WithContext(ctx).First(&user, userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update user: load: %w", errFind)
	}

	if in.RoleIDs != nil {
		if errValidate := validateRoleIDs(ctx, db, *in.RoleIDs); errValidate != nil {
			return nil, errValidate
		}
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if in.Email != nil {
		updates["email"] = strings.TrimSpace(strings.ToLower(*in.Email))
	}
	if in.Name != nil {
		updates["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Identification != nil {
		updates["identification"] = strings.TrimSpace(*in.Identification)
	}
	if in.Active != nil {
		updates["active"] = *in.Active
	}

	errTx := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errUpdate := tx.Model(&user).Updates(updates).Error; errUpdate != nil {
			return fmt.Errorf("update user: %w", errUpdate)
		}
		if in.RoleIDs != nil {
			if errSync := store.SyncUserRoles(ctx, tx, user.ID, *in.RoleIDs); errSync != nil {
				return errSync
			}
		}
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}

	if errReload := db.WithContext(ctx).First(&user, userID).Error; errReload != nil {
		return nil, fmt.Errorf("update user: reload: %w", errReload)
	}
	return &user, nil
}

// DeactivateUser soft-deletes a user by flipping its active flag.
func DeactivateUser(ctx context.Context, db *gorm.DB, userID uint64) error {
	if db == nil {
		return fmt.Errorf("deactivate user: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result := db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any{
		"active":     false,
		"updated_at": time.Now().UTC(),
	})
	if result.Error != nil {
		return fmt.Errorf("deactivate user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetPasswordToken issues a fresh single-use reset token for the user and
// forces a password change on next login.
func ResetPasswordToken(ctx context.Context, db *gorm.DB, userID uint64) (*models.User, string, error) {
	if db == nil {
		return nil, "", fmt.Errorf("reset password token: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var user models.User
	if errFind := db.WithContext(ctx).First(&user, userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("reset password token: load: %w", errFind)
	}

	token := uuid.NewString()
	if errUpdate := db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"password_reset_token": token,
		"must_change_password": true,
		"updated_at":           time.Now().UTC(),
	}).Error; errUpdate != nil {
		return nil, "", fmt.Errorf("reset password token: %w", errUpdate)
	}
	return &user, token, nil
}

// ConsumeResetToken sets the user's password from a valid reset token. The
// token is cleared in the same update so it can be redeemed exactly once.
func ConsumeResetToken(ctx context.Context, db *gorm.DB, token, newPassword string) (*models.User, error) {
	if db == nil {
		return nil, fmt.Errorf("consume reset token: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(token) == "" {
		return nil, ErrNotFound
	}

	var user models.User
	if errFind := db.WithContext(ctx).Where("password_reset_token = ?", token).First(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("consume reset token: load: %w", errFind)
	}

	hash, errHash := security.HashPassword(newPassword)
	if errHash != nil {
		return nil, errHash
	}

	// The WHERE clause on the token makes redemption atomic under races.
	result := db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND password_reset_token = ?", user.ID, token).
		Updates(map[string]any{
			"password":             hash,
			"password_reset_token": nil,
			"must_change_password": false,
			"updated_at":           time.Now().UTC(),
		})
	if result.Error != nil {
		return nil, fmt.Errorf("consume reset token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	if errReload := db.WithContext(ctx).First(&user, user.ID).Error; errReload != nil {
		return nil, fmt.Errorf("consume reset token: reload: %w", errReload)
	}
	return &user, nil
}

// validateRoleIDs fails with ErrInvalidReference unless every id resolves
// to an existing role. It runs before any write so a bad reference aborts
// the whole operation.
func validateRoleIDs(ctx context.Context, db *gorm.DB, roleIDs []uint64) error {
	unique := uniqueIDs(roleIDs)
	if len(unique) == 0 {
		return nil
	}
	var count int64
	if errCount := db.WithContext(ctx).Model(&models.Role{}).Where("id IN ?", unique).Count(&count).Error; errCount != nil {
		return fmt.Errorf("validate role ids: %w", errCount)
	}
	if count != int64(len(unique)) {
		return fmt.Errorf("%w: unknown role id", ErrInvalidReference)
	}
	return nil
}

// uniqueIDs deduplicates ids preserving first-seen order.
func uniqueIDs(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
