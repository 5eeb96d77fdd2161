package iam

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/smartcitybq/traffic-admin/internal/db"
	"github.com/smartcitybq/traffic-admin/internal/models"
	"github.com/smartcitybq/traffic-admin/internal/store"
	"gorm.io/gorm"
)

// ListFilter narrows list queries. Search matches name or email with a
// case-insensitive contains, ActiveOnly drops deactivated rows.
type ListFilter struct {
	Search     string
	ActiveOnly bool
}

// UserWithRoles pairs a user with its active role set.
type UserWithRoles struct {
	User  models.User
	Roles []models.Role
}

// RoleWithModules pairs a role with its active module grants.
type RoleWithModules struct {
	Role    models.Role
	Modules []models.Module
}

// GetUser loads one user by id.
func GetUser(ctx context.Context, conn *gorm.DB, userID uint64) (*models.User, error) {
	if conn == nil {
		return nil, fmt.Errorf("get user: nil db")
	}
	var user models.User
	if errFind := conn.WithContext(ctx).First(&user, userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", errFind)
	}
	return &user, nil
}

// GetUserByEmail loads one user by its unique email.
func GetUserByEmail(ctx context.Context, conn *gorm.DB, email string) (*models.User, error) {
	if conn == nil {
		return nil, fmt.Errorf("get user by email: nil db")
	}
	normalized := strings.TrimSpace(strings.ToLower(email))
	var user models.User
	if errFind := conn.WithContext(ctx).Where("email = ?", normalized).First(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", errFind)
	}
	return &user, nil
}

// ListUsers returns users ordered by id, optionally filtered.
func ListUsers(ctx context.Context, conn *gorm.DB, filter ListFilter) ([]models.User, error) {
	if conn == nil {
		return nil, fmt.Errorf("list users: nil db")
	}
	query := conn.WithContext(ctx).Model(&models.User{}).Order("id ASC")
	if filter.ActiveOnly {
		query = query.Where("active = ?", true)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := db.NormalizeLikePattern(conn, "%"+search+"%")
		likeExpr := fmt.Sprintf(
			"(%s OR %s)",
			db.CaseInsensitiveLikeExpr(conn, "name"),
			db.CaseInsensitiveLikeExpr(conn, "email"),
		)
		query = query.Where(likeExpr, pattern, pattern)
	}

	var users []models.User
	if errFind := query.Find(&users).Error; errFind != nil {
		return nil, fmt.Errorf("list users: %w", errFind)
	}
	return users, nil
}

// ListUsersWithRoles returns users with their active roles resolved in a
// constant number of queries regardless of list size.
func ListUsersWithRoles(ctx context.Context, conn *gorm.DB, filter ListFilter) ([]UserWithRoles, error) {
	users, errList := ListUsers(ctx, conn, filter)
	if errList != nil {
		return nil, errList
	}

	userIDs := make([]uint64, 0, len(users))
	for _, user := range users {
		userIDs = append(userIDs, user.ID)
	}
	rolesByUser, errBatch := store.RolesByUserIDs(ctx, conn, userIDs)
	if errBatch != nil {
		return nil, errBatch
	}

	result := make([]UserWithRoles, 0, len(users))
	for _, user := range users {
		result = append(result, UserWithRoles{User: user, Roles: rolesByUser[user.ID]})
	}
	return result, nil
}

// GetUserWithRoles loads one user with its active roles.
func GetUserWithRoles(ctx context.Context, conn *gorm.DB, userID uint64) (*UserWithRoles, error) {
	user, errGet := GetUser(ctx, conn, userID)
	if errGet != nil {
		return nil, errGet
	}
	rolesByUser, errBatch := store.RolesByUserIDs(ctx, conn, []uint64{user.ID})
	if errBatch != nil {
		return nil, errBatch
	}
	return &UserWithRoles{User: *user, Roles: rolesByUser[user.ID]}, nil
}

// GetRole loads one role by id.
func GetRole(ctx context.Context, conn *gorm.DB, roleID uint64) (*models.Role, error) {
	if conn == nil {
		return nil, fmt.Errorf("get role: nil db")
	}
	var role models.Role
	if errFind := conn.WithContext(ctx).First(&role, roleID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get role: %w", errFind)
	}
	return &role, nil
}

// ListRoles returns roles ordered by id, optionally filtered.
func ListRoles(ctx context.Context, conn *gorm.DB, filter ListFilter) ([]models.Role, error) {
	if conn == nil {
		return nil, fmt.Errorf("list roles: nil db")
	}
	query := conn.WithContext(ctx).Model(&models.Role{}).Order("id ASC")
	if filter.ActiveOnly {
		query = query.Where("active = ?", true)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := db.NormalizeLikePattern(conn, "%"+search+"%")
		query = query.Where(db.CaseInsensitiveLikeExpr(conn, "name"), pattern)
	}

	var roles []models.Role
	if errFind := query.Find(&roles).Error; errFind != nil {
		return nil, fmt.Errorf("list roles: %w", errFind)
	}
	return roles, nil
}

// ListRolesWithModules returns roles with their active module grants
// resolved in a constant number of queries.
func ListRolesWithModules(ctx context.Context, conn *gorm.DB, filter ListFilter) ([]RoleWithModules, error) {
	roles, errList := ListRoles(ctx, conn, filter)
	if errList != nil {
		return nil, errList
	}

	roleIDs := make([]uint64, 0, len(roles))
	for _, role := range roles {
		roleIDs = append(roleIDs, role.ID)
	}
	modulesByRole, errBatch := store.ModulesByRoleIDs(ctx, conn, roleIDs)
	if errBatch != nil {
		return nil, errBatch
	}

	result := make([]RoleWithModules, 0, len(roles))
	for _, role := range roles {
		result = append(result, RoleWithModules{Role: role, Modules: modulesByRole[role.ID]})
	}
	return result, nil
}

// GetRoleWithModules loads one role with its active module grants.
func GetRoleWithModules(ctx context.Context, conn *gorm.DB, roleID uint64) (*RoleWithModules, error) {
	role, errGet := GetRole(ctx, conn, roleID)
	if errGet != nil {
		return nil, errGet
	}
	modulesByRole, errBatch := store.ModulesByRoleIDs(ctx, conn, []uint64{role.ID})
	if errBatch != nil {
		return nil, errBatch
	}
	return &RoleWithModules{Role: *role, Modules: modulesByRole[role.ID]}, nil
}

// ListModules returns modules ordered by id, optionally filtered.
func ListModules(ctx context.Context, conn *gorm.DB, filter ListFilter) ([]models.Module, error) {
	if conn == nil {
		return nil, fmt.Errorf("list modules: nil db")
	}
	query := conn.WithContext(ctx).Model(&models.Module{}).Order("id ASC")
	if filter.ActiveOnly {
		query = query.Where("active = ?", true)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := db.NormalizeLikePattern(conn, "%"+search+"%")
		query = query.Where(db.CaseInsensitiveLikeExpr(conn, "name"), pattern)
	}

	var modules []models.Module
	if errFind := query.Find(&modules).Error; errFind != nil {
		return nil, fmt.Errorf("list modules: %w", errFind)
	}
	return modules, nil
}

// UserModules resolves the union of modules granted through the user's
// active roles, deduplicated and ordered by module id.
func UserModules(ctx context.Context, conn *gorm.DB, userID uint64) ([]models.Module, error) {
	rolesByUser, errRoles := store.RolesByUserIDs(ctx, conn, []uint64{userID})
	if errRoles != nil {
		return nil, errRoles
	}

	roleIDs := make([]uint64, 0, len(rolesByUser[userID]))
	for _, role := range rolesByUser[userID] {
		if !role.Active {
			continue
		}
		roleIDs = append(roleIDs, role.ID)
	}
	if len(roleIDs) == 0 {
		return []models.Module{}, nil
	}

	modulesByRole, errModules := store.ModulesByRoleIDs(ctx, conn, roleIDs)
	if errModules != nil {
		return nil, errModules
	}

	seen := make(map[uint64]struct{})
	union := make([]models.Module, 0)
	for _, roleID := range roleIDs {
		for _, module := range modulesByRole[roleID] {
			if _, ok := seen[module.ID]; ok {
				continue
			}
			seen[module.ID] = struct{}{}
			union = append(union, module)
		}
	}
	sort.Slice(union, func(i, j int) bool { return union[i].ID < union[j].ID })
	return union, nil
}
