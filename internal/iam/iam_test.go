package iam

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/smartcitybq/traffic-admin/internal/models"
	"github.com/smartcitybq/traffic-admin/internal/security"
	"gorm.io/gorm"
)

func openIAMTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := conn.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.Module{},
		&models.UserRole{},
		&models.ModuleRole{},
	); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func seedRole(t *testing.T, conn *gorm.DB, name string) models.Role {
	t.Helper()
	role := models.Role{Name: name, Active: true}
	if err := conn.Create(&role).Error; err != nil {
		t.Fatalf("seed role %s: %v", name, err)
	}
	return role
}

func seedModule(t *testing.T, conn *gorm.DB, name, path string) models.Module {
	t.Helper()
	module := models.Module{Name: name, Path: path, Active: true}
	if err := conn.Create(&module).Error; err != nil {
		t.Fatalf("seed module %s: %v", name, err)
	}
	return module
}

func TestCreateUserWithRoles(t *testing.T) {
	conn := openIAMTestDB(t)
	ctx := context.Background()
	operator := seedRole(t, conn, "operator")

	roleIDs := []uint64{operator.ID}
	user, err := CreateUser(ctx, conn, CreateUserInput{
		Email:          "Maria.Lopez@City.Example",
		Name:           "Maria Lopez",
		Identification: "CC-1001",
		RoleIDs:        &roleIDs,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.Email != "maria.lopez@city.example" {
		t.Fatalf("expected normalized email, got %q", user.Email)
	}
	if !user.MustChangePassword {
		t.Fatalf("new user must be forced to set a password")
	}
	if user.PasswordResetToken == nil || *user.PasswordResetToken == "" {
		t.Fatalf("new user must carry a reset token")
	}

	withRoles, errGet := GetUserWithRoles(ctx, conn, user.ID)
	if errGet != nil {
		t.Fatalf("get user with roles: %v", errGet)
	}
	if len(withRoles.Roles) != 1 || withRoles.Roles[0].ID != operator.ID {
		t.Fatalf("unexpected roles %v", withRoles.Roles)
	}
}

func TestCreateUserUnknownRoleWritesNothing(t *testing.T) {
	conn := openIAMTestDB(t)
	ctx := context.Background()

	roleIDs := []uint64{42}
	_, err := CreateUser(ctx, conn, CreateUserInput{
		Email:          "ghost@city.example",
		Name:           "Ghost",
		Identification: "CC-0000",
		RoleIDs:        &roleIDs,
	})
	if !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}

	var users int64
	if errCount := conn.Model(&models.User{}).Count(&users).Error; errCount != nil {
		t.Fatalf("count users: %v", errCount)
	}
	if users != 0 {
		t.Fatalf("expected no user rows after failed create, got %d", users)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	conn := openIAMTestDB(t)
	ctx := context.Background()

	input := CreateUserInput{Email: "dup@city.example", Name: "First", Identification: "CC-1"}
	if _, err := CreateUser(ctx, conn, input); err != nil {
		t.Fatalf("create first user: %v", err)
	}
	input.Identification = "CC-2"
	if _, err := CreateUser(ctx, conn, input); !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected duplicated key error, got %v", err)
	}
}

func TestUpdateUserClearRoles(t *testing.T) {
	conn := openIAMTestDB(t)
	ctx := context.Background()
	operator := seedRole(t, conn, "operator")

	roleIDs := []uint64{operator.ID}
	user, err := CreateUser(ctx, conn, CreateUserInput{
		Email:          "ops@city.example",
		Name:           "Ops",
		Identification: "CC-3",
		RoleIDs:        &roleIDs,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	empty := []uint64{}
	if _, errUpdate := UpdateUser(ctx, conn, user.ID, UpdateUserInput{RoleIDs: &empty}); errUpdate != nil {
		t.Fatalf("update user: %v", errUpdate)
	}

	withRoles, errGet := GetUserWithRoles(ctx, conn, user.ID)
	if errGet != nil {
		t.Fatalf("get user with roles: %v", errGet)
	}
	if len(withRoles.Roles) != 0 {
		t.Fatalf("expected roles cleared, got %v", withRoles.Roles)
	}

	var history int64
	if errCount := conn.Model(&models.UserRole{}).Where("user_id = ?", user.ID).Count(&history).Error; errCount != nil {
		t.Fatalf("count assignments: %v", errCount)
	}
	if history != 1 {
		t.Fatalf("expected assignment history preserved, got %d", history)
	}
}

func TestUpdateUserNilRolesLeavesAssignmentsUntouched(t *testing.T) {
	conn := openIAMTestDB(t)
	ctx := context.Background()
	operator := seedRole(t, conn, "operator")

	roleIDs := []uint64{operator.ID}
	user, err := CreateUser(ctx, conn, CreateUserInput{
		Email:          "keep@city.example",
		Name:           "Keep",
		Identification: "CC-4",
		RoleIDs:        &roleIDs,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	newName := "Keep Renamed"
	updated, errUpdate := UpdateUser(ctx, conn, user.ID, UpdateUserInput{Name: &newName})
	if errUpdate != nil {
		t.Fatalf("update user: %v", errUpdate)
	}
	if updated.Name != "Keep Renamed" {
		t.Fatalf("unexpected name %q", updated.Name)
	}

	withRoles, errGet := GetUserWithRoles(ctx, conn, user.ID)
	if errGet != nil {
		t.Fatalf("get user with roles: %v", errGet)
	}
	if len(withRoles.Roles) != 1 {
		t.Fatalf("expected roles untouched, got %v", withRoles.Roles)
	}
}

func TestUpdateUserNotFound(t *testing.T) {
	conn := openIAMTestDB(t)
	if _, err := UpdateUser(context.Background(), conn, 12345, UpdateUserInput{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateRoleWithModulesAndUserModules(t *testing.T) {
	conn := openIAMTestDB(t)
	ctx := context.Background()
	dashboard := seedModule(t, conn, "Dashboard", "/dashboard")
	locations := seedModule(t, conn, "Locations", "/traffic/locations")

	moduleIDs := []uint64{dashboard.ID, locations.ID}
	role, err := CreateRole(ctx, conn, CreateRoleInput{
		Name:      "operator",
		ModuleIDs: &moduleIDs,
	})
	if err != nil {
		t.Fatalf("create role: %v", err)
	}

	roleIDs := []uint64{role.ID}
	user, errUser := CreateUser(ctx, conn, CreateUserInput{
		Email:          "nav@city.example",
		Name:           "Nav",
		Identification: "CC-5",
		RoleIDs:        &roleIDs,
	})
	if errUser != nil {
		t.Fatalf("create user: %v", errUser)
	}

	modules, errModules := UserModules(ctx, conn, user.ID)
	if errModules != nil {
		t.Fatalf("user modules: %v", errModules)
	}
	if len(modules) != 2 || modules[0].ID != dashboard.ID || modules[1].ID != locations.ID {
		t.Fatalf("unexpected modules %v", modules)
	}
}

func TestCreateRoleUnknownModule(t *testing.T) {
	conn := openIAMTestDB(t)

	moduleIDs := []uint64{99}
	_, err := CreateRole(context.Background(), conn, CreateRoleInput{Name: "broken", ModuleIDs: &moduleIDs})
	if !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}

	var roles int64
	if errCount := conn.Model(&models.Role{}).Count(&roles).Error; errCount != nil {
		t.Fatalf("count roles: %v", errCount)
	}
	if roles != 0 {
		t.Fatalf("expected no role rows after failed create, got %d", roles)
	}
}

func TestListUsersWithRolesFilter(t *testing.T) {
	conn := openIAMTestDB(t)
	ctx := context.Background()
	operator := seedRole(t, conn, "operator")

	roleIDs := []uint64{operator.ID}
	if _, err := CreateUser(ctx, conn, CreateUserInput{
		Email: "a@city.example", Name: "Alpha", Identification: "CC-A", RoleIDs: &roleIDs,
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	inactive := false
	if _, err := CreateUser(ctx, conn, CreateUserInput{
		Email: "b@city.example", Name: "Beta", Identification: "CC-B", Active: &inactive,
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	all, err := ListUsersWithRoles(ctx, conn, ListFilter{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 users, got %d", len(all))
	}
	if len(all[0].Roles) != 1 || len(all[1].Roles) != 0 {
		t.Fatalf("unexpected role resolution %v", all)
	}

	active, err := ListUsersWithRoles(ctx, conn, ListFilter{ActiveOnly: true})
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].User.Name != "Alpha" {
		t.Fatalf("unexpected active users %v", active)
	}

	searched, err := ListUsers(ctx, conn, ListFilter{Search: "beta"})
	if err != nil {
		t.Fatalf("list searched: %v", err)
	}
	if len(searched) != 1 || searched[0].Name != "Beta" {
		t.Fatalf("unexpected search result %v", searched)
	}
}

func TestResetAndConsumePasswordToken(t *testing.T) {
	conn := openIAMTestDB(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, conn, CreateUserInput{
		Email: "reset@city.example", Name: "Reset", Identification: "CC-R",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	_, token, errReset := ResetPasswordToken(ctx, conn, user.ID)
	if errReset != nil {
		t.Fatalf("reset token: %v", errReset)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}

	updated, errConsume := ConsumeResetToken(ctx, conn, token, "n3w-passw0rd")
	if errConsume != nil {
		t.Fatalf("consume token: %v", errConsume)
	}
	if updated.MustChangePassword {
		t.Fatalf("must_change_password should be cleared")
	}
	if updated.PasswordResetToken != nil {
		t.Fatalf("reset token should be cleared")
	}
	if !security.VerifyPassword(updated.Password, "n3w-passw0rd") {
		t.Fatalf("new password should verify")
	}

	// Second redemption of the same token must fail.
	if _, errAgain := ConsumeResetToken(ctx, conn, token, "another"); !errors.Is(errAgain, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on reuse, got %v", errAgain)
	}
}

func TestDeactivateUserAndRole(t *testing.T) {
	conn := openIAMTestDB(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, conn, CreateUserInput{
		Email: "off@city.example", Name: "Off", Identification: "CC-O",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if errDeactivate := DeactivateUser(ctx, conn, user.ID); errDeactivate != nil {
		t.Fatalf("deactivate user: %v", errDeactivate)
	}
	reloaded, errGet := GetUser(ctx, conn, user.ID)
	if errGet != nil {
		t.Fatalf("get user: %v", errGet)
	}
	if reloaded.Active {
		t.Fatalf("expected user deactivated")
	}

	if errMissing := DeactivateUser(ctx, conn, 777); !errors.Is(errMissing, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", errMissing)
	}

	role := seedRole(t, conn, "temp")
	if errDeactivate := DeactivateRole(ctx, conn, role.ID); errDeactivate != nil {
		t.Fatalf("deactivate role: %v", errDeactivate)
	}
	reloadedRole, errRole := GetRole(ctx, conn, role.ID)
	if errRole != nil {
		t.Fatalf("get role: %v", errRole)
	}
	if reloadedRole.Active {
		t.Fatalf("expected role deactivated")
	}
}
