package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/smartcitybq/traffic-admin/internal/models"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite:
		return migrateSQLite(conn)
	case DialectPostgres, "":
		return migratePostgres(conn)
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}
}

// autoMigrateModels lists every model managed by AutoMigrate.
func autoMigrateModels() []any {
	return []any{
		&models.User{},
		&models.Role{},
		&models.Module{},
		&models.UserRole{},
		&models.ModuleRole{},
		&models.Location{},
	}
}

// migratePostgres applies PostgreSQL-specific schema updates and indexes.
func migratePostgres(conn *gorm.DB) error {
	if errAutoMigrate := conn.AutoMigrate(autoMigrateModels()...); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	if errSeed := ensureDefaultModules(conn); errSeed != nil {
		return errSeed
	}

	_ = conn.Exec(`CREATE EXTENSION IF NOT EXISTS pg_trgm`).Error

	// ddl defines an index or DDL statement to apply.
	type ddl struct {
		name string // Human-readable name for error reporting.
		sql  string // SQL to execute.
	}
	ddls := []ddl{
		{
			name: "idx_users_active_id",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_users_active_id
				ON users (id)
				WHERE active = true
			`,
		},
		{
			name: "idx_roles_active_id",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_roles_active_id
				ON roles (id)
				WHERE active = true
			`,
		},
		{
			name: "idx_user_roles_user_active",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_user_roles_user_active
				ON user_roles (user_id)
				WHERE active = true
			`,
		},
		{
			name: "idx_user_roles_role_active",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_user_roles_role_active
				ON user_roles (role_id)
				WHERE active = true
			`,
		},
		{
			name: "idx_module_roles_role_active",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_module_roles_role_active
				ON module_roles (role_id)
				WHERE active = true
			`,
		},
		{
			name: "idx_module_roles_module_active",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_module_roles_module_active
				ON module_roles (module_id)
				WHERE active = true
			`,
		},
		{
			name: "idx_locations_active_id",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_locations_active_id
				ON locations (id)
				WHERE active = true
			`,
		},
	}
	for _, item := range ddls {
		if errDDL := conn.Exec(item.sql).Error; errDDL != nil {
			return fmt.Errorf("db: create index %s: %w", item.name, errDDL)
		}
	}

	// trgmIndex defines trigram and fallback index statements.
	type trgmIndex struct {
		name     string // Logical index name.
		trgmSQL  string // Trigram index SQL.
		lowerSQL string // Lowercase fallback index SQL.
	}
	trgmIndexes := []trgmIndex{
		{
			name: "idx_users_name",
			trgmSQL: `
				CREATE INDEX IF NOT EXISTS idx_users_name_trgm
				ON users USING gin (name gin_trgm_ops)
			`,
			lowerSQL: `
				CREATE INDEX IF NOT EXISTS idx_users_name_lower
				ON users (LOWER(name))
			`,
		},
		{
			name: "idx_users_email",
			trgmSQL: `
				CREATE INDEX IF NOT EXISTS idx_users_email_trgm
				ON users USING gin (email gin_trgm_ops)
			`,
			lowerSQL: `
				CREATE INDEX IF NOT EXISTS idx_users_email_lower
				ON users (LOWER(email))
			`,
		},
		{
			name: "idx_roles_name",
			trgmSQL: `
				CREATE INDEX IF NOT EXISTS idx_roles_name_trgm
				ON roles USING gin (name gin_trgm_ops)
			`,
			lowerSQL: `
				CREATE INDEX IF NOT EXISTS idx_roles_name_lower
				ON roles (LOWER(name))
			`,
		},
		{
			name: "idx_locations_name",
			trgmSQL: `
				CREATE INDEX IF NOT EXISTS idx_locations_name_trgm
				ON locations USING gin (name gin_trgm_ops)
			`,
			lowerSQL: `
				CREATE INDEX IF NOT EXISTS idx_locations_name_lower
				ON locations (LOWER(name))
			`,
		},
	}
	for _, item := range trgmIndexes {
		if errIdx := conn.Exec(item.trgmSQL).Error; errIdx != nil {
			if errLower := conn.Exec(item.lowerSQL).Error; errLower != nil {
				return fmt.Errorf("db: create index %s: %w", item.name, errLower)
			}
		}
	}

	return nil
}

// migrateSQLite applies SQLite-specific schema updates and indexes.
func migrateSQLite(conn *gorm.DB) error {
	if errAutoMigrate := conn.AutoMigrate(autoMigrateModels()...); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	if errSeed := ensureDefaultModules(conn); errSeed != nil {
		return errSeed
	}

	// ddl defines an index or DDL statement to apply.
	type ddl struct {
		name string // Human-readable name for error reporting.
		sql  string // SQL to execute.
	}
	ddls := []ddl{
		{
			name: "idx_user_roles_user_active",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_user_roles_user_active
				ON user_roles (user_id)
				WHERE active = true
			`,
		},
		{
			name: "idx_user_roles_role_active",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_user_roles_role_active
				ON user_roles (role_id)
				WHERE active = true
			`,
		},
		{
			name: "idx_module_roles_role_active",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_module_roles_role_active
				ON module_roles (role_id)
				WHERE active = true
			`,
		},
		{
			name: "idx_module_roles_module_active",
			sql: `
				CREATE INDEX IF NOT EXISTS idx_module_roles_module_active
				ON module_roles (module_id)
				WHERE active = true
			`,
		},
	}
	for _, item := range ddls {
		if errDDL := conn.Exec(item.sql).Error; errDDL != nil {
			return fmt.Errorf("db: create index %s: %w", item.name, errDDL)
		}
	}

	return nil
}

// defaultModules lists the console modules seeded on first boot.
func defaultModules() []models.Module {
	return []models.Module{
		{Name: "Dashboard", Description: "Traffic overview and live charts", Path: "/dashboard", Icon: "dashboard"},
		{Name: "Users", Description: "User administration", Path: "/iam/users", Icon: "people"},
		{Name: "Roles", Description: "Role administration", Path: "/iam/roles", Icon: "security"},
		{Name: "Locations", Description: "Monitored intersections and corridors", Path: "/traffic/locations", Icon: "place"},
	}
}

// ensureDefaultModules seeds the built-in console modules when absent.
func ensureDefaultModules(conn *gorm.DB) error {
	for _, module := range defaultModules() {
		var existing models.Module
		errFind := conn.Where("name = ?", module.Name).First(&existing).Error
		if errFind == nil {
			continue
		}
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return fmt.Errorf("db: query module %s: %w", module.Name, errFind)
		}

		now := time.Now().UTC()
		module.Active = true
		module.CreatedAt = now
		module.UpdatedAt = now
		if errCreate := conn.Create(&module).Error; errCreate != nil {
			return fmt.Errorf("db: seed module %s: %w", module.Name, errCreate)
		}
	}
	return nil
}
