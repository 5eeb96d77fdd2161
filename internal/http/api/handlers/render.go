// Package handlers implements the HTTP endpoint handlers.
package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smartcitybq/traffic-admin/internal/models"
)

// userJSON renders a user without credential fields.
func userJSON(user models.User) gin.H {
	return gin.H{
		"id":                   user.ID,
		"email":                user.Email,
		"name":                 user.Name,
		"identification":       user.Identification,
		"must_change_password": user.MustChangePassword,
		"active":               user.Active,
		"created_at":           user.CreatedAt,
		"updated_at":           user.UpdatedAt,
	}
}

func roleJSON(role models.Role) gin.H {
	return gin.H{
		"id":          role.ID,
		"name":        role.Name,
		"description": role.Description,
		"active":      role.Active,
		"created_at":  role.CreatedAt,
		"updated_at":  role.UpdatedAt,
	}
}

func moduleJSON(mod models.Module) gin.H {
	return gin.H{
		"id":          mod.ID,
		"name":        mod.Name,
		"description": mod.Description,
		"path":        mod.Path,
		"icon":        mod.Icon,
		"active":      mod.Active,
		"created_at":  mod.CreatedAt,
		"updated_at":  mod.UpdatedAt,
	}
}

func locationJSON(loc models.Location) gin.H {
	return gin.H{
		"id":          loc.ID,
		"name":        loc.Name,
		"description": loc.Description,
		"latitude":    loc.Latitude,
		"longitude":   loc.Longitude,
		"active":      loc.Active,
		"created_at":  loc.CreatedAt,
		"updated_at":  loc.UpdatedAt,
	}
}

// pathID parses the numeric :id path parameter.
func pathID(c *gin.Context) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// queryBool parses an optional boolean query parameter. The second
// return reports whether the parameter was present and valid.
func queryBool(c *gin.Context, name string) (bool, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return false, false
	}
	val, errParse := strconv.ParseBool(raw)
	if errParse != nil {
		return false, false
	}
	return val, true
}

// queryInt parses an optional integer query parameter, falling back to
// def when missing or malformed.
func queryInt(c *gin.Context, name string, def int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def
	}
	val, errParse := strconv.Atoi(raw)
	if errParse != nil {
		return def
	}
	return val
}

// queryUint64 parses an optional uint64 query parameter, zero when absent.
func queryUint64(c *gin.Context, name string) uint64 {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0
	}
	val, errParse := strconv.ParseUint(raw, 10, 64)
	if errParse != nil {
		return 0
	}
	return val
}
