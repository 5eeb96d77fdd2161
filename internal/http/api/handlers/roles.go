package handlers

import (
	"errors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/gin-gonic/gin"
	"github.com/smartcitybq/traffic-admin/internal/iam"
	"gorm.io/gorm"
)

// RoleHandler manages role endpoints.
type RoleHandler struct {
	db *gorm.DB
}

// NewRoleHandler constructs a RoleHandler.
func NewRoleHandler(db *gorm.DB) *RoleHandler {
	return &RoleHandler{db: db}
}

// List returns roles matching the optional active and search filters.
func (h *RoleHandler) List(c *gin.Context) {
	roles, errList := iam.ListRoles(c.Request.Context(), h.db, listFilterFromQuery(c))
	if errList != nil {
		log.WithError(errList).Error("list roles failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list roles failed"})
		return
	}
	out := make([]gin.H, 0, len(roles))
	for _, role := range roles {
		out = append(out, roleJSON(role))
	}
	c.JSON(http.StatusOK, gin.H{"roles": out})
}

// ListWithModules returns roles with their active module grants.
func (h *RoleHandler) ListWithModules(c *gin.Context) {
	roles, errList := iam.ListRolesWithModules(c.Request.Context(), h.db, listFilterFromQuery(c))
	if errList != nil {
		log.WithError(errList).Error("list roles failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list roles failed"})
		return
	}
	out := make([]gin.H, 0, len(roles))
	for _, entry := range roles {
		row := roleJSON(entry.Role)
		modules := make([]gin.H, 0, len(entry.Modules))
		for _, mod := range entry.Modules {
			modules = append(modules, moduleJSON(mod))
		}
		row["modules"] = modules
		out = append(out, row)
	}
	c.JSON(http.StatusOK, gin.H{"roles": out})
}

// Get returns one role with modules by ID.
func (h *RoleHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	entry, errFind := iam.GetRoleWithModules(c.Request.Context(), h.db, id)
	if errFind != nil {
		if errors.Is(errFind, iam.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		log.WithError(errFind).Error("query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	row := roleJSON(entry.Role)
	modules := make([]gin.H, 0, len(entry.Modules))
	for _, mod := range entry.Modules {
		modules = append(modules, moduleJSON(mod))
	}
	row["modules"] = modules
	c.JSON(http.StatusOK, row)
}

// createRoleRequest defines the request body for role creation.
type createRoleRequest struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Active      *bool     `json:"active"`
	ModuleIDs   *[]uint64 `json:"module_ids"`
}

// Create creates a role and assigns its module grants.
func (h *RoleHandler) Create(c *gin.Context) {
	var body createRoleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}

	role, errCreate := iam.CreateRole(c.Request.Context(), h.db, iam.CreateRoleInput{
		Name:        name,
		Description: strings.TrimSpace(body.Description),
		Active:      body.Active,
		ModuleIDs:   body.ModuleIDs,
	})
	if errCreate != nil {
		switch {
		case errors.Is(errCreate, iam.ErrInvalidReference):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown module id"})
		case errors.Is(errCreate, gorm.ErrDuplicatedKey):
			c.JSON(http.StatusConflict, gin.H{"error": "role name already in use"})
		default:
			log.WithError(errCreate).Error("create role failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create role failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, roleJSON(*role))
}

// updateRoleRequest defines the request body for role updates. Nil
// module_ids leaves grants untouched, an empty list clears them.
type updateRoleRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Active      *bool     `json:"active"`
	ModuleIDs   *[]uint64 `json:"module_ids"`
}

// Update modifies a role and synchronizes its module grants.
func (h *RoleHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body updateRoleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	role, errUpdate := iam.UpdateRole(c.Request.Context(), h.db, id, iam.UpdateRoleInput{
		Name:        body.Name,
		Description: body.Description,
		Active:      body.Active,
		ModuleIDs:   body.ModuleIDs,
	})
	if errUpdate != nil {
		switch {
		case errors.Is(errUpdate, iam.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		case errors.Is(errUpdate, iam.ErrInvalidReference):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown module id"})
		case errors.Is(errUpdate, gorm.ErrDuplicatedKey):
			c.JSON(http.StatusConflict, gin.H{"error": "role name already in use"})
		default:
			log.WithError(errUpdate).Error("update role failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update role failed"})
		}
		return
	}
	c.JSON(http.StatusOK, roleJSON(*role))
}

// Delete deactivates a role. Users keep their assignment history and
// module grants stay flagged for a later reactivation.
func (h *RoleHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if errDelete := iam.DeactivateRole(c.Request.Context(), h.db, id); errDelete != nil {
		if errors.Is(errDelete, iam.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		log.WithError(errDelete).Error("delete failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
