package handlers

import (
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/gin-gonic/gin"
	"github.com/smartcitybq/traffic-admin/internal/iam"
	"github.com/smartcitybq/traffic-admin/internal/models"
	"gorm.io/gorm"
)

// ModuleHandler serves the module catalog. Modules are seeded by the
// migrations and read-only over the API.
type ModuleHandler struct {
	db *gorm.DB
}

// NewModuleHandler constructs a ModuleHandler.
func NewModuleHandler(db *gorm.DB) *ModuleHandler {
	return &ModuleHandler{db: db}
}

// List returns all modules.
func (h *ModuleHandler) List(c *gin.Context) {
	modules, errList := iam.ListModules(c.Request.Context(), h.db, listFilterFromQuery(c))
	if errList != nil {
		log.WithError(errList).Error("list modules failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list modules failed"})
		return
	}
	out := make([]gin.H, 0, len(modules))
	for _, mod := range modules {
		out = append(out, moduleJSON(mod))
	}
	c.JSON(http.StatusOK, gin.H{"modules": out})
}

// Get returns a module by ID.
func (h *ModuleHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var mod models.Module
	if errFind := h.db.WithContext(c.Request.Context()).First(&mod, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		log.WithError(errFind).Error("query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, moduleJSON(mod))
}
