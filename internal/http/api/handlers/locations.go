package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gin-gonic/gin"
	dbutil "github.com/smartcitybq/traffic-admin/internal/db"
	"github.com/smartcitybq/traffic-admin/internal/models"
	"gorm.io/gorm"
)

// LocationHandler manages monitored location endpoints.
type LocationHandler struct {
	db *gorm.DB
}

// NewLocationHandler constructs a LocationHandler.
func NewLocationHandler(db *gorm.DB) *LocationHandler {
	return &LocationHandler{db: db}
}

// validCoordinates reports whether the pair is a usable WGS84 point.
func validCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// createLocationRequest defines the request body for location creation.
type createLocationRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Active      *bool   `json:"active"`
}

// Create creates a new monitored location.
func (h *LocationHandler) Create(c *gin.Context) {
	var body createLocationRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
		return
	}
	if !validCoordinates(body.Latitude, body.Longitude) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid coordinates"})
		return
	}

	loc := models.Location{
		Name:        name,
		Description: strings.TrimSpace(body.Description),
		Latitude:    body.Latitude,
		Longitude:   body.Longitude,
		Active:      true,
	}
	if body.Active != nil {
		loc.Active = *body.Active
	}

	if errCreate := h.db.WithContext(c.Request.Context()).Create(&loc).Error; errCreate != nil {
		if errors.Is(errCreate, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "location name already in use"})
			return
		}
		log.WithError(errCreate).Error("create location failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create location failed"})
		return
	}
	c.JSON(http.StatusCreated, locationJSON(loc))
}

// List returns locations matching the optional active and search filters.
func (h *LocationHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.Location{})
	if active, ok := queryBool(c, "active"); ok && active {
		q = q.Where("active = ?", true)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+search+"%")
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "name"), pattern)
	}

	var rows []models.Location
	if errFind := q.Order("id ASC").Find(&rows).Error; errFind != nil {
		log.WithError(errFind).Error("list locations failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list locations failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, locationJSON(row))
	}
	c.JSON(http.StatusOK, gin.H{"locations": out})
}

// Get returns a location by ID.
func (h *LocationHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var loc models.Location
	if errFind := h.db.WithContext(c.Request.Context()).First(&loc, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		log.WithError(errFind).Error("query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, locationJSON(loc))
}

// updateLocationRequest defines the request body for location updates.
type updateLocationRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Active      *bool    `json:"active"`
}

// Update modifies a location.
func (h *LocationHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body updateLocationRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var loc models.Location
	if errFind := h.db.WithContext(c.Request.Context()).First(&loc, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		log.WithError(errFind).Error("query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	lat, lon := loc.Latitude, loc.Longitude
	if body.Latitude != nil {
		lat = *body.Latitude
	}
	if body.Longitude != nil {
		lon = *body.Longitude
	}
	if !validCoordinates(lat, lon) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid coordinates"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing name"})
			return
		}
		updates["name"] = name
	}
	if body.Description != nil {
		updates["description"] = strings.TrimSpace(*body.Description)
	}
	if body.Latitude != nil {
		updates["latitude"] = lat
	}
	if body.Longitude != nil {
		updates["longitude"] = lon
	}
	if body.Active != nil {
		updates["active"] = *body.Active
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.Location{}).
		Where("id = ?", id).Updates(updates).Error; errUpdate != nil {
		if errors.Is(errUpdate, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "location name already in use"})
			return
		}
		log.WithError(errUpdate).Error("update failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}

	if errReload := h.db.WithContext(c.Request.Context()).First(&loc, id).Error; errReload != nil {
		log.WithError(errReload).Error("query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, locationJSON(loc))
}

// Delete deactivates a location. Historic traffic metrics keep
// referencing it by ID.
func (h *LocationHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.Location{}).
		Where("id = ? AND active = ?", id, true).
		Updates(map[string]any{"active": false, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		log.WithError(res.Error).Error("delete failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
