package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smartcitybq/traffic-admin/internal/metrics"
	"gorm.io/gorm"
)

// healthProbeTimeout bounds backend pings so a hung dependency cannot
// stall the probe.
const healthProbeTimeout = 3 * time.Second

// HealthHandler serves liveness and dependency probes.
type HealthHandler struct {
	db     *gorm.DB
	charts *metrics.Manager
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(db *gorm.DB, charts *metrics.Manager) *HealthHandler {
	return &HealthHandler{db: db, charts: charts}
}

// Healthz reports service and relational database health.
func (h *HealthHandler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthProbeTimeout)
	defer cancel()

	sqlDB, errDB := h.db.WithContext(ctx).DB()
	if errDB == nil {
		errDB = sqlDB.PingContext(ctx)
	}
	if errDB != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "up"})
}

// HealthzMongo reports metrics store connectivity.
func (h *HealthHandler) HealthzMongo(c *gin.Context) {
	if h.charts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "mongo": "not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthProbeTimeout)
	defer cancel()

	if errPing := h.charts.Ping(ctx); errPing != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "mongo": "down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "mongo": "up"})
}
