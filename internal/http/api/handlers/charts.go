package handlers

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/gin-gonic/gin"
	"github.com/smartcitybq/traffic-admin/internal/metrics"
)

// ChartHandler serves aggregated traffic chart data from Mongo.
type ChartHandler struct {
	charts *metrics.Manager
}

// NewChartHandler constructs a ChartHandler.
func NewChartHandler(charts *metrics.Manager) *ChartHandler {
	return &ChartHandler{charts: charts}
}

// VehicleTimeline returns hourly average vehicle counts over the
// window. A zero location_id spans all locations.
func (h *ChartHandler) VehicleTimeline(c *gin.Context) {
	locationID := queryUint64(c, "location_id")
	hours := metrics.ClampWindowHours(queryInt(c, "hours", metrics.DefaultWindowHours))

	timeline, errChart := h.charts.VehicleTimeline(c.Request.Context(), locationID, hours)
	if errChart != nil {
		log.WithError(errChart).Error("vehicle timeline query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "chart data unavailable"})
		return
	}
	c.JSON(http.StatusOK, timeline)
}

// LocationComparison returns average vehicle counts per location, most
// congested first.
func (h *ChartHandler) LocationComparison(c *gin.Context) {
	hours := metrics.ClampWindowHours(queryInt(c, "hours", metrics.DefaultWindowHours))

	comparison, errChart := h.charts.LocationComparison(c.Request.Context(), hours)
	if errChart != nil {
		log.WithError(errChart).Error("location comparison query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "chart data unavailable"})
		return
	}
	c.JSON(http.StatusOK, comparison)
}

// VehicleTypes returns detection totals per vehicle class.
func (h *ChartHandler) VehicleTypes(c *gin.Context) {
	locationID := queryUint64(c, "location_id")
	hours := metrics.ClampWindowHours(queryInt(c, "hours", metrics.DefaultWindowHours))

	types, errChart := h.charts.VehicleTypes(c.Request.Context(), locationID, hours)
	if errChart != nil {
		log.WithError(errChart).Error("vehicle types query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "chart data unavailable"})
		return
	}
	c.JSON(http.StatusOK, types)
}

// HourlyHeatmap returns a day-of-week by hour grid of average vehicle
// counts.
func (h *ChartHandler) HourlyHeatmap(c *gin.Context) {
	locationID := queryUint64(c, "location_id")
	days := metrics.ClampWindowDays(queryInt(c, "days", metrics.DefaultWindowDays))

	heatmap, errChart := h.charts.HourlyHeatmap(c.Request.Context(), locationID, days)
	if errChart != nil {
		log.WithError(errChart).Error("hourly heatmap query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "chart data unavailable"})
		return
	}
	c.JSON(http.StatusOK, heatmap)
}

// Summary returns the current-day dashboard KPIs.
func (h *ChartHandler) Summary(c *gin.Context) {
	locationID := queryUint64(c, "location_id")

	summary, errChart := h.charts.DashboardSummary(c.Request.Context(), locationID)
	if errChart != nil {
		log.WithError(errChart).Error("dashboard summary query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "chart data unavailable"})
		return
	}
	c.JSON(http.StatusOK, summary)
}
