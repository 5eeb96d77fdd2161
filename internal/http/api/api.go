// Package api wires the HTTP surface: route registration and the
// bearer-token middleware guarding authenticated endpoints.
package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smartcitybq/traffic-admin/internal/config"
	"github.com/smartcitybq/traffic-admin/internal/http/api/handlers"
	"github.com/smartcitybq/traffic-admin/internal/iam"
	"github.com/smartcitybq/traffic-admin/internal/mailer"
	"github.com/smartcitybq/traffic-admin/internal/metrics"
	"github.com/smartcitybq/traffic-admin/internal/ratelimit"
	"github.com/smartcitybq/traffic-admin/internal/security"
	"gorm.io/gorm"
)

// Deps bundles the shared services handlers depend on.
type Deps struct {
	DB      *gorm.DB
	JWT     config.JWTConfig
	Charts  *metrics.Manager
	Mailer  *mailer.Mailer
	Google  *security.GoogleVerifier
	Limiter *ratelimit.Manager
}

// RegisterRoutes registers all routes, middleware, and handlers.
func RegisterRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.DB == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Charts)
	r.GET("/healthz", healthHandler.Healthz)
	r.GET("/healthz/mongo", healthHandler.HealthzMongo)

	apiGroup := r.Group("/api")

	authHandler := handlers.NewAuthHandler(deps.DB, deps.JWT, deps.Google, deps.Limiter)
	apiGroup.POST("/auth/login", authHandler.Login)
	apiGroup.POST("/auth/login/google", authHandler.LoginGoogle)
	apiGroup.POST("/auth/change-password", authHandler.ChangePassword)

	authed := apiGroup.Group("")
	authed.Use(authMiddleware(deps.DB, deps.JWT))

	authed.GET("/auth/me", authHandler.Me)

	userHandler := handlers.NewUserHandler(deps.DB, deps.Mailer)
	authed.GET("/iam/users", userHandler.List)
	authed.GET("/iam/users/with-roles", userHandler.ListWithRoles)
	authed.GET("/iam/users/:id", userHandler.Get)
	authed.POST("/iam/users", userHandler.Create)
	authed.PUT("/iam/users/:id", userHandler.Update)
	authed.DELETE("/iam/users/:id", userHandler.Delete)
	authed.POST("/iam/users/:id/reset-password", userHandler.ResetPassword)

	roleHandler := handlers.NewRoleHandler(deps.DB)
	authed.GET("/iam/roles", roleHandler.List)
	authed.GET("/iam/roles/with-modules", roleHandler.ListWithModules)
	authed.GET("/iam/roles/:id", roleHandler.Get)
	authed.POST("/iam/roles", roleHandler.Create)
	authed.PUT("/iam/roles/:id", roleHandler.Update)
	authed.DELETE("/iam/roles/:id", roleHandler.Delete)

	moduleHandler := handlers.NewModuleHandler(deps.DB)
	authed.GET("/iam/modules", moduleHandler.List)
	authed.GET("/iam/modules/:id", moduleHandler.Get)

	locationHandler := handlers.NewLocationHandler(deps.DB)
	authed.GET("/traffic/locations", locationHandler.List)
	authed.GET("/traffic/locations/:id", locationHandler.Get)
	authed.POST("/traffic/locations", locationHandler.Create)
	authed.PUT("/traffic/locations/:id", locationHandler.Update)
	authed.DELETE("/traffic/locations/:id", locationHandler.Delete)

	if deps.Charts != nil {
		chartHandler := handlers.NewChartHandler(deps.Charts)
		authed.GET("/charts/vehicle-timeline", chartHandler.VehicleTimeline)
		authed.GET("/charts/location-comparison", chartHandler.LocationComparison)
		authed.GET("/charts/vehicle-types", chartHandler.VehicleTypes)
		authed.GET("/charts/hourly-heatmap", chartHandler.HourlyHeatmap)
		authed.GET("/charts/summary", chartHandler.Summary)
	}
}

// authMiddleware validates session JWTs and loads the calling user.
func authMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseSessionToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		user, errFind := iam.GetUserByEmail(c.Request.Context(), db, claims.Email())
		if errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if !user.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account disabled"})
			return
		}

		c.Set("userID", user.ID)
		c.Set("userEmail", user.Email)
		c.Next()
	}
}
