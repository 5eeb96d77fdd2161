// Package app boots the HTTP server and wires its backing services.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/smartcitybq/traffic-admin/internal/config"
	"github.com/smartcitybq/traffic-admin/internal/db"
	"github.com/smartcitybq/traffic-admin/internal/http/api"
	"github.com/smartcitybq/traffic-admin/internal/mailer"
	"github.com/smartcitybq/traffic-admin/internal/metrics"
	"github.com/smartcitybq/traffic-admin/internal/ratelimit"
	"github.com/smartcitybq/traffic-admin/internal/security"
)

// shutdownTimeout bounds the drain of in-flight requests on exit.
const shutdownTimeout = 10 * time.Second

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the admin API with database-backed components and
// blocks until ctx is cancelled or the listener fails.
func RunServer(ctx context.Context, cfg config.AppConfig, defaultPort int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)

	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	jwtCfg, errJWT := config.LoadJWTConfig(configPath)
	if errJWT != nil {
		return errJWT
	}
	serverCfg, errServer := config.LoadServerConfig(configPath, defaultPort)
	if errServer != nil {
		return errServer
	}
	mongoCfg, errMongo := config.LoadMongoConfig(configPath)
	if errMongo != nil {
		return errMongo
	}
	googleCfg, errGoogle := config.LoadGoogleConfig(configPath)
	if errGoogle != nil {
		return errGoogle
	}
	smtpCfg, errSMTP := config.LoadSMTPConfig(configPath)
	if errSMTP != nil {
		return errSMTP
	}
	rateCfg, errRate := config.LoadRateLimitConfig(configPath)
	if errRate != nil {
		return errRate
	}

	chartManager := metrics.NewManager(mongoCfg)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errClose := chartManager.Close(closeCtx); errClose != nil {
			log.WithError(errClose).Warn("mongo close failed")
		}
	}()

	var googleVerifier *security.GoogleVerifier
	if googleCfg.ClientID != "" {
		googleVerifier = security.NewGoogleVerifier(googleCfg.ClientID)
	} else {
		log.Info("google client id not configured, google login disabled")
	}

	mail := mailer.New(smtpCfg)
	if !mail.Enabled() {
		log.Info("smtp not configured, outbound email disabled")
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	engine.Use(cors.New(corsConfig(serverCfg.AllowedOrigins)))

	api.RegisterRoutes(engine, api.Deps{
		DB:      conn,
		JWT:     jwtCfg,
		Charts:  chartManager,
		Mailer:  mail,
		Google:  googleVerifier,
		Limiter: ratelimit.NewManager(rateCfg, nil, nil),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", serverCfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}

// corsConfig builds the CORS policy from the configured origins. An
// empty list allows any origin, which suits local development.
func corsConfig(allowedOrigins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	if len(allowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = allowedOrigins
	return cfg
}

// requestLogger logs one structured line per request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"ip":      c.ClientIP(),
		}).Info("request")
	}
}
