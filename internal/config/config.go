package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath     = "CONFIG_PATH"
	EnvDBConnection   = "DB_CONNECTION"
	EnvJWTSecret      = "JWT_SECRET"
	EnvJWTExpiry      = "JWT_EXPIRY"
	EnvMongoURI       = "MONGO_URI"
	EnvMongoDatabase  = "MONGO_DATABASE"
	EnvGoogleClientID = "GOOGLE_CLIENT_ID"
	EnvSMTPPassword   = "SMTP_PASSWORD"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database.dsn` in config file or DB_CONNECTION)")

// LoadDatabaseDSN reads the relational database DSN. The DB_CONNECTION
// environment variable wins over the config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	// fileConfig maps the YAML fields needed for DSN resolution.
	type fileConfig struct {
		Database struct {
			DSN string `yaml:"dsn"`
		} `yaml:"database"`
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config file: %w", err)
	}

	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// defaultJWTExpiry is used when the config omits or invalidates JWT expiry.
const defaultJWTExpiry = 24 * time.Hour

// LoadJWTConfig loads JWT settings from the YAML config file. JWT_SECRET
// and JWT_EXPIRY environment variables win over the file.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	// fileConfig maps the YAML fields needed for JWT settings.
	type fileConfig struct {
		JWT JWTConfig `yaml:"jwt"`
	}

	result := JWTConfig{Expiry: defaultJWTExpiry}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.JWT
		}
	}

	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			result.Expiry = expiry
		}
	}

	if result.Expiry <= 0 {
		result.Expiry = defaultJWTExpiry
	}
	return result, nil
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed-origins"`
}

// LoadServerConfig loads HTTP server settings from the YAML config file.
func LoadServerConfig(configPath string, defaultPort int) (ServerConfig, error) {
	// fileConfig maps the YAML fields needed for server settings.
	type fileConfig struct {
		Server ServerConfig `yaml:"server"`
	}

	result := ServerConfig{Port: defaultPort}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.Server
		}
	}

	if result.Port <= 0 || result.Port > 65535 {
		result.Port = defaultPort
	}
	return result, nil
}

// MongoConfig holds metrics document-store settings.
type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// LoadMongoConfig loads Mongo settings from the YAML config file. MONGO_URI
// and MONGO_DATABASE environment variables win over the file.
func LoadMongoConfig(configPath string) (MongoConfig, error) {
	// fileConfig maps the YAML fields needed for Mongo settings.
	type fileConfig struct {
		Mongo MongoConfig `yaml:"mongo"`
	}

	result := MongoConfig{Database: "smart_traffic", Collection: "traffic_metrics"}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			if strings.TrimSpace(cfg.Mongo.URI) != "" {
				result.URI = cfg.Mongo.URI
			}
			if strings.TrimSpace(cfg.Mongo.Database) != "" {
				result.Database = cfg.Mongo.Database
			}
			if strings.TrimSpace(cfg.Mongo.Collection) != "" {
				result.Collection = cfg.Mongo.Collection
			}
		}
	}

	if uri := strings.TrimSpace(os.Getenv(EnvMongoURI)); uri != "" {
		result.URI = uri
	}
	if database := strings.TrimSpace(os.Getenv(EnvMongoDatabase)); database != "" {
		result.Database = database
	}
	return result, nil
}

// GoogleConfig holds Google OAuth settings.
type GoogleConfig struct {
	ClientID string `yaml:"client-id"`
}

// LoadGoogleConfig loads Google OAuth settings from the YAML config file.
// GOOGLE_CLIENT_ID wins over the file.
func LoadGoogleConfig(configPath string) (GoogleConfig, error) {
	// fileConfig maps the YAML fields needed for Google settings.
	type fileConfig struct {
		Google GoogleConfig `yaml:"google"`
	}

	var result GoogleConfig

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.Google
		}
	}

	if clientID := strings.TrimSpace(os.Getenv(EnvGoogleClientID)); clientID != "" {
		result.ClientID = clientID
	}
	return result, nil
}

// SMTPConfig holds outbound email settings.
type SMTPConfig struct {
	Host              string `yaml:"host"`
	Port              int    `yaml:"port"`
	Username          string `yaml:"username"`
	Password          string `yaml:"password"`
	From              string `yaml:"from"`
	FromName          string `yaml:"from-name"`
	ChangePasswordURL string `yaml:"change-password-url"`
}

// LoadSMTPConfig loads SMTP settings from the YAML config file. SMTP_PASSWORD
// wins over the file.
func LoadSMTPConfig(configPath string) (SMTPConfig, error) {
	// fileConfig maps the YAML fields needed for SMTP settings.
	type fileConfig struct {
		SMTP SMTPConfig `yaml:"smtp"`
	}

	result := SMTPConfig{Port: 587}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.SMTP
		}
	}

	if password := strings.TrimSpace(os.Getenv(EnvSMTPPassword)); password != "" {
		result.Password = password
	}
	if result.Port <= 0 {
		result.Port = 587
	}
	return result, nil
}

// RedisConfig holds optional Redis settings for distributed rate limiting.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// RateLimitConfig holds login rate limit settings.
type RateLimitConfig struct {
	LoginPerMinute int         `yaml:"login-per-minute"`
	Redis          RedisConfig `yaml:"redis"`
}

// DefaultLoginRateLimit is the fallback per-minute login attempt limit.
const DefaultLoginRateLimit = 10

// LoadRateLimitConfig loads rate limit settings from the YAML config file.
func LoadRateLimitConfig(configPath string) (RateLimitConfig, error) {
	// fileConfig maps the YAML fields needed for rate limit settings.
	type fileConfig struct {
		RateLimit RateLimitConfig `yaml:"rate-limit"`
	}

	var result RateLimitConfig
	result.LoginPerMinute = DefaultLoginRateLimit

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.RateLimit
		}
	}

	if result.LoginPerMinute <= 0 {
		result.LoginPerMinute = DefaultLoginRateLimit
	}
	if result.Redis.Prefix == "" {
		result.Redis.Prefix = "traffic-admin:rl"
	}
	return result, nil
}
