// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq client and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetAsynqMaxRetry() int
}

// LockConfig provides settings for per-job mutation locks.
type LockConfig interface {
	GetRedisURL() string
	GetLockTTL() time.Duration
}

// MinIOConfig provides settings for the raw webhook archive.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketWebhookArchive() string
	IsMinIOEnabled() bool
}

// WebhookConfig provides settings for the inbound webhook endpoint.
type WebhookConfig interface {
	GetWebhookRatePerSecond() float64
	GetWebhookRateBurst() int
}

// ArchiveConfig provides retention settings for archived webhook bodies.
type ArchiveConfig interface {
	GetArchiveRetention() time.Duration
	GetArchiveCleanupInterval() time.Duration
}

// GeocodeConfig provides settings for the Nominatim geocoder.
type GeocodeConfig interface {
	GetNominatimURL() string
	GetGeocodeCountryCodes() string
	IsGeocodeEnabled() bool
}

// ReconcileConfig provides the tunables of the reconciliation engine.
type ReconcileConfig interface {
	GetPhoneRegion() string
	GetCallSource() string
	GetRules() Rules
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                       string
	HTTPAddr                  string
	DatabaseURL               string
	MigrationsDir             string
	JWTAccessSecret           string
	CORSAllowAll              bool
	CORSOrigins               []string
	CORSAllowCreds            bool
	RedisURL                  string
	RedisTLSInsecure          bool
	AsynqQueueName            string
	AsynqConcurrency          int
	AsynqMaxRetry             int
	LockTTL                   time.Duration
	MinIOEndpoint             string
	MinIOAccessKey            string
	MinIOSecretKey            string
	MinIOUseSSL               bool
	MinioBucketWebhookArchive string
	ArchiveRetention          time.Duration
	ArchiveCleanupInterval    time.Duration
	WebhookRatePerSecond      float64
	WebhookRateBurst          int
	NominatimURL              string
	GeocodeCountryCodes       string
	GeocodeEnabled            bool
	PhoneRegion               string
	CallSource                string
	Rules                     Rules
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string        { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool  { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string  { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int   { return c.AsynqConcurrency }
func (c *Config) GetAsynqMaxRetry() int      { return c.AsynqMaxRetry }
func (c *Config) GetLockTTL() time.Duration  { return c.LockTTL }
func (c *Config) IsSchedulerEnabled() bool   { return c.RedisURL != "" }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string  { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool      { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketWebhookArchive() string {
	return c.MinioBucketWebhookArchive
}
func (c *Config) IsMinIOEnabled() bool { return c.MinIOEndpoint != "" }

// WebhookConfig implementation
func (c *Config) GetWebhookRatePerSecond() float64 { return c.WebhookRatePerSecond }
func (c *Config) GetWebhookRateBurst() int         { return c.WebhookRateBurst }

// ArchiveConfig implementation
func (c *Config) GetArchiveRetention() time.Duration       { return c.ArchiveRetention }
func (c *Config) GetArchiveCleanupInterval() time.Duration { return c.ArchiveCleanupInterval }

// GeocodeConfig implementation
func (c *Config) GetNominatimURL() string        { return c.NominatimURL }
func (c *Config) GetGeocodeCountryCodes() string { return c.GeocodeCountryCodes }
func (c *Config) IsGeocodeEnabled() bool         { return c.GeocodeEnabled && c.NominatimURL != "" }

// ReconcileConfig implementation
func (c *Config) GetPhoneRegion() string { return c.PhoneRegion }
func (c *Config) GetCallSource() string  { return c.CallSource }
func (c *Config) GetRules() Rules        { return c.Rules }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	rules := DefaultRules()
	if path := getEnv("RECONCILE_RULES_FILE", ""); path != "" {
		loaded, err := LoadRulesFile(path)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}
	if raw := getEnv("QUALIFIED_TAGS", ""); raw != "" {
		rules.QualifiedTags = splitCSV(raw)
	}
	if raw := getEnv("LATER_QUALIFIED_TAG", ""); raw != "" {
		rules.LaterQualifiedTag = strings.TrimSpace(raw)
	}

	cfg := &Config{
		Env:                       getEnv("APP_ENV", "development"),
		HTTPAddr:                  getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:               getEnv("DATABASE_URL", ""),
		MigrationsDir:             getEnv("MIGRATIONS_DIR", "migrations"),
		JWTAccessSecret:           getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:              corsAllowAll,
		CORSOrigins:               corsOrigins,
		CORSAllowCreds:            strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		RedisURL:                  getEnv("REDIS_URL", ""),
		RedisTLSInsecure:          strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:            getEnv("ASYNQ_QUEUE", "hcp-jobs"),
		AsynqConcurrency:          mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		AsynqMaxRetry:             mustInt(getEnv("ASYNQ_MAX_RETRY", "8")),
		LockTTL:                   mustDuration(getEnv("JOB_LOCK_TTL", "30s")),
		MinIOEndpoint:             getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:            getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:            getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:               strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketWebhookArchive: getEnv("MINIO_BUCKET_WEBHOOK_ARCHIVE", "hcp-webhook-archive"),
		ArchiveRetention:          mustDuration(getEnv("ARCHIVE_RETENTION", "720h")),
		ArchiveCleanupInterval:    mustDuration(getEnv("ARCHIVE_CLEANUP_INTERVAL", "1h")),
		WebhookRatePerSecond:      mustFloat(getEnv("WEBHOOK_RATE_PER_SECOND", "20")),
		WebhookRateBurst:          mustInt(getEnv("WEBHOOK_RATE_BURST", "40")),
		NominatimURL:              getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org/search"),
		GeocodeCountryCodes:       getEnv("GEOCODE_COUNTRY_CODES", "us"),
		GeocodeEnabled:            strings.EqualFold(getEnv("GEOCODE_ENABLED", "false"), "true"),
		PhoneRegion:               getEnv("PHONE_DEFAULT_REGION", "US"),
		CallSource:                getEnv("CALL_SOURCE", "housecall_pro"),
		Rules:                     rules,
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if err := cfg.Rules.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
