// Package config reads the control plane's environment-variable
// configuration, grounded on core/cmd/helm/main.go's DATABASE_URL /
// SQLite-lite-mode fallback pattern: plain os.Getenv reads with typed
// defaults, no configuration framework.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is every environment-tunable option that changes core behavior
// (spec §6, "Configuration").
type Config struct {
	BindAddr string

	DatabaseURL  string // empty selects SQLite lite mode
	LiteModePath string

	JWTSigningKey string
	JWTTokenTTL   time.Duration

	ObjectStoreBackend string // "s3" (default) or "gcs" — see internal/resources/objectstore
	MinioBucket        string
	MinioRegion        string
	MinioEndpoint      string
	GCSBucket          string
	GCSPrefix          string
	UploadMaxSize      int64

	ResourceUploadTimeoutSeconds int
	ResourceCleanupIntervalHours int
	ResourceCleanupAgeHours      int

	RedisAddr string

	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string // empty disables tracing/metrics export
	OTLPInsecure   bool
}

// Load reads Config from the process environment, applying the documented
// defaults for anything unset.
func Load() Config {
	return Config{
		BindAddr: getenv("BIND_ADDR", ":8080"),

		DatabaseURL:  os.Getenv("DATABASE_URL"),
		LiteModePath: getenv("LITE_MODE_DB_PATH", "ouroboros.db"),

		JWTSigningKey: getenv("JWT_SIGNING_KEY", "insecure-development-key"),
		JWTTokenTTL:   time.Duration(getenvInt("JWT_TOKEN_TTL_SECONDS", 3600)) * time.Second,

		ObjectStoreBackend: getenv("OBJECT_STORE_BACKEND", "s3"),
		MinioBucket:        getenv("MINIO_BUCKET", "ouroboros-resources"),
		MinioRegion:        getenv("MINIO_REGION", "us-east-1"),
		MinioEndpoint:      os.Getenv("MINIO_ENDPOINT"),
		GCSBucket:          os.Getenv("GCS_BUCKET"),
		GCSPrefix:          os.Getenv("GCS_PREFIX"),
		UploadMaxSize:      int64(getenvInt("UPLOAD_MAX_SIZE", 10*1024*1024*1024)),

		ResourceUploadTimeoutSeconds: getenvInt("RESOURCE_UPLOAD_TIMEOUT_SECONDS", 300),
		ResourceCleanupIntervalHours: getenvInt("RESOURCE_CLEANUP_INTERVAL_HOURS", 1),
		ResourceCleanupAgeHours:      getenvInt("RESOURCE_CLEANUP_AGE_HOURS", 24),

		RedisAddr: os.Getenv("REDIS_ADDR"),

		ServiceName:    getenv("OTEL_SERVICE_NAME", "ouroborosd"),
		ServiceVersion: getenv("SERVICE_VERSION", "0.1.0"),
		Environment:    getenv("APP_ENV", "development"),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure:   getenvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
