package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName          string
	AppVersion       string
	Environment      string
	HTTPAddr         string
	AuthCookieSecure bool

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Storage   StorageConfig
	Redis     RedisConfig
	Bootstrap BootstrapConfig
	Sweep     SweepConfig
}

type StorageConfig struct {
	Driver        string
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	PublicBaseURL string
	LocalRoot     string
}

// Enabled reports whether an object store was configured at all.
func (c StorageConfig) Enabled() bool {
	switch c.Driver {
	case StorageDriverS3:
		return c.Endpoint != "" && c.Bucket != ""
	case StorageDriverLocal:
		return c.LocalRoot != ""
	default:
		return false
	}
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type BootstrapConfig struct {
	EnsureAdmin   bool
	AdminEmail    string
	AdminPassword string
}

type SweepConfig struct {
	Enabled     bool
	Cron        string
	GracePeriod time.Duration
}

const (
	StorageDriverS3    = "s3"
	StorageDriverLocal = "local"

	DefaultBucket    = "product-images"
	DefaultSweepCron = "@every 6h"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	authCookieSecure := environment == "production"
	if !authCookieSecure {
		authCookieSecure = getenvBool("AUTH_COOKIE_SECURE", false)
	}

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "storefront"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       environment,
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		AuthCookieSecure:  authCookieSecure,
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "storefront"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 20)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),
		Storage: StorageConfig{
			Driver:        normalizeStorageDriver(getenv("STORAGE_DRIVER", StorageDriverLocal)),
			Endpoint:      strings.TrimSpace(getenv("STORAGE_ENDPOINT", "")),
			Region:        strings.TrimSpace(getenv("STORAGE_REGION", "")),
			Bucket:        strings.TrimSpace(getenv("STORAGE_BUCKET", DefaultBucket)),
			AccessKey:     strings.TrimSpace(getenv("STORAGE_ACCESS_KEY", "")),
			SecretKey:     strings.TrimSpace(getenv("STORAGE_SECRET_KEY", "")),
			UseSSL:        getenvBool("STORAGE_USE_SSL", true),
			PublicBaseURL: strings.TrimRight(strings.TrimSpace(getenv("STORAGE_PUBLIC_BASE_URL", "")), "/"),
			LocalRoot:     strings.TrimSpace(getenv("STORAGE_LOCAL_ROOT", "./data/media")),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       int(getenvInt64("REDIS_DB", 0)),
		},
		Bootstrap: BootstrapConfig{
			EnsureAdmin:   getenvBool("BOOTSTRAP_ENSURE_ADMIN", true),
			AdminEmail:    strings.ToLower(strings.TrimSpace(getenv("BOOTSTRAP_ADMIN_EMAIL", "admin@chrisfit.local"))),
			AdminPassword: getenv("BOOTSTRAP_ADMIN_PASSWORD", "admin"),
		},
		Sweep: SweepConfig{
			Enabled:     getenvBool("ORPHAN_SWEEP_ENABLED", true),
			Cron:        strings.TrimSpace(getenv("ORPHAN_SWEEP_CRON", DefaultSweepCron)),
			GracePeriod: getenvDuration("ORPHAN_SWEEP_GRACE", 24*time.Hour),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func normalizeStorageDriver(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case StorageDriverS3, "minio":
		return StorageDriverS3
	case StorageDriverLocal, "fs", "":
		return StorageDriverLocal
	default:
		return value
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
