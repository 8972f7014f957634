package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

type Config struct {
	Addr                  string
	Environment           string
	DatabaseURL           string
	DBUser                string
	DBPassword            string
	DBHost                string
	DBName                string
	DBParams              string
	DBSSLMode             string
	SQLitePath            string
	DBConnectTimeout      time.Duration
	DBMaxConnLifetime     time.Duration
	DBKeepAliveInterval   time.Duration
	AuditRetention        time.Duration
	JWTSecret             string
	AdminSessionTTL       time.Duration
	SeedEmployees         bool
	EnforceEmployeeMaster bool
	ImportBatchSize       int
	MaxBodyBytes          int64
	MaxUploadBytes        int64
	LoginRateLimit        int
	TrustProxy            bool
	LogLevel              string
	LogFormat             string
	MetricsEnabled        bool
}

// Load reads the process environment, after merging any .env file found in
// the working directory. Variables already set in the environment win.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		Addr:                  getEnv("APP_ADDR", ":8080"),
		Environment:           getEnv("APP_ENV", "development"),
		DatabaseURL:           strings.TrimSpace(getEnv("DATABASE_URL", "")),
		DBUser:                strings.TrimSpace(getEnv("DB_USER", "")),
		DBPassword:            strings.TrimSpace(getEnv("DB_PASSWORD", "")),
		DBHost:                strings.TrimSpace(getEnv("DB_HOST", "")),
		DBName:                strings.TrimSpace(getEnv("DB_NAME", "")),
		DBParams:              strings.TrimSpace(getEnv("DB_PARAMS", "")),
		DBSSLMode:             getEnv("DB_SSLMODE", "require"),
		SQLitePath:            getEnv("SQLITE_PATH", "data/kpi_data.db"),
		DBConnectTimeout:      getEnvDuration("DB_CONNECT_TIMEOUT", 10*time.Second),
		DBMaxConnLifetime:     getEnvDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
		DBKeepAliveInterval:   getEnvDuration("DB_KEEPALIVE_INTERVAL", time.Minute),
		AuditRetention:        getEnvDuration("AUDIT_RETENTION", 0),
		JWTSecret:             getEnv("JWT_SECRET", ""),
		AdminSessionTTL:       getEnvDuration("ADMIN_SESSION_TTL", 8*time.Hour),
		SeedEmployees:         getEnvBool("SEED_EMPLOYEES", true),
		EnforceEmployeeMaster: getEnvBool("ENFORCE_EMPLOYEE_MASTER", true),
		ImportBatchSize:       getEnvInt("IMPORT_BATCH_SIZE", 200),
		MaxBodyBytes:          int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),
		MaxUploadBytes:        int64(getEnvInt("MAX_UPLOAD_BYTES", 32<<20)),
		LoginRateLimit:        getEnvInt("LOGIN_RATE_LIMIT_PER_MINUTE", 10),
		TrustProxy:            getEnvBool("TRUST_PROXY", false),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "json"),
		MetricsEnabled:        getEnvBool("METRICS_ENABLED", true),
	}
}

// Backend reports which store the configuration resolves to.
func (c Config) Backend() string {
	if c.PostgresURL() != "" {
		return BackendPostgres
	}
	return BackendSQLite
}

// PostgresURL resolves the Postgres DSN from DATABASE_URL or the DB_* parts.
// An empty result means the SQLite fallback is in effect.
func (c Config) PostgresURL() string {
	raw := ""
	if c.DBUser != "" && c.DBPassword != "" && c.DBHost != "" && c.DBName != "" {
		u := url.URL{
			Scheme:   "postgresql",
			User:     url.UserPassword(c.DBUser, c.DBPassword),
			Host:     c.DBHost,
			Path:     "/" + c.DBName,
			RawQuery: c.DBParams,
		}
		raw = u.String()
	} else if strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://") {
		raw = c.DatabaseURL
	}
	if raw == "" {
		return ""
	}
	if c.DBSSLMode != "" && !strings.Contains(raw, "sslmode=") {
		joiner := "?"
		if strings.Contains(raw, "?") {
			joiner = "&"
		}
		raw += joiner + "sslmode=" + c.DBSSLMode
	}
	return raw
}

// SQLiteFile returns the SQLite database path. A DATABASE_URL of the form
// sqlite:///path overrides SQLITE_PATH.
func (c Config) SQLiteFile() string {
	if rest, ok := strings.CutPrefix(c.DatabaseURL, "sqlite://"); ok && rest != "" {
		return strings.TrimPrefix(rest, "/")
	}
	return c.SQLitePath
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) Validate() error {
	if c.DatabaseURL != "" && c.PostgresURL() == "" && !strings.HasPrefix(c.DatabaseURL, "sqlite://") {
		return fmt.Errorf("DATABASE_URL must use the postgres:// or sqlite:// scheme")
	}
	if c.Backend() == BackendSQLite && strings.TrimSpace(c.SQLiteFile()) == "" {
		return fmt.Errorf("SQLITE_PATH is required when no Postgres database is configured")
	}
	if c.Environment == "production" && strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
	}
	if c.ImportBatchSize <= 0 {
		return fmt.Errorf("IMPORT_BATCH_SIZE must be positive")
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.MaxUploadBytes < c.MaxBodyBytes {
		return fmt.Errorf("MAX_UPLOAD_BYTES must not be below MAX_BODY_BYTES")
	}
	if c.LoginRateLimit <= 0 {
		return fmt.Errorf("LOGIN_RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.AuditRetention < 0 {
		return fmt.Errorf("AUDIT_RETENTION must not be negative")
	}
	if c.AdminSessionTTL <= 0 {
		return fmt.Errorf("ADMIN_SESSION_TTL must be positive")
	}
	return nil
}
