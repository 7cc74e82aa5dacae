package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// HTTP Configuration
	HTTP HTTPConfig

	// Database Configuration
	Database DatabaseConfig

	// Redis Configuration
	Redis RedisConfig

	// Session Configuration
	Session SessionConfig

	// Mail Configuration
	Mail MailConfig

	// Storage Configuration
	Storage StorageConfig

	// Guard Configuration
	Guard GuardConfig

	// Jobs Configuration
	Jobs JobsConfig

	// Logging Configuration
	Logging LoggingConfig
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port        string
	PublicURL   string   // Base URL used in outbound links
	CORSOrigins []string // Allowed browser origins for the API
	StaticDir   string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string // sqlite path or postgres:// URL
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Address string // Redis address (host:port), empty = send mail inline
}

// Enabled reports whether a Redis-backed task queue is configured
func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

// SessionConfig holds session token configuration
type SessionConfig struct {
	Secret       string // empty = generated once and persisted in the database
	MaxAge       time.Duration
	CookieSecure bool
}

// MailConfig holds outbound email configuration
type MailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	From         string
}

// Enabled reports whether an SMTP relay is configured
func (m MailConfig) Enabled() bool {
	return m.SMTPHost != ""
}

// StorageConfig holds upload storage configuration
type StorageConfig struct {
	UploadDir     string // empty = uploads resolve to a placeholder URL
	UploadBaseURL string
}

// GuardConfig holds route guard configuration
type GuardConfig struct {
	RouteTablePath string // optional YAML file replacing the built-in table
}

// JobsConfig holds job lifecycle configuration
type JobsConfig struct {
	ExpirySchedule string // Cron expression, e.g. "0 3 * * *"
	MaxAge         time.Duration
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	smtpPort, err := intEnv("SMTP_PORT", 587)
	if err != nil {
		return nil, err
	}

	maxAgeDays, err := intEnv("JOB_MAX_AGE_DAYS", 60)
	if err != nil {
		return nil, err
	}

	sessionMaxAge := 30 * 24 * time.Hour
	if raw := os.Getenv("SESSION_MAX_AGE"); raw != "" {
		sessionMaxAge, err = time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_MAX_AGE %q: %w", raw, err)
		}
	}

	cookieSecure := false
	if raw := os.Getenv("COOKIE_SECURE"); raw != "" {
		cookieSecure, err = strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid COOKIE_SECURE %q: %w", raw, err)
		}
	}

	publicURL := strings.TrimSuffix(stringEnv("PUBLIC_URL", "http://localhost:8080"), "/")

	return &Config{
		HTTP: HTTPConfig{
			Port:        stringEnv("PORT", "8080"),
			PublicURL:   publicURL,
			CORSOrigins: splitList(stringEnv("CORS_ORIGINS", "http://localhost:3000")),
			StaticDir:   stringEnv("STATIC_DIR", "public"),
		},
		Database: DatabaseConfig{
			URL: stringEnv("DATABASE_URL", "vakspot.sqlite"),
		},
		Redis: RedisConfig{
			Address: os.Getenv("REDIS_ADDRESS"),
		},
		Session: SessionConfig{
			Secret:       os.Getenv("SESSION_SECRET"),
			MaxAge:       sessionMaxAge,
			CookieSecure: cookieSecure,
		},
		Mail: MailConfig{
			SMTPHost:     os.Getenv("SMTP_HOST"),
			SMTPPort:     smtpPort,
			SMTPUsername: os.Getenv("SMTP_USERNAME"),
			SMTPPassword: os.Getenv("SMTP_PASSWORD"),
			From:         stringEnv("MAIL_FROM", "VakSpot <no-reply@vakspot.nl>"),
		},
		Storage: StorageConfig{
			UploadDir:     os.Getenv("UPLOAD_DIR"),
			UploadBaseURL: strings.TrimSuffix(stringEnv("UPLOAD_BASE_URL", publicURL+"/uploads"), "/"),
		},
		Guard: GuardConfig{
			RouteTablePath: os.Getenv("ROUTE_TABLE_PATH"),
		},
		Jobs: JobsConfig{
			ExpirySchedule: stringEnv("JOB_EXPIRY_SCHEDULE", "0 3 * * *"),
			MaxAge:         time.Duration(maxAgeDays) * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  stringEnv("LOG_LEVEL", "info"),
			Format: stringEnv("LOG_FORMAT", "json"),
		},
	}, nil
}

func stringEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
