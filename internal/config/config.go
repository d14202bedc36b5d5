// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Profile store backends selectable via STORE_DRIVER.
const (
	StoreDriverFirestore = "firestore"
	StoreDriverPostgres  = "postgres"
	StoreDriverSQLite    = "sqlite"
)

// Config holds all configuration for the application.
type Config struct {
	// Server Configuration
	GinMode       string        `mapstructure:"GIN_MODE"`
	ServerHost    string        `mapstructure:"SERVER_HOST"`
	ServerPort    string        `mapstructure:"SERVER_PORT"`
	ServerTimeout time.Duration `mapstructure:"SERVER_TIMEOUT_SECONDS"`

	// Logging Configuration
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// Firebase / Identity Toolkit Configuration
	FirebaseServiceAccountKeyPath string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_KEY_PATH"`
	FirebaseProjectID             string `mapstructure:"FIREBASE_PROJECT_ID"`
	FirebaseWebAPIKey             string `mapstructure:"FIREBASE_WEB_API_KEY"`

	// Profile Store Configuration
	// STORE_DRIVER selects the profile store backend: "firestore",
	// "postgres" or "sqlite".
	StoreDriver         string `mapstructure:"STORE_DRIVER"`
	FirestoreCollection string `mapstructure:"FIRESTORE_COLLECTION"`

	// Database Configuration (postgres/sqlite store backends)
	DBHost            string        `mapstructure:"DB_HOST"`
	DBPort            string        `mapstructure:"DB_PORT"`
	DBUser            string        `mapstructure:"DB_USER"`
	DBPassword        string        `mapstructure:"DB_PASSWORD"`
	DBName            string        `mapstructure:"DB_NAME"`
	DBSSLMode         string        `mapstructure:"DB_SSL_MODE"`
	DBTimezone        string        `mapstructure:"DB_TIMEZONE"`
	DBMaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBMaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBConnMaxLifetime time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`
	SQLitePath        string        `mapstructure:"SQLITE_PATH"`

	// GitHub OAuth Configuration
	GitHubClientID     string `mapstructure:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `mapstructure:"GITHUB_CLIENT_SECRET"`
	GitHubRedirectURI  string `mapstructure:"GITHUB_REDIRECT_URI"`
	GitHubScope        string `mapstructure:"GITHUB_SCOPE"`

	// Onboarding Configuration
	// Minimum number of interests required to pass the onboarding gate.
	MinIntereses int `mapstructure:"MIN_INTERESES"`
	// Upper bound on handle-uniqueness probes during provisioning.
	HandleProbeCap int `mapstructure:"HANDLE_PROBE_CAP"`

	// Cron Jobs
	GuestCleanupSchedule string `mapstructure:"GUEST_CLEANUP_SCHEDULE"`
	GuestMaxAgeDays      int    `mapstructure:"GUEST_MAX_AGE_DAYS"`
}

// Load attempts to load configuration from a .env file (if present) and environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	v := viper.New()

	// Set default values
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_TIMEOUT_SECONDS", 30)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("FIREBASE_PROJECT_ID", "") // Optional
	v.SetDefault("FIREBASE_SERVICE_ACCOUNT_KEY_PATH", "")
	v.SetDefault("FIREBASE_WEB_API_KEY", "")

	v.SetDefault("STORE_DRIVER", "firestore")
	v.SetDefault("FIRESTORE_COLLECTION", "usuarios")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "redsocial_db")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_TIMEZONE", "UTC")
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_MAX_OPEN_CONNS", 100)
	v.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 60)
	v.SetDefault("SQLITE_PATH", "redsocial.db")

	v.SetDefault("GITHUB_CLIENT_ID", "")
	v.SetDefault("GITHUB_CLIENT_SECRET", "")
	v.SetDefault("GITHUB_REDIRECT_URI", "")
	v.SetDefault("GITHUB_SCOPE", "user:email")

	v.SetDefault("MIN_INTERESES", 1)
	v.SetDefault("HANDLE_PROBE_CAP", 1000)

	v.SetDefault("GUEST_CLEANUP_SCHEDULE", "@daily")
	v.SetDefault("GUEST_MAX_AGE_DAYS", 30)

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	// Convert duration fields
	cfg.ServerTimeout = time.Duration(v.GetInt("SERVER_TIMEOUT_SECONDS")) * time.Second
	cfg.DBConnMaxLifetime = time.Duration(v.GetInt("DB_CONN_MAX_LIFETIME_MINUTES")) * time.Minute

	// Basic validation for critical configs
	if strings.TrimSpace(cfg.FirebaseServiceAccountKeyPath) == "" {
		return nil, fmt.Errorf("FATAL: FIREBASE_SERVICE_ACCOUNT_KEY_PATH is not set. This is required for Firebase Admin SDK initialization")
	}
	if _, err := os.Stat(cfg.FirebaseServiceAccountKeyPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("FATAL: Firebase service account key file specified in FIREBASE_SERVICE_ACCOUNT_KEY_PATH (%s) not found", cfg.FirebaseServiceAccountKeyPath)
	}
	if strings.TrimSpace(cfg.FirebaseWebAPIKey) == "" {
		return nil, fmt.Errorf("FATAL: FIREBASE_WEB_API_KEY is not set. This is required for Identity Toolkit credential exchange")
	}
	switch cfg.StoreDriver {
	case StoreDriverFirestore, StoreDriverPostgres, StoreDriverSQLite:
	default:
		return nil, fmt.Errorf("FATAL: unknown STORE_DRIVER %q (expected firestore, postgres or sqlite)", cfg.StoreDriver)
	}
	if cfg.MinIntereses < 1 {
		return nil, fmt.Errorf("FATAL: MIN_INTERESES must be at least 1, got %d", cfg.MinIntereses)
	}

	return &cfg, nil
}
