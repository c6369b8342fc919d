package config

import (
	"fmt"
	"os"
	"strconv"

	// Load environment variables from .env files when present.
	_ "github.com/joho/godotenv/autoload"
)

// Config holds all application configuration
type Config struct {
	Import        ImportConfig
	Store         StoreConfig
	Database      DatabaseConfig
	Watch         WatchConfig
	Observability ObservabilityConfig
}

type ImportConfig struct {
	DateFormat       string
	CurrencyFallback string
}

type StoreConfig struct {
	// Backend selects where imports are persisted: "file" or "postgres".
	Backend string
	// Path is the state file used by the file backend.
	Path string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

type WatchConfig struct {
	// Dir is scanned for new export files.
	Dir string
	// Schedule is a standard 5-field cron expression.
	Schedule string
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Import: ImportConfig{
			DateFormat:       getEnv("MONETA_DATE_FORMAT", "yyyy-MM-dd"),
			CurrencyFallback: getEnv("MONETA_CURRENCY", "USD"),
		},
		Store: StoreConfig{
			Backend: getEnv("MONETA_STORE", "file"),
			Path:    getEnv("MONETA_STORE_PATH", defaultStorePath()),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "moneta"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		Watch: WatchConfig{
			Dir:      getEnv("MONETA_WATCH_DIR", ""),
			Schedule: getEnv("MONETA_WATCH_SCHEDULE", "*/5 * * * *"),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", false),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
	}

	if cfg.Store.Backend != "file" && cfg.Store.Backend != "postgres" {
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "moneta.json"
	}
	return home + "/.moneta/state.json"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
