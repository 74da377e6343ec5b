package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir             string  // Base directory for the price cache database
	Port                int     // HTTP listen port
	LogLevel            string  // debug, info, warn, error
	DevMode             bool    // Enables pretty logging and permissive CORS
	DefaultRiskFreeRate float64 // Used when a request omits risk_free_rate
	CacheRefreshCron    string  // Schedule for the price cache refresh job
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "")
	if dataDir == "" {
		if _, err := os.Stat("./data"); err == nil {
			dataDir = "./data"
		} else {
			dataDir = "../data"
		}
	}

	cfg := &Config{
		DataDir:             dataDir,
		Port:                getEnvAsInt("PORT", 8001),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DevMode:             getEnvAsBool("DEV_MODE", false),
		DefaultRiskFreeRate: getEnvAsFloat("DEFAULT_RISK_FREE_RATE", 0.02),
		CacheRefreshCron:    getEnv("CACHE_REFRESH_CRON", "0 0 6 * * MON-FRI"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.DefaultRiskFreeRate < 0 || c.DefaultRiskFreeRate >= 1 {
		return fmt.Errorf("invalid default risk-free rate: %f", c.DefaultRiskFreeRate)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
