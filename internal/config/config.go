package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Development bool
	// API configuration
	APIPort int
	// Postgres configuration
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string

	// Scraper configuration
	MarketplaceHosts []string
	ScrapeTimeoutSec int

	// Currency configuration
	RateAPIURL     string
	RateCacheTTL   int // seconds
	RateTimeoutSec int

	// Translation configuration
	TranslateAPIURL string
	TranslateAPIKey string
	TranslateSec    int

	// SMTP configuration
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPSender   string

	// Scheduler configuration
	SchedulerEnabled bool
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Development:      getEnvAsBool("DEVELOPMENT", false),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnvAsInt("POSTGRES_PORT", 5432),
		PostgresDB:       getEnv("POSTGRES_DB", "zenwatch"),

		MarketplaceHosts: getEnvAsList("MARKETPLACE_HOSTS",
			"zenmarket.jp,auctions.yahoo.co.jp,page.auctions.yahoo.co.jp"),
		ScrapeTimeoutSec: getEnvAsInt("SCRAPE_TIMEOUT_SEC", 15),

		RateAPIURL:     getEnv("RATE_API_URL", "https://open.er-api.com/v6/latest/JPY"),
		RateCacheTTL:   getEnvAsInt("RATE_CACHE_TTL_SEC", 600),
		RateTimeoutSec: getEnvAsInt("RATE_TIMEOUT_SEC", 10),

		TranslateAPIURL: getEnv("TRANSLATE_API_URL", "https://libretranslate.com/translate"),
		TranslateAPIKey: getEnv("TRANSLATE_API_KEY", ""),
		TranslateSec:    getEnvAsInt("TRANSLATE_TIMEOUT_SEC", 10),

		SMTPHost:     getEnv("SMTP_HOST", "smtp.example.com"),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPSender:   getEnv("SMTP_SENDER", ""),

		APIPort: getEnvAsInt("API_PORT", 8090),

		SchedulerEnabled: getEnvAsBool("SCHEDULER_ENABLED", true),
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are properly set
func (c *Config) Validate() error {
	if len(c.MarketplaceHosts) == 0 {
		return fmt.Errorf("MARKETPLACE_HOSTS is required")
	}

	if c.RateAPIURL == "" {
		return fmt.Errorf("RATE_API_URL is required")
	}

	if c.PostgresDB == "" {
		return fmt.Errorf("POSTGRES_DB is required")
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}

	if c.ScrapeTimeoutSec < 1 {
		return fmt.Errorf("SCRAPE_TIMEOUT_SEC must be at least 1")
	}

	return nil
}

// Helper functions to read environment variables
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(name string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsList(name string, defaultValue string) []string {
	valueStr := getEnv(name, defaultValue)
	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
