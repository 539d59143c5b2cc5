// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/fwctl.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Domain constants
// --------------------------------------------------------------------------

const (
	// Currency is fixed for this deployment — all fares are quoted in CAD.
	Currency = "CAD"

	// DefaultAirline is the carrier the Duffel search is filtered to.
	DefaultAirline = "Air Canada"
)

// --------------------------------------------------------------------------
// Table names — single source of truth, matches schema.sql
// --------------------------------------------------------------------------

const (
	DestinationsTable = "destinations"
	PricesTable       = "prices"
	AlertsTable       = "alerts"
)

// --------------------------------------------------------------------------
// Config struct — populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting (inbound API)
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Duffel flight search
	DuffelAPIKey  string
	DuffelBaseURL string
	DuffelRPM     int // outbound requests per minute
	Airline       string

	// Twilio SMS
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFromNumber  string
	TwilioAlertNumber string

	// Price checking
	CheckTimes []string      // local wall-clock trigger times, "HH:MM"
	CheckDelay time.Duration // pause between destinations within a sweep

	// Cache
	CacheEnabled bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}

	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 5000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		DuffelAPIKey:  envOr("DUFFEL_API_KEY", ""),
		DuffelBaseURL: envOr("DUFFEL_BASE_URL", "https://api.duffel.com"),
		DuffelRPM:     envInt("DUFFEL_REQUESTS_PER_MINUTE", 30),
		Airline:       envOr("AIRLINE", DefaultAirline),

		TwilioAccountSID:  envOr("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   envOr("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:  envOr("TWILIO_PHONE_NUMBER", ""),
		TwilioAlertNumber: envOr("ALERT_PHONE_NUMBER", ""),

		CheckTimes: envList("CHECK_TIMES", []string{"06:00", "18:00"}),
		CheckDelay: time.Duration(envInt("CHECK_DELAY_SECONDS", 2)) * time.Second,

		CacheEnabled: envBool("CACHE_ENABLED", true),
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
