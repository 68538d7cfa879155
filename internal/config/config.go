package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	OpenWeatherAPIKey string

	// GeocoderAPIKey selects the Google-backed reverse geocoder when set;
	// otherwise OpenWeather's reverse geocoding endpoint is used.
	GeocoderAPIKey string

	// HTTPTimeout bounds each individual outbound request.
	HTTPTimeout time.Duration

	// Retry policy for the fetch orchestrator.
	MaxRetries int
	RetryDelay time.Duration

	// RefreshInterval controls how often the last search is refetched.
	RefreshInterval time.Duration

	// Observation cache retention.
	CacheMaxHistory int
	CacheMaxAge     time.Duration

	// DBPath locates the preference database.
	DBPath string

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "10s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	cfg.MaxRetries = getenvInt("MAX_RETRIES", 3)

	delayStr := getenvDefault("RETRY_DELAY", "2s")
	delay, err := time.ParseDuration(delayStr)
	if err != nil {
		return nil, fmt.Errorf("invalid RETRY_DELAY: %w", err)
	}
	cfg.RetryDelay = delay

	intervalStr := getenvDefault("REFRESH_INTERVAL", "30m")
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid REFRESH_INTERVAL: %w", err)
	}
	cfg.RefreshInterval = interval

	cfg.CacheMaxHistory = getenvInt("CACHE_MAX_HISTORY", 50)

	maxAgeStr := getenvDefault("CACHE_MAX_AGE", "24h")
	maxAge, err := time.ParseDuration(maxAgeStr)
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_MAX_AGE: %w", err)
	}
	cfg.CacheMaxAge = maxAge

	cfg.DBPath = getenvDefault("DB_PATH", "weather.db")
	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
