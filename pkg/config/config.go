// Package config loads the immutable process configuration. Environment
// variables win; an optional YAML file (CONFIG_FILE) supplies overrides for
// anything not set in the environment. The resulting struct is constructed
// once in main and passed explicitly to constructors.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// HTTP
	Port string

	// Clova text completion
	ClovaAPIKey  string
	ClovaAPIURL  string
	AITimeout    time.Duration
	AIMaxRetries int
	AIMaxTokens  int

	// Google Places
	PlacesAPIKey   string
	PlacesAPIMode  string // "live" or "mock"
	PlacesMockFile string // fixture path used in mock mode

	// Database
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBReadTimeout     time.Duration
	DBWriteTimeout    time.Duration

	// Pipeline knobs
	TopPlacesToReturn  int
	TopReviewsToKeep   int
	ScorerConcurrency  int
	SearchRadiusMeters float64
	MaxSearchResults   int

	// Logging
	LogLevel  string
	LogFormat string // "json" or "text"
}

// fileConfig mirrors Config for the YAML overlay. Only keys people actually
// put in files; secrets stay in the environment.
type fileConfig struct {
	Port               string  `yaml:"port"`
	ClovaAPIURL        string  `yaml:"clova_api_url"`
	PlacesAPIMode      string  `yaml:"places_api_mode"`
	PlacesMockFile     string  `yaml:"places_mock_file"`
	TopPlacesToReturn  int     `yaml:"top_places_to_return"`
	TopReviewsToKeep   int     `yaml:"top_reviews_to_keep"`
	ScorerConcurrency  int     `yaml:"scorer_concurrency"`
	SearchRadiusMeters float64 `yaml:"search_radius_meters"`
	MaxSearchResults   int     `yaml:"max_search_results"`
	LogLevel           string  `yaml:"log_level"`
	LogFormat          string  `yaml:"log_format"`
}

func Load() *Config {
	aiTimeout, _ := time.ParseDuration(getEnv("AI_TIMEOUT", "30s"))
	aiRetries, _ := strconv.Atoi(getEnv("AI_MAX_RETRIES", "2"))
	aiMaxTokens, _ := strconv.Atoi(getEnv("AI_MAX_TOKENS", "2000"))

	dbMaxOpen, _ := strconv.Atoi(getEnv("DB_MAX_OPEN_CONNS", "25"))
	dbMaxIdle, _ := strconv.Atoi(getEnv("DB_MAX_IDLE_CONNS", "10"))
	dbLifetime, _ := time.ParseDuration(getEnv("DB_CONN_MAX_LIFETIME", "10m"))
	dbReadTO, _ := time.ParseDuration(getEnv("DB_READ_TIMEOUT", "8s"))
	dbWriteTO, _ := time.ParseDuration(getEnv("DB_WRITE_TIMEOUT", "6s"))

	topPlaces, _ := strconv.Atoi(getEnv("TOP_PLACES_TO_RETURN", "2"))
	topReviews, _ := strconv.Atoi(getEnv("TOP_REVIEWS_TO_KEEP", "3"))
	concurrency, _ := strconv.Atoi(getEnv("SCORER_CONCURRENCY", "10"))
	radius, _ := strconv.ParseFloat(getEnv("SEARCH_RADIUS_METERS", "500"), 64)
	maxResults, _ := strconv.Atoi(getEnv("MAX_SEARCH_RESULTS", "20"))

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		ClovaAPIKey:        getEnv("CLOVA_API_KEY", ""),
		ClovaAPIURL:        getEnv("CLOVA_API_URL", ""),
		AITimeout:          aiTimeout,
		AIMaxRetries:       aiRetries,
		AIMaxTokens:        aiMaxTokens,
		PlacesAPIKey:       getEnv("GOOGLE_PLACES_API_KEY", ""),
		PlacesAPIMode:      strings.ToLower(getEnv("GOOGLE_PLACES_API_MODE", "live")),
		PlacesMockFile:     getEnv("PLACES_MOCK_FILE", "./mock/place_api_response.json"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		DBMaxOpenConns:     dbMaxOpen,
		DBMaxIdleConns:     dbMaxIdle,
		DBConnMaxLifetime:  dbLifetime,
		DBReadTimeout:      dbReadTO,
		DBWriteTimeout:     dbWriteTO,
		TopPlacesToReturn:  topPlaces,
		TopReviewsToKeep:   topReviews,
		ScorerConcurrency:  concurrency,
		SearchRadiusMeters: radius,
		MaxSearchResults:   maxResults,
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			log.Printf("[Warning] config file %s not applied: %v", path, err)
		}
	}

	return cfg
}

// applyFile overlays YAML values onto cfg for keys the environment left at
// their defaults or empty. Env always wins over the file.
func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return err
	}

	overlayString(&cfg.Port, fc.Port, "PORT")
	overlayString(&cfg.ClovaAPIURL, fc.ClovaAPIURL, "CLOVA_API_URL")
	overlayString(&cfg.PlacesAPIMode, fc.PlacesAPIMode, "GOOGLE_PLACES_API_MODE")
	overlayString(&cfg.PlacesMockFile, fc.PlacesMockFile, "PLACES_MOCK_FILE")
	overlayString(&cfg.LogLevel, fc.LogLevel, "LOG_LEVEL")
	overlayString(&cfg.LogFormat, fc.LogFormat, "LOG_FORMAT")
	overlayInt(&cfg.TopPlacesToReturn, fc.TopPlacesToReturn, "TOP_PLACES_TO_RETURN")
	overlayInt(&cfg.TopReviewsToKeep, fc.TopReviewsToKeep, "TOP_REVIEWS_TO_KEEP")
	overlayInt(&cfg.ScorerConcurrency, fc.ScorerConcurrency, "SCORER_CONCURRENCY")
	overlayInt(&cfg.MaxSearchResults, fc.MaxSearchResults, "MAX_SEARCH_RESULTS")
	if fc.SearchRadiusMeters > 0 && os.Getenv("SEARCH_RADIUS_METERS") == "" {
		cfg.SearchRadiusMeters = fc.SearchRadiusMeters
	}
	return nil
}

func overlayString(dst *string, v, envKey string) {
	if v != "" && os.Getenv(envKey) == "" {
		*dst = v
	}
}

func overlayInt(dst *int, v int, envKey string) {
	if v > 0 && os.Getenv(envKey) == "" {
		*dst = v
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
