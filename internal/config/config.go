// Package config handles loading application configuration from environment variables.
// All settings have sensible defaults for local development.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends accepted by STORE_BACKEND.
const (
	StoreBackendFile   = "file"
	StoreBackendSQLite = "sqlite"
)

// Config holds all application settings loaded from environment variables.
type Config struct {
	Port                string
	StoreBackend        string
	VotesPath           string
	DatabasePath        string
	UsersPath           string
	CatalogPath         string
	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyPlaylistID   string
	ResetPIN            string
	JWTSecret           string
	JWTSecretGenerated  bool
	AdminTokenDuration  time.Duration
	RateLimitPerMinute  int
	RequireRosterVoter  bool
	StatsTopN           int
	SaveTimeout         time.Duration
	CORSAllowedOrigins  []string
	TrustedProxies      []string
	SentryDSN           string
	SentryEnvironment   string
}

// Load reads configuration from environment variables, using defaults where not set.
func Load() *Config {
	origins := getStringSliceEnv("CORS_ALLOWED_ORIGINS")
	if origins == nil {
		origins = []string{"http://localhost:5173", "http://localhost:8000"}
	}

	cfg := &Config{
		Port:                getEnv("PORT", "8000"),
		StoreBackend:        strings.ToLower(getEnv("STORE_BACKEND", StoreBackendFile)),
		VotesPath:           getEnv("VOTES_PATH", "./votes.json"),
		DatabasePath:        getEnv("DATABASE_PATH", "./trackvote.db"),
		UsersPath:           getEnv("USERS_PATH", "./users.json"),
		CatalogPath:         getEnv("CATALOG_PATH", ""),
		SpotifyClientID:     getEnv("SPOTIFY_CLIENT_ID", ""),
		SpotifyClientSecret: getEnv("SPOTIFY_CLIENT_SECRET", ""),
		SpotifyPlaylistID:   getEnv("SPOTIFY_PLAYLIST_ID", ""),
		ResetPIN:            getEnv("RESET_PIN", ""),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		AdminTokenDuration:  getDurationEnv("ADMIN_TOKEN_DURATION", 15*time.Minute),
		RateLimitPerMinute:  getIntEnv("RATE_LIMIT_PER_MINUTE", 60),
		RequireRosterVoter:  getBoolEnv("REQUIRE_ROSTER_VOTER", false),
		StatsTopN:           getIntEnv("STATS_TOP_N", 10),
		SaveTimeout:         getDurationEnv("SAVE_TIMEOUT", 5*time.Second),
		CORSAllowedOrigins:  origins,
		TrustedProxies:      getStringSliceEnv("TRUSTED_PROXIES"),
		SentryDSN:           getEnv("SENTRY_DSN", ""),
		SentryEnvironment:   getEnv("SENTRY_ENVIRONMENT", "production"),
	}

	// Without JWT_SECRET admin tokens are signed with a per-process key and
	// stop validating after a restart.
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = randomSecret()
		cfg.JWTSecretGenerated = true
	}

	return cfg
}

func randomSecret() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func getStringSliceEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var result []string
	for _, s := range strings.Split(value, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			result = append(result, s)
		}
	}
	return result
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
