package config

import (
	"os"
	"strconv"
	"time"
)

// Storage backends selectable via STORAGE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Environment
	Env string // "development", "production", etc.

	// Server
	ServerAddr string
	BaseURL    string

	// TLS
	TLSEnabled  bool
	TLSCertFile string
	TLSKeyFile  string
	TLSCAFile   string // enables mTLS when set

	// CORS
	CORSOrigins string // Comma-separated allowed origins, e.g. "chrome-extension://abc,https://example.com"

	// Rate limiting
	RateLimitMax int // Requests per minute per IP

	// API token for write routes, empty disables the check
	APIToken string

	// Storage
	StorageBackend string // memory, redis, postgres
	DatabaseURL    string
	RedisURL       string

	// Resolution
	HeuristicsFile string        // YAML file with selector lists and marker words
	DebounceDelay  time.Duration // env: DEBOUNCE_MS, default 300
	ProfileBaseURL string        // env: PROFILE_BASE_URL, default "https://www.kununu.com"

	// Page fetching
	FetchTimeout    time.Duration // env: FETCH_TIMEOUT_SECONDS, default 10
	FetchMaxBytes   int64         // env: FETCH_MAX_BYTES, default 4MB
	AllowPrivateIPs bool          // env: ALLOW_PRIVATE_IPS, only for local development

	// Page refresh job
	RefreshInterval time.Duration // env: REFRESH_INTERVAL_SECONDS, 0 disables
	MaxPages        int           // env: MAX_PAGES, default 500
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Env:             getEnv("ENV", "development"),
		ServerAddr:      getEnv("SERVER_ADDR", ":3000"),
		BaseURL:         getEnv("BASE_URL", "http://localhost:3000"),
		TLSEnabled:      getEnv("TLS_ENABLED", "") == "true",
		TLSCertFile:     getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:      getEnv("TLS_KEY_FILE", ""),
		TLSCAFile:       getEnv("TLS_CA_FILE", ""),
		CORSOrigins:     getEnv("CORS_ORIGINS", ""),
		RateLimitMax:    getEnvInt("RATE_LIMIT_MAX", 100),
		APIToken:        getEnv("API_TOKEN", ""),
		StorageBackend:  getEnv("STORAGE_BACKEND", BackendMemory),
		DatabaseURL:     getEnv("DATABASE_URL", "postgres://localhost:5432/companylens?sslmode=disable"),
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379/0"),
		HeuristicsFile:  getEnv("HEURISTICS_FILE", "heuristics.yaml"),
		DebounceDelay:   time.Duration(getEnvInt("DEBOUNCE_MS", 300)) * time.Millisecond,
		ProfileBaseURL:  getEnv("PROFILE_BASE_URL", "https://www.kununu.com"),
		FetchTimeout:    time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", 10)) * time.Second,
		FetchMaxBytes:   int64(getEnvInt("FETCH_MAX_BYTES", 4*1024*1024)),
		AllowPrivateIPs: getEnv("ALLOW_PRIVATE_IPS", "") != "",
		RefreshInterval: time.Duration(getEnvInt("REFRESH_INTERVAL_SECONDS", 0)) * time.Second,
		MaxPages:        getEnvInt("MAX_PAGES", 500),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

// IsDev returns true if the environment is set to development.
func (c *Config) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}
