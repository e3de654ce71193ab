package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	GeminiAPIKey string

	LogLevel string
	Debug    bool

	PreferIPv4 bool

	GeminiBaseURL    string
	GeminiAPIVersion string
	RequestTimeout   time.Duration
	HTTPTimeout      time.Duration

	BatchSize    int
	BatchStagger time.Duration

	MaxConcurrent int

	MotionCatalog string
}

// Load reads configuration from the environment. GEMINI_API_KEY is
// deliberately not validated here: credential presence is checked right
// before the first remote call so the caller can surface a distinct
// "no credential" outcome instead of a config failure.
func Load() (Config, error) {
	cfg := Config{
		GeminiAPIKey:     strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		LogLevel:         strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", "info"))),
		Debug:            getEnvBool("DEBUG", false),
		PreferIPv4:       getEnvBool("PREFER_IPV4", true),
		GeminiBaseURL:    strings.TrimSpace(getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")),
		GeminiAPIVersion: strings.TrimSpace(getEnv("GEMINI_API_VERSION", "v1beta")),
		RequestTimeout:   time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 180)) * time.Second,
		HTTPTimeout:      time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 180)) * time.Second,
		BatchSize:        getEnvInt("BATCH_SIZE", 3),
		BatchStagger:     time.Duration(getEnvInt("BATCH_STAGGER_MS", 100)) * time.Millisecond,
		MaxConcurrent:    getEnvInt("MAX_CONCURRENT", 2),
		MotionCatalog:    strings.TrimSpace(os.Getenv("MOTION_CATALOG")),
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 180 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 180 * time.Second
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.BatchStagger < 0 {
		cfg.BatchStagger = 0
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
