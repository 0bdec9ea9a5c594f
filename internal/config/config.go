// Package config loads binary configuration from RECAP_* environment
// variables. CLI flags override whatever is loaded here.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

const (
	DefaultBaseURL  = "http://localhost:8787"
	DefaultMode     = "standard"
	DefaultLanguage = "en"
)

type Config struct {
	BaseURL       string
	Token         string
	Mode          string
	Language      string
	Model         string
	WebEnrichment bool
	MaxRetries    int
	BaseDelay     time.Duration
	LogLevel      slog.Level
	OTELEndpoint  string
	OTELInsecure  bool
}

func FromEnv() Config {
	return Config{
		BaseURL:       envString("RECAP_BASE_URL", DefaultBaseURL),
		Token:         os.Getenv("RECAP_TOKEN"),
		Mode:          envString("RECAP_MODE", DefaultMode),
		Language:      envString("RECAP_LANGUAGE", DefaultLanguage),
		Model:         os.Getenv("RECAP_MODEL"),
		WebEnrichment: envBool("RECAP_WEB_ENRICHMENT"),
		MaxRetries:    envInt("RECAP_MAX_RETRIES", 0),
		BaseDelay:     time.Duration(envInt("RECAP_BASE_DELAY_MS", 0)) * time.Millisecond,
		LogLevel:      parseLogLevel(os.Getenv("RECAP_LOG_LEVEL")),
		OTELEndpoint:  os.Getenv("RECAP_OTEL_ENDPOINT"),
		OTELInsecure:  envBool("RECAP_OTEL_INSECURE"),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	v, _ := strconv.ParseBool(os.Getenv(key))
	return v
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
