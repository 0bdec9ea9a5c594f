package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"RECAP_BASE_URL", "RECAP_TOKEN", "RECAP_MODE", "RECAP_LANGUAGE",
		"RECAP_MODEL", "RECAP_WEB_ENRICHMENT", "RECAP_MAX_RETRIES",
		"RECAP_BASE_DELAY_MS", "RECAP_LOG_LEVEL", "RECAP_OTEL_ENDPOINT",
		"RECAP_OTEL_INSECURE",
	} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("expected default base URL, got %q", cfg.BaseURL)
	}
	if cfg.Mode != DefaultMode || cfg.Language != DefaultLanguage {
		t.Errorf("expected default mode/language, got %q/%q", cfg.Mode, cfg.Language)
	}
	if cfg.WebEnrichment || cfg.MaxRetries != 0 || cfg.BaseDelay != 0 {
		t.Errorf("unexpected non-zero defaults: %+v", cfg)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("expected info log level, got %v", cfg.LogLevel)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("RECAP_BASE_URL", "https://api.example.com")
	t.Setenv("RECAP_TOKEN", "tok")
	t.Setenv("RECAP_MODE", "expert")
	t.Setenv("RECAP_LANGUAGE", "de")
	t.Setenv("RECAP_MODEL", "large")
	t.Setenv("RECAP_WEB_ENRICHMENT", "true")
	t.Setenv("RECAP_MAX_RETRIES", "5")
	t.Setenv("RECAP_BASE_DELAY_MS", "250")
	t.Setenv("RECAP_LOG_LEVEL", "debug")
	t.Setenv("RECAP_OTEL_ENDPOINT", "localhost:4317")
	t.Setenv("RECAP_OTEL_INSECURE", "1")

	cfg := FromEnv()
	if cfg.BaseURL != "https://api.example.com" || cfg.Token != "tok" {
		t.Errorf("unexpected connection config: %+v", cfg)
	}
	if cfg.Mode != "expert" || cfg.Language != "de" || cfg.Model != "large" || !cfg.WebEnrichment {
		t.Errorf("unexpected analysis options: %+v", cfg)
	}
	if cfg.MaxRetries != 5 || cfg.BaseDelay != 250*time.Millisecond {
		t.Errorf("unexpected retry config: %+v", cfg)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("expected debug level, got %v", cfg.LogLevel)
	}
	if cfg.OTELEndpoint != "localhost:4317" || !cfg.OTELInsecure {
		t.Errorf("unexpected telemetry config: %+v", cfg)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFromEnvBadNumbers(t *testing.T) {
	t.Setenv("RECAP_MAX_RETRIES", "many")
	t.Setenv("RECAP_BASE_DELAY_MS", "1.5")

	cfg := FromEnv()
	if cfg.MaxRetries != 0 || cfg.BaseDelay != 0 {
		t.Errorf("expected unparseable numbers to fall back to zero: %+v", cfg)
	}
}
