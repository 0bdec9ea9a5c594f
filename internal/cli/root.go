// Package cli wires the recap commands: run (line mode), watch (TUI),
// and version.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lumenvid/recap/internal/config"
	"github.com/lumenvid/recap/internal/telemetry"
	"github.com/lumenvid/recap/internal/transport"
	"github.com/lumenvid/recap/pkg/api"
	"github.com/lumenvid/recap/pkg/session"
)

var rootCmd = &cobra.Command{
	Use:   "recap",
	Short: "Stream video analysis sessions from a recap backend",
	Long: `recap drives a streaming video-analysis session: it opens the
event stream for a video, follows the staged progress, and prints or
renders the summary as it is generated.

Configuration comes from RECAP_* environment variables; flags override.`,
}

var (
	flagBaseURL       string
	flagToken         string
	flagMode          string
	flagLanguage      string
	flagModel         string
	flagWebEnrichment bool
	flagMaxRetries    int
	flagBaseDelay     time.Duration
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagBaseURL, "base-url", "", "backend base URL")
	pf.StringVar(&flagToken, "token", "", "bearer token")
	pf.StringVar(&flagMode, "mode", "", "analysis mode (accessible|standard|expert)")
	pf.StringVar(&flagLanguage, "language", "", "summary language code")
	pf.StringVar(&flagModel, "model", "", "model identifier")
	pf.BoolVar(&flagWebEnrichment, "web-enrichment", false, "enrich the summary with web context")
	pf.IntVar(&flagMaxRetries, "max-retries", 0, "reconnection attempts after a transient failure")
	pf.DurationVar(&flagBaseDelay, "base-delay", 0, "base reconnection backoff delay")
}

// resolveConfig folds flag overrides into the environment configuration.
func resolveConfig(cmd *cobra.Command) config.Config {
	cfg := config.FromEnv()
	if cmd.Flags().Changed("base-url") {
		cfg.BaseURL = flagBaseURL
	}
	if cmd.Flags().Changed("token") {
		cfg.Token = flagToken
	}
	if cmd.Flags().Changed("mode") {
		cfg.Mode = flagMode
	}
	if cmd.Flags().Changed("language") {
		cfg.Language = flagLanguage
	}
	if cmd.Flags().Changed("model") {
		cfg.Model = flagModel
	}
	if cmd.Flags().Changed("web-enrichment") {
		cfg.WebEnrichment = flagWebEnrichment
	}
	if cmd.Flags().Changed("max-retries") {
		cfg.MaxRetries = flagMaxRetries
	}
	if cmd.Flags().Changed("base-delay") {
		cfg.BaseDelay = flagBaseDelay
	}
	return cfg
}

func newLogger(cfg config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
}

// newRecorder connects the metrics exporter when an endpoint is
// configured; otherwise returns nil, which records nothing.
func newRecorder(ctx context.Context, cfg config.Config, log *slog.Logger) *telemetry.Recorder {
	if cfg.OTELEndpoint == "" {
		return nil
	}
	rec, err := telemetry.NewRecorder(ctx, telemetry.Config{
		Endpoint: cfg.OTELEndpoint,
		Insecure: cfg.OTELInsecure,
	})
	if err != nil {
		log.Warn("metrics disabled", "error", err)
		return nil
	}
	return rec
}

func sessionConfig(cfg config.Config, videoID string, log *slog.Logger, metrics *telemetry.Recorder, callbacks session.Callbacks) session.Config {
	var tokens transport.TokenSource
	if cfg.Token != "" {
		tokens = transport.StaticToken(cfg.Token)
	}
	return session.Config{
		BaseURL: cfg.BaseURL,
		Request: api.AnalyzeRequest{
			VideoID:       videoID,
			Mode:          api.AnalysisMode(cfg.Mode),
			Language:      cfg.Language,
			Model:         cfg.Model,
			WebEnrichment: cfg.WebEnrichment,
		},
		Tokens: tokens,
		Retry: transport.RetryPolicy{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.BaseDelay,
		},
		Callbacks: callbacks,
		Logger:    log,
		Metrics:   metrics,
	}
}
