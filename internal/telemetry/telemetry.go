// Package telemetry exports session metrics over OTLP/gRPC. A nil
// Recorder is valid and records nothing, so callers never need to guard
// call sites on whether metrics are configured.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	serviceName    = "recap"
	serviceVersion = "0.1.0"
)

// Config holds the OTLP exporter settings.
type Config struct {
	Endpoint string
	Insecure bool
}

// Recorder wraps the session instruments.
type Recorder struct {
	provider *sdkmetric.MeterProvider

	sessionsStarted metric.Int64Counter
	eventsApplied   metric.Int64Counter
	eventsDiscarded metric.Int64Counter
	reconnects      metric.Int64Counter
	tokensReceived  metric.Int64Counter
	durationHist    metric.Float64Histogram
	firstTokenHist  metric.Float64Histogram
}

// NewRecorder connects an OTLP/gRPC exporter and registers the
// instruments. Endpoint must be set; callers with no collector should
// pass a nil *Recorder around instead.
func NewRecorder(ctx context.Context, cfg Config) (*Recorder, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("telemetry endpoint not configured")
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)
	r := &Recorder{provider: provider}

	if r.sessionsStarted, err = meter.Int64Counter(
		"recap_sessions_started_total",
		metric.WithDescription("Analysis sessions started"),
		metric.WithUnit("{session}"),
	); err != nil {
		return nil, fmt.Errorf("creating sessions counter: %w", err)
	}

	if r.eventsApplied, err = meter.Int64Counter(
		"recap_events_applied_total",
		metric.WithDescription("Stream events applied to session state"),
		metric.WithUnit("{event}"),
	); err != nil {
		return nil, fmt.Errorf("creating events counter: %w", err)
	}

	if r.eventsDiscarded, err = meter.Int64Counter(
		"recap_events_discarded_total",
		metric.WithDescription("Stream records dropped before application"),
		metric.WithUnit("{event}"),
	); err != nil {
		return nil, fmt.Errorf("creating discarded counter: %w", err)
	}

	if r.reconnects, err = meter.Int64Counter(
		"recap_reconnects_total",
		metric.WithDescription("Transport reconnection attempts"),
		metric.WithUnit("{attempt}"),
	); err != nil {
		return nil, fmt.Errorf("creating reconnects counter: %w", err)
	}

	if r.tokensReceived, err = meter.Int64Counter(
		"recap_tokens_received_total",
		metric.WithDescription("Summary tokens received"),
		metric.WithUnit("{token}"),
	); err != nil {
		return nil, fmt.Errorf("creating tokens counter: %w", err)
	}

	if r.durationHist, err = meter.Float64Histogram(
		"recap_session_duration_seconds",
		metric.WithDescription("Session duration from start to terminal status"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	if r.firstTokenHist, err = meter.Float64Histogram(
		"recap_time_to_first_token_seconds",
		metric.WithDescription("Time from session start to the first token"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating first-token histogram: %w", err)
	}

	return r, nil
}

func (r *Recorder) SessionStarted(ctx context.Context, mode string) {
	if r == nil {
		return
	}
	r.sessionsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}

func (r *Recorder) EventApplied(ctx context.Context, eventType string) {
	if r == nil {
		return
	}
	r.eventsApplied.Add(ctx, 1, metric.WithAttributes(attribute.String("type", eventType)))
}

func (r *Recorder) EventDiscarded(ctx context.Context, reason string) {
	if r == nil {
		return
	}
	r.eventsDiscarded.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (r *Recorder) Reconnect(ctx context.Context) {
	if r == nil {
		return
	}
	r.reconnects.Add(ctx, 1)
}

func (r *Recorder) TokenReceived(ctx context.Context) {
	if r == nil {
		return
	}
	r.tokensReceived.Add(ctx, 1)
}

func (r *Recorder) SessionDuration(ctx context.Context, seconds float64, status string) {
	if r == nil {
		return
	}
	r.durationHist.Record(ctx, seconds, metric.WithAttributes(attribute.String("status", status)))
}

func (r *Recorder) TimeToFirstToken(ctx context.Context, seconds float64) {
	if r == nil {
		return
	}
	r.firstTokenHist.Record(ctx, seconds)
}

// Close flushes pending metrics and shuts the provider down.
func (r *Recorder) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	return r.provider.Shutdown(ctx)
}
