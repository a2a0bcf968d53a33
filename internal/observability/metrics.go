package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsConfig configures the metrics collector.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsCollector manages application metrics, exported through the
// Prometheus registry scraped at /metrics.
type MetricsCollector struct {
	meter metric.Meter

	parseRequests metric.Int64Counter
	parseLatency  metric.Float64Histogram

	intentExecutions metric.Int64Counter
	intentDuration   metric.Float64Histogram

	clientsConnected metric.Int64UpDownCounter
	messagesDropped  metric.Int64Counter
}

// NewMetricsCollector creates a metrics collector backed by the OpenTelemetry
// Prometheus exporter. When disabled, every record call is a no-op.
func NewMetricsCollector(config MetricsConfig) (*MetricsCollector, error) {
	if !config.Enabled {
		return &MetricsCollector{}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter("nova")

	parseRequests, err := meter.Int64Counter(
		"nova.parse.requests.total",
		metric.WithDescription("Total intent parse requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create parse_requests counter: %w", err)
	}

	parseLatency, err := meter.Float64Histogram(
		"nova.parse.latency",
		metric.WithDescription("Intent parse latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create parse_latency histogram: %w", err)
	}

	intentExecutions, err := meter.Int64Counter(
		"nova.intent.executions.total",
		metric.WithDescription("Total intent executions by action and outcome"),
		metric.WithUnit("{execution}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create intent_executions counter: %w", err)
	}

	intentDuration, err := meter.Float64Histogram(
		"nova.intent.duration",
		metric.WithDescription("Intent execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create intent_duration histogram: %w", err)
	}

	clientsConnected, err := meter.Int64UpDownCounter(
		"nova.clients.connected",
		metric.WithDescription("Number of live client connections"),
		metric.WithUnit("{client}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create clients_connected gauge: %w", err)
	}

	messagesDropped, err := meter.Int64Counter(
		"nova.messages.dropped.total",
		metric.WithDescription("Server push messages dropped because the client was not live"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messages_dropped counter: %w", err)
	}

	return &MetricsCollector{
		meter:            meter,
		parseRequests:    parseRequests,
		parseLatency:     parseLatency,
		intentExecutions: intentExecutions,
		intentDuration:   intentDuration,
		clientsConnected: clientsConnected,
		messagesDropped:  messagesDropped,
	}, nil
}

// RecordParse records one intent parse call.
func (m *MetricsCollector) RecordParse(ctx context.Context, status string, latency time.Duration) {
	if m.parseRequests == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.parseRequests.Add(ctx, 1, attrs)
	m.parseLatency.Record(ctx, latency.Seconds(), attrs)
}

// RecordIntentExecution records one intent execution.
func (m *MetricsCollector) RecordIntentExecution(ctx context.Context, action, status string, duration time.Duration) {
	if m.intentExecutions == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("status", status),
	)
	m.intentExecutions.Add(ctx, 1, attrs)
	m.intentDuration.Record(ctx, duration.Seconds(), attrs)
}

// ClientConnected adjusts the live connection gauge.
func (m *MetricsCollector) ClientConnected(ctx context.Context, delta int64) {
	if m.clientsConnected == nil {
		return
	}
	m.clientsConnected.Add(ctx, delta)
}

// RecordDroppedMessage counts a push message dropped for a dead client.
func (m *MetricsCollector) RecordDroppedMessage(ctx context.Context, msgType string) {
	if m.messagesDropped == nil {
		return
	}
	m.messagesDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("type", msgType)))
}
