package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
)

const meterName = "tradejournal"

// Metrics bundles the application meters and the Prometheus scrape
// handler that exposes them.
type Metrics struct {
	provider       *sdkmetric.MeterProvider
	PrometheusHTTP http.Handler

	ImportsStarted metric.Int64Counter
	TradesSaved    metric.Int64Counter
	TradesSkipped  metric.Int64Counter
	TradesFailed   metric.Int64Counter
	ParseFailures  metric.Int64Counter
}

// InitializeMetrics creates an OpenTelemetry meter provider backed by a
// Prometheus exporter and registers the import pipeline counters.
func InitializeMetrics(serviceVersion string, logger *slog.Logger) (*Metrics, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName("tradejournal"),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create otel resource: %w", err)
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter(meterName, metric.WithInstrumentationVersion(serviceVersion))

	m := &Metrics{
		provider:       mp,
		PrometheusHTTP: promhttp.Handler(),
	}
	if m.ImportsStarted, err = meter.Int64Counter(
		"import_runs_started_total",
		metric.WithDescription("Import runs started"),
	); err != nil {
		return nil, err
	}
	if m.TradesSaved, err = meter.Int64Counter(
		"import_trades_saved_total",
		metric.WithDescription("Trades persisted by imports"),
	); err != nil {
		return nil, err
	}
	if m.TradesSkipped, err = meter.Int64Counter(
		"import_trades_skipped_total",
		metric.WithDescription("Trades skipped as duplicates"),
	); err != nil {
		return nil, err
	}
	if m.TradesFailed, err = meter.Int64Counter(
		"import_trades_failed_total",
		metric.WithDescription("Trades dropped or failed to save"),
	); err != nil {
		return nil, err
	}
	if m.ParseFailures, err = meter.Int64Counter(
		"import_parse_failures_total",
		metric.WithDescription("Uploaded files that could not be parsed"),
	); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("metrics initialized", slog.String("exporter", "prometheus"))
	}
	return m, nil
}

// SourceAttr labels a counter increment with the broker source.
func SourceAttr(source string) metric.AddOption {
	return metric.WithAttributes(attribute.String("source", source))
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
