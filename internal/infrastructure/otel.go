package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/LASER-IDEA/white-paper-sub000/internal/config"
)

const (
	// InstrumentationName names the tracer and meter of every engine component
	InstrumentationName = "github.com/LASER-IDEA/white-paper-sub000"
)

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// InitializeOTel sets up tracing and metrics according to cfg. Disabled
// signals fall back to the no-op providers of the global otel package.
func InitializeOTel(cfg config.TelemetryConfig, logger *slog.Logger) (*OTelProviders, error) {
	if logger == nil {
		logger = GetLogger()
	}
	ctx := context.Background()

	res, err := createResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	providers := &OTelProviders{
		Tracer: otel.Tracer(InstrumentationName),
		Meter:  otel.Meter(InstrumentationName),
		Logger: logger,
	}

	if cfg.EnableTracing {
		if err := initializeTracing(ctx, cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	if cfg.EnableMetrics {
		if err := initializeMetrics(ctx, cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "telemetry initialized",
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
		"tracing_enabled", providers.TracerProvider != nil,
		"metrics_enabled", providers.MeterProvider != nil)

	return providers, nil
}

func createResource(cfg config.TelemetryConfig) (*resource.Resource, error) {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(config.AppVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", generateInstanceID()),
	), nil
}

func initializeTracing(ctx context.Context, cfg config.TelemetryConfig, res *resource.Resource, providers *OTelProviders) error {
	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.TraceExporter {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "none", "":
		return nil
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)

	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(InstrumentationName, trace.WithInstrumentationVersion(config.AppVersion))
	otel.SetTracerProvider(tp)

	providers.Logger.InfoContext(ctx, "tracing initialized",
		"exporter", cfg.TraceExporter,
		"sample_ratio", cfg.SampleRatio)
	return nil
}

func initializeMetrics(ctx context.Context, cfg config.TelemetryConfig, res *resource.Resource, providers *OTelProviders) error {
	switch cfg.MetricExporter {
	case "prometheus":
		exporter, err := prometheus.New()
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}

		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)

		providers.PrometheusHTTP = promhttp.Handler()
		providers.MeterProvider = mp
		providers.Meter = mp.Meter(InstrumentationName, metric.WithInstrumentationVersion(config.AppVersion))
		otel.SetMeterProvider(mp)
	case "none", "":
		return nil
	default:
		return fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}

	providers.Logger.InfoContext(ctx, "metrics initialized", "exporter", cfg.MetricExporter)
	return nil
}

// Shutdown flushes and stops the providers that were created
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	p.Logger.InfoContext(ctx, "telemetry shutdown complete")
	return nil
}

// BusinessMetrics holds the engine's application metrics
type BusinessMetrics struct {
	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	// Index metrics
	IndexComputations        metric.Int64Counter
	IndexComputationDuration metric.Float64Histogram
	IndexFailures            metric.Int64Counter

	// Run metrics
	RunsTotal     metric.Int64Counter
	RunDuration   metric.Float64Histogram
	RowsValidated metric.Int64Counter
	RowsDropped   metric.Int64Counter
	CellsImputed  metric.Int64Counter
	CacheHits     metric.Int64Counter
	CacheMisses   metric.Int64Counter
}

// CreateBusinessMetrics registers the engine instruments on meter
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	m := &BusinessMetrics{}
	var err error

	if m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of active HTTP requests"),
	); err != nil {
		return nil, err
	}

	if m.IndexComputations, err = meter.Int64Counter(
		"index_computations_total",
		metric.WithDescription("Total number of index computations by status"),
	); err != nil {
		return nil, err
	}
	if m.IndexComputationDuration, err = meter.Float64Histogram(
		"index_computation_duration_seconds",
		metric.WithDescription("Index reducer duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.IndexFailures, err = meter.Int64Counter(
		"index_failures_total",
		metric.WithDescription("Total number of indices omitted from a run"),
	); err != nil {
		return nil, err
	}

	if m.RunsTotal, err = meter.Int64Counter(
		"engine_runs_total",
		metric.WithDescription("Total number of engine runs"),
	); err != nil {
		return nil, err
	}
	if m.RunDuration, err = meter.Float64Histogram(
		"engine_run_duration_seconds",
		metric.WithDescription("Engine run duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.RowsValidated, err = meter.Int64Counter(
		"engine_rows_validated_total",
		metric.WithDescription("Rows that passed the quality filter"),
	); err != nil {
		return nil, err
	}
	if m.RowsDropped, err = meter.Int64Counter(
		"engine_rows_dropped_total",
		metric.WithDescription("Rows dropped for an unparseable date"),
	); err != nil {
		return nil, err
	}
	if m.CellsImputed, err = meter.Int64Counter(
		"engine_cells_imputed_total",
		metric.WithDescription("Numeric cells replaced by the column median"),
	); err != nil {
		return nil, err
	}
	if m.CacheHits, err = meter.Int64Counter(
		"index_cache_hits_total",
		metric.WithDescription("Total number of index result cache hits"),
	); err != nil {
		return nil, err
	}
	if m.CacheMisses, err = meter.Int64Counter(
		"index_cache_misses_total",
		metric.WithDescription("Total number of index result cache misses"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// generateInstanceID generates a unique instance identifier
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// TraceIDFromContext returns the active span's trace id, empty without one
func TraceIDFromContext(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}

// RecordIndexMetrics records one ledger entry worth of index metrics
func RecordIndexMetrics(ctx context.Context, metrics *BusinessMetrics, indexID, status string, duration time.Duration) {
	if metrics == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("index.id", indexID),
		attribute.String("status", status),
	)
	metrics.IndexComputations.Add(ctx, 1, attrs)
	metrics.IndexComputationDuration.Record(ctx, duration.Seconds(), attrs)

	if status != "ok" && status != "cached" {
		metrics.IndexFailures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("index.id", indexID),
			attribute.String("reason", status),
		))
	}
}

// RecordRunMetrics records the outcome of one engine run
func RecordRunMetrics(ctx context.Context, metrics *BusinessMetrics, duration time.Duration, validRows, droppedRows, imputed int, err error) {
	if metrics == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "failure"
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	metrics.RunsTotal.Add(ctx, 1, attrs)
	metrics.RunDuration.Record(ctx, duration.Seconds(), attrs)

	metrics.RowsValidated.Add(ctx, int64(validRows))
	metrics.RowsDropped.Add(ctx, int64(droppedRows))
	metrics.CellsImputed.Add(ctx, int64(imputed))
}

// RecordCacheLookup counts a result cache hit or miss
func RecordCacheLookup(ctx context.Context, metrics *BusinessMetrics, indexID string, hit bool) {
	if metrics == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("index.id", indexID))
	if hit {
		metrics.CacheHits.Add(ctx, 1, attrs)
		return
	}
	metrics.CacheMisses.Add(ctx, 1, attrs)
}

// RecordHTTPMetrics records one served request
func RecordHTTPMetrics(ctx context.Context, metrics *BusinessMetrics, method, route string, status int, duration time.Duration) {
	if metrics == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	)
	metrics.HTTPRequestsTotal.Add(ctx, 1, attrs)
	metrics.HTTPRequestDuration.Record(ctx, duration.Seconds(), attrs)
}
