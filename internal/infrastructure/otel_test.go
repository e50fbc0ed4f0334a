package infrastructure

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/LASER-IDEA/white-paper-sub000/internal/config"
)

func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	totals := make(map[string]int64)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					totals[m.Name] += dp.Value
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					totals[m.Name] += int64(dp.Count)
				}
			}
		}
	}
	return totals
}

func TestInitializeOTel(t *testing.T) {
	cfg := config.Default().Telemetry
	cfg.EnableTracing = false

	providers, err := InitializeOTel(cfg, NewDiscardLogger())
	require.NoError(t, err)

	assert.Nil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer, "no-op tracer when tracing is off")
	require.NotNil(t, providers.MeterProvider)
	require.NotNil(t, providers.PrometheusHTTP)

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)
	RecordIndexMetrics(context.Background(), metrics, "traffic_index", "ok", 5*time.Millisecond)

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "index_computations_total")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestInitializeOTelRejectsUnknownExporter(t *testing.T) {
	cfg := config.Default().Telemetry
	cfg.EnableMetrics = false
	cfg.EnableTracing = true
	cfg.TraceExporter = "jaeger"

	_, err := InitializeOTel(cfg, NewDiscardLogger())
	assert.Error(t, err)
}

func TestBusinessMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	metrics, err := CreateBusinessMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	RecordIndexMetrics(ctx, metrics, "traffic_index", "ok", time.Millisecond)
	RecordIndexMetrics(ctx, metrics, "night_share", "cached", 0)
	RecordIndexMetrics(ctx, metrics, "spatial_balance", "timeout", 3*time.Second)
	RecordCacheLookup(ctx, metrics, "night_share", true)
	RecordCacheLookup(ctx, metrics, "traffic_index", false)
	RecordRunMetrics(ctx, metrics, time.Second, 95, 5, 7, nil)
	RecordHTTPMetrics(ctx, metrics, http.MethodPost, "/api/v1/indices", http.StatusOK, 20*time.Millisecond)

	totals := collectSums(t, reader)
	assert.Equal(t, int64(3), totals["index_computations_total"])
	assert.Equal(t, int64(3), totals["index_computation_duration_seconds"])
	assert.Equal(t, int64(1), totals["index_failures_total"])
	assert.Equal(t, int64(1), totals["index_cache_hits_total"])
	assert.Equal(t, int64(1), totals["index_cache_misses_total"])
	assert.Equal(t, int64(1), totals["engine_runs_total"])
	assert.Equal(t, int64(95), totals["engine_rows_validated_total"])
	assert.Equal(t, int64(5), totals["engine_rows_dropped_total"])
	assert.Equal(t, int64(7), totals["engine_cells_imputed_total"])
	assert.Equal(t, int64(1), totals["http_requests_total"])

	t.Run("nil metrics are ignored", func(t *testing.T) {
		assert.NotPanics(t, func() {
			RecordIndexMetrics(ctx, nil, "x", "ok", 0)
			RecordRunMetrics(ctx, nil, 0, 0, 0, 0, errors.New("boom"))
			RecordCacheLookup(ctx, nil, "x", true)
			RecordHTTPMetrics(ctx, nil, "GET", "/", 200, 0)
		})
	})
}

func TestRecordError(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	ctx, span := tp.Tracer("test").Start(context.Background(), "reducer")
	assert.Equal(t, span.SpanContext().TraceID().String(), TraceIDFromContext(ctx))

	RecordError(ctx, errors.New("division by zero"))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "division by zero", spans[0].Status.Description)

	assert.Empty(t, TraceIDFromContext(context.Background()))
}

func TestRuntimeMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	rm, err := NewRuntimeMetrics(mp.Meter("test"), time.Hour)
	require.NoError(t, err)

	stats := rm.Collect(context.Background())
	assert.Positive(t, stats.Goroutines)
	assert.Positive(t, stats.CPUCount)
	assert.False(t, stats.Timestamp.IsZero())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rm.Start(ctx)
		close(done)
	}()
	rm.Stop()
	rm.Stop()
	<-done
	cancel()
}
