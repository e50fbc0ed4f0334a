package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/LASER-IDEA/white-paper-sub000/internal/chart"
	"github.com/LASER-IDEA/white-paper-sub000/internal/config"
	"github.com/LASER-IDEA/white-paper-sub000/internal/dataset"
	apierrors "github.com/LASER-IDEA/white-paper-sub000/internal/errors"
	"github.com/LASER-IDEA/white-paper-sub000/internal/indices"
	"github.com/LASER-IDEA/white-paper-sub000/internal/infrastructure"
	"github.com/LASER-IDEA/white-paper-sub000/internal/schema"
	"github.com/LASER-IDEA/white-paper-sub000/pkg/contracts/domain"
)

// flightTable spans three months, five regions and eight operators
func flightTable() schema.RawTable {
	raw := schema.RawTable{
		Columns: []string{"flight_date", "area", "operator", "duration_min", "distance_km", "aircraft_model", "user_type", "altitude_m", "sorties"},
	}
	regions := []string{"north", "south", "east", "west", "centre"}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 90; i++ {
		ts := start.AddDate(0, 0, i).Add(time.Duration((i*7)%24) * time.Hour)
		userType := "enterprise"
		if i%5 == 0 {
			userType = "personal"
		}
		raw.Rows = append(raw.Rows, []string{
			ts.Format("2006-01-02 15:04:05"),
			regions[i%len(regions)],
			fmt.Sprintf("op-%d", i%8),
			strconv.Itoa(10 + i%30),
			strconv.Itoa(2 + i%15),
			fmt.Sprintf("model-%d", i%4),
			userType,
			strconv.Itoa(50 + (i*37)%700),
			strconv.Itoa(1 + i%3),
		})
	}
	return raw
}

func sequentialIDs() func() string {
	var n int64
	return func() string {
		return fmt.Sprintf("run-%d", atomic.AddInt64(&n, 1))
	}
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	base := []Option{
		WithLogger(infrastructure.NewDiscardLogger()),
		WithRunIDGenerator(sequentialIDs()),
	}
	e, err := New(append(base, opts...)...)
	require.NoError(t, err)
	return e
}

func resultIDs(results []domain.IndexResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}

func TestRunComputesCatalogueInOrder(t *testing.T) {
	e := newTestEngine(t)

	result, err := e.Run(context.Background(), flightTable())
	require.NoError(t, err)

	assert.Equal(t, "run-1", result.RunID)
	assert.Len(t, result.Fingerprint, 64)
	assert.Empty(t, result.Failures)

	var want []string
	for _, d := range indices.Catalog() {
		want = append(want, d.ID)
	}
	assert.Equal(t, want, resultIDs(result.Results))

	require.Len(t, result.Ledger, len(want))
	ledgerIDs := make([]string, len(result.Ledger))
	for i, entry := range result.Ledger {
		ledgerIDs[i] = entry.IndexID
	}
	assert.Equal(t, want, ledgerIDs, "ledger follows catalogue order")
	for _, entry := range result.Ledger {
		assert.Equal(t, domain.LedgerStatusOK, entry.Status, entry.IndexID)
		assert.Equal(t, "run-1", entry.RunID)
		assert.Equal(t, result.Fingerprint, entry.Fingerprint)
		assert.Equal(t, indices.FormulaVersion, entry.FormulaVersion)
	}

	assert.Equal(t, 90, result.Report.TotalRows)
	assert.Equal(t, 90, result.Report.ValidRows)

	for _, r := range result.Results {
		def, _ := indices.Lookup(r.ID)
		assert.Equal(t, def.Shape, r.Chart.Shape, r.ID)
		assert.NotNil(t, r.KeyMetrics, r.ID)
	}
}

func TestScenarioMissingDuration(t *testing.T) {
	e := newTestEngine(t)
	raw := schema.RawTable{
		Columns: []string{"date", "region", "entity", "distance"},
		Rows:    [][]string{{"2024-01-01", "X", "acme", "1"}},
	}

	result, err := e.Run(context.Background(), raw)
	assert.Nil(t, result)

	var missing *apierrors.MissingColumnError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{domain.FieldDuration}, missing.Fields)
}

func TestScenarioSingleRegion(t *testing.T) {
	e := newTestEngine(t)
	raw := schema.RawTable{
		Columns: []string{"date", "region", "entity", "duration", "distance"},
		Rows: [][]string{
			{"2024-01-01", "X", "acme", "10", "1"},
			{"2024-01-02", "X", "acme", "20", "2"},
			{"2024-01-03", "X", "acme", "30", "3"},
		},
	}

	result, err := e.Run(context.Background(), raw)
	require.NoError(t, err)

	balance, ok := result.Result("market_balance")
	require.True(t, ok)
	assert.Equal(t, 1.0, balance.Value)

	traffic, ok := result.Result("traffic_index")
	require.True(t, ok)
	assert.InDelta(t, 100.0, traffic.Value, 1e-9)

	duration, ok := result.Result("average_duration")
	require.True(t, ok)
	assert.InDelta(t, 20.0, duration.Value, 1e-9)
}

func TestScenarioImputedDurations(t *testing.T) {
	// 15 valid durations with median 10 and mean 20, plus 5 unusable ones
	durations := []string{
		"10", "10", "10", "10", "10", "10", "10", "10", "10", "10",
		"40", "40", "40", "40", "40",
		"NaN", "", "n/a", "nan", "Inf",
	}
	raw := schema.RawTable{Columns: []string{"date", "region", "entity", "duration", "distance"}}
	for i, d := range durations {
		raw.Rows = append(raw.Rows, []string{fmt.Sprintf("2024-01-%02d", i+1), "X", "acme", d, "1"})
	}

	result, err := newTestEngine(t).Run(context.Background(), raw)
	require.NoError(t, err)

	imp := result.Report.Imputed[domain.FieldDuration]
	assert.Equal(t, 5, imp.Count)
	assert.Equal(t, 10.0, imp.Median)

	duration, ok := result.Result("average_duration")
	require.True(t, ok)
	// (10×10 + 5×40 + 5×10) / 20
	assert.InDelta(t, 17.5, duration.Value, 1e-9)

	hours, ok := result.Result("flight_hours")
	require.True(t, ok)
	assert.InDelta(t, 350.0/60, hours.Value, 1e-9)
}

func TestRunReadsSpreadsheetDates(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"date", "region", "entity", "duration", "distance"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{time.Date(2024, 1, 15, 8, 30, 0, 0, time.UTC), "north", "acme", 30, 12}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), "south", "beta", 45, 20}))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	raw, err := schema.ReadXLSX(buf)
	require.NoError(t, err)

	result, err := newTestEngine(t).Run(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Report.DroppedInvalidDate)
	assert.Equal(t, 2, result.Report.ValidRows)
	assert.Equal(t, 1, result.Report.DefaultedHour, "a whole-day serial carries no time of day")

	volume, ok := result.Result("sortie_volume")
	require.True(t, ok)
	assert.Equal(t, 2.0, volume.Value)
	assert.Len(t, volume.Chart.Series, 2)
}

func TestRunIsIdempotent(t *testing.T) {
	e := newTestEngine(t)

	first, err := e.Run(context.Background(), flightTable())
	require.NoError(t, err)
	second, err := e.Run(context.Background(), flightTable())
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, first.Report, second.Report)
}

func TestRunUsesCache(t *testing.T) {
	cache := NewResultCache(time.Minute, 100)
	e := newTestEngine(t, WithCache(cache))

	first, err := e.Run(context.Background(), flightTable())
	require.NoError(t, err)
	second, err := e.Run(context.Background(), flightTable())
	require.NoError(t, err)

	assert.Equal(t, first.Results, second.Results)
	for _, entry := range second.Ledger {
		assert.Equal(t, domain.LedgerStatusCached, entry.Status, entry.IndexID)
	}

	stats := cache.Stats()
	assert.Equal(t, int64(len(first.Results)), stats.Hits)
	assert.Equal(t, int64(len(first.Results)), stats.Misses)

	t.Run("different parameters miss", func(t *testing.T) {
		p := indices.DefaultParams()
		p.RankingLimit = 3
		third, err := e.WithRunParams(p).Run(context.Background(), flightTable())
		require.NoError(t, err)
		assert.Equal(t, domain.LedgerStatusOK, third.Ledger[0].Status)
	})
}

func failingDefinitions() []indices.Definition {
	good, _ := indices.Lookup("sortie_volume")
	return []indices.Definition{
		good,
		{
			ID: "panics", Title: "Panics", Dimension: domain.DimensionTimeSpace, Shape: domain.ShapeCategorical, FormulaVersion: "v1",
			Reduce: func(*dataset.Dataset, indices.Params) (indices.Output, error) {
				var m map[string]int
				m["boom"]++
				return indices.Output{}, nil
			},
		},
		{
			ID: "slow", Title: "Slow", Dimension: domain.DimensionTimeSpace, Shape: domain.ShapeCategorical, FormulaVersion: "v1",
			Reduce: func(*dataset.Dataset, indices.Params) (indices.Output, error) {
				time.Sleep(500 * time.Millisecond)
				return indices.Output{Raw: chart.Table{}}, nil
			},
		},
		{
			ID: "wrong_shape", Title: "Wrong Shape", Dimension: domain.DimensionTimeSpace, Shape: domain.ShapeCategorical, FormulaVersion: "v1",
			Reduce: func(*dataset.Dataset, indices.Params) (indices.Output, error) {
				return indices.Output{Value: 1, Raw: chart.Series{}}, nil
			},
		},
		{
			ID: "errors", Title: "Errors", Dimension: domain.DimensionTimeSpace, Shape: domain.ShapeCategorical, FormulaVersion: "v1",
			Reduce: func(*dataset.Dataset, indices.Params) (indices.Output, error) {
				return indices.Output{}, errors.New("no data for period")
			},
		},
	}
}

func TestFailuresAreIsolated(t *testing.T) {
	e := newTestEngine(t,
		WithDefinitions(failingDefinitions()),
		WithReducerTimeout(50*time.Millisecond))

	result, err := e.Run(context.Background(), flightTable())
	require.NoError(t, err)

	assert.Equal(t, []string{"sortie_volume"}, resultIDs(result.Results))
	require.Len(t, result.Failures, 4)

	kinds := make(map[string]string)
	for _, f := range result.Failures {
		kinds[f.ID] = f.Kind
		assert.NotEmpty(t, f.Reason)
	}
	assert.Equal(t, map[string]string{
		"panics":      domain.FailureComputation,
		"slow":        domain.FailureTimeout,
		"wrong_shape": domain.FailureOutputShape,
		"errors":      domain.FailureComputation,
	}, kinds)
	assert.Equal(t, []string{"panics", "slow", "wrong_shape", "errors"}, []string{
		result.Failures[0].ID, result.Failures[1].ID, result.Failures[2].ID, result.Failures[3].ID,
	})

	statuses := make(map[string]string)
	for _, entry := range result.Ledger {
		statuses[entry.IndexID] = entry.Status
	}
	assert.Equal(t, domain.LedgerStatusOK, statuses["sortie_volume"])
	assert.Equal(t, domain.LedgerStatusFailed, statuses["panics"])
	assert.Equal(t, domain.LedgerStatusTimeout, statuses["slow"])
	assert.Equal(t, domain.LedgerStatusFailed, statuses["wrong_shape"])
}

func TestEngineDerivesMonthlyTrend(t *testing.T) {
	totals := indices.Definition{
		ID: "total", Title: "Total", Dimension: domain.DimensionScaleGrowth, Shape: domain.ShapeCategorical, FormulaVersion: "v1",
		Reduce: func(ds *dataset.Dataset, _ indices.Params) (indices.Output, error) {
			v := float64(ds.TotalSorties())
			return indices.Output{Value: v, Raw: chart.Table{Rows: []domain.CategoryValue{{Category: "all", Value: v}}}}, nil
		},
	}
	e := newTestEngine(t, WithDefinitions([]indices.Definition{totals}))

	raw := schema.RawTable{
		Columns: []string{"date", "region", "entity", "duration", "distance", "sorties"},
		Rows: [][]string{
			{"2024-01-10", "X", "a", "10", "1", "10"},
			{"2024-02-10", "X", "a", "10", "1", "15"},
		},
	}
	result, err := e.Run(context.Background(), raw)
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.Equal(t, 25.0, result.Results[0].Value)
	assert.InDelta(t, 0.5, result.Results[0].Trend, 1e-12)
}

func TestRunEmitsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	good, _ := indices.Lookup("night_share")
	e := newTestEngine(t,
		WithTracer(tp.Tracer("test")),
		WithDefinitions([]indices.Definition{good}))

	_, err := e.Run(context.Background(), flightTable())
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	byName := make(map[string]tracetest.SpanStub)
	for _, s := range spans {
		byName[s.Name] = s
	}
	run, ok := byName["engine.run"]
	require.True(t, ok)
	child, ok := byName["index.night_share"]
	require.True(t, ok)
	assert.Equal(t, run.SpanContext.SpanID(), child.Parent.SpanID())
}

func TestFailedReducerSpanRecordsError(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	failing := failingDefinitions()[4]
	e := newTestEngine(t,
		WithTracer(tp.Tracer("test")),
		WithDefinitions([]indices.Definition{failing}))

	result, err := e.Run(context.Background(), flightTable())
	require.NoError(t, err)
	require.Len(t, result.Failures, 1)

	for _, s := range exporter.GetSpans() {
		if s.Name != "index.errors" {
			continue
		}
		assert.Equal(t, codes.Error, s.Status.Code)
		require.NotEmpty(t, s.Events)
		assert.Equal(t, "exception", s.Events[0].Name)
		return
	}
	t.Fatal("index.errors span not exported")
}

func TestRunCancelled(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Run(ctx, flightTable())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRejectsInvalidMapping(t *testing.T) {
	m := schema.DefaultMapping()
	delete(m, domain.FieldEntity)

	_, err := New(WithMapping(m))
	var missing *apierrors.MissingColumnError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{domain.FieldEntity}, missing.Fields)
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default().Engine
	cfg.BaseStart = "2024-01-01"
	cfg.BaseEnd = "2024-01-31"
	cfg.RankingLimit = 5
	cfg.MaxConcurrency = 2

	e, err := NewFromConfig(cfg, WithLogger(infrastructure.NewDiscardLogger()))
	require.NoError(t, err)

	p := e.Params()
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), p.BaseStart)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), p.BaseEnd)
	assert.Equal(t, 5, p.RankingLimit)
	assert.Equal(t, 2, e.maxConcurrency)
	assert.Equal(t, cfg.CacheSize > 0, e.Cache() != nil)

	t.Run("invalid timezone", func(t *testing.T) {
		bad := config.Default().Engine
		bad.Timezone = "Mars/Olympus"
		_, err := NewFromConfig(bad)
		assert.Error(t, err)
	})

	t.Run("inverted base period", func(t *testing.T) {
		bad := config.Default().Engine
		bad.BaseStart, bad.BaseEnd = "2024-02-01", "2024-01-01"
		_, err := NewFromConfig(bad)
		assert.Error(t, err)
	})
}
