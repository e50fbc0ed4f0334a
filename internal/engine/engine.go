// Package engine runs the index pipeline: raw table to normalized table to
// validated dataset, then every catalogued reducer in parallel, each result
// adapted to its chart shape and ledgered.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/LASER-IDEA/white-paper-sub000/internal/chart"
	"github.com/LASER-IDEA/white-paper-sub000/internal/config"
	"github.com/LASER-IDEA/white-paper-sub000/internal/dataset"
	apierrors "github.com/LASER-IDEA/white-paper-sub000/internal/errors"
	"github.com/LASER-IDEA/white-paper-sub000/internal/indices"
	"github.com/LASER-IDEA/white-paper-sub000/internal/infrastructure"
	"github.com/LASER-IDEA/white-paper-sub000/internal/ledger"
	"github.com/LASER-IDEA/white-paper-sub000/internal/quality"
	"github.com/LASER-IDEA/white-paper-sub000/internal/schema"
	"github.com/LASER-IDEA/white-paper-sub000/pkg/contracts/domain"
)

// TracerName names the engine's spans
const TracerName = "indexengine"

// RunResult is everything one run produces
type RunResult struct {
	RunID       string                   `json:"run_id"`
	Fingerprint string                   `json:"fingerprint"`
	GeneratedAt time.Time                `json:"generated_at"`
	Results     []domain.IndexResult     `json:"results"`
	Failures    []domain.IndexFailure    `json:"failures"`
	Report      *domain.ValidationReport `json:"validation_report"`
	Ledger      []domain.LedgerEntry     `json:"ledger"`
}

// Result returns the result of an index id
func (r *RunResult) Result(id string) (domain.IndexResult, bool) {
	for _, res := range r.Results {
		if res.ID == id {
			return res, true
		}
	}
	return domain.IndexResult{}, false
}

// Engine computes the index catalogue over input tables. It is safe for
// concurrent use; runs share only the result cache.
type Engine struct {
	mapping        schema.Mapping
	normalizer     *schema.Normalizer
	filter         *quality.Filter
	qualityOpts    quality.Options
	definitions    []indices.Definition
	params         indices.Params
	maxConcurrency int
	reducerTimeout time.Duration

	cache   *ResultCache
	tracer  trace.Tracer
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger
	newID   func() string
	now     func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTracer sets the tracer for run and reducer spans
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithMetrics records run, cache and ledger metrics
func WithMetrics(metrics *infrastructure.BusinessMetrics) Option {
	return func(e *Engine) {
		e.metrics = metrics
	}
}

// WithCache reuses results across runs over identical data
func WithCache(cache *ResultCache) Option {
	return func(e *Engine) {
		e.cache = cache
	}
}

// WithMaxConcurrency bounds the number of reducers running at once
func WithMaxConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxConcurrency = n
		}
	}
}

// WithReducerTimeout sets the time budget of each reducer
func WithReducerTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.reducerTimeout = d
		}
	}
}

// WithParams sets the reducer parameters
func WithParams(p indices.Params) Option {
	return func(e *Engine) {
		e.params = p
	}
}

// WithQualityOptions sets the repair policies of the validation pass
func WithQualityOptions(opts quality.Options) Option {
	return func(e *Engine) {
		e.qualityOpts = opts
	}
}

// WithMapping replaces the default column synonym table
func WithMapping(m schema.Mapping) Option {
	return func(e *Engine) {
		e.mapping = m
	}
}

// WithDefinitions replaces the index catalogue
func WithDefinitions(defs []indices.Definition) Option {
	return func(e *Engine) {
		e.definitions = defs
	}
}

// WithRunIDGenerator replaces the uuid run id source
func WithRunIDGenerator(newID func() string) Option {
	return func(e *Engine) {
		e.newID = newID
	}
}

// New creates an engine. The column mapping is validated here, so an
// unusable mapping fails construction rather than the first run.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		mapping:        schema.DefaultMapping(),
		qualityOpts:    quality.DefaultOptions(),
		definitions:    indices.Catalog(),
		params:         indices.DefaultParams(),
		maxConcurrency: config.DefaultMaxConcurrency,
		reducerTimeout: config.DefaultReducerTimeout,
		tracer:         otel.Tracer(TracerName),
		logger:         slog.Default(),
		newID:          infrastructure.GenerateTraceID,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	normalizer, err := schema.NewNormalizer(e.mapping, e.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create normalizer: %w", err)
	}
	e.normalizer = normalizer
	e.filter = quality.NewFilter(e.logger, e.qualityOpts)

	return e, nil
}

// NewFromConfig creates an engine from the engine configuration section.
// Further options are applied after the configured ones.
func NewFromConfig(cfg config.EngineConfig, opts ...Option) (*Engine, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}
	start, end, err := cfg.BasePeriod()
	if err != nil {
		return nil, err
	}

	params := indices.DefaultParams()
	params.BaseStart, params.BaseEnd = start, end
	params.RankingLimit = cfg.RankingLimit

	configured := []Option{
		WithMaxConcurrency(cfg.MaxConcurrency),
		WithReducerTimeout(cfg.ReducerTimeout),
		WithParams(params),
		WithQualityOptions(quality.Options{
			HourPolicy: quality.DefaultHourPolicy{Value: cfg.DefaultHour},
			Location:   loc,
		}),
	}
	if cfg.CacheSize > 0 {
		configured = append(configured, WithCache(NewResultCache(cfg.CacheTTL, cfg.CacheSize)))
	}

	return New(append(configured, opts...)...)
}

// Params returns the reducer parameters of the engine
func (e *Engine) Params() indices.Params {
	return e.params
}

// Definitions returns the catalogue the engine computes
func (e *Engine) Definitions() []indices.Definition {
	out := make([]indices.Definition, len(e.definitions))
	copy(out, e.definitions)
	return out
}

// Cache returns the result cache, nil when caching is off
func (e *Engine) Cache() *ResultCache {
	return e.cache
}

// WithRunParams returns a shallow copy of the engine computing with p.
// The copy shares the cache, whose keys include the parameters.
func (e *Engine) WithRunParams(p indices.Params) *Engine {
	clone := *e
	clone.params = p
	return &clone
}

// Run normalizes and validates raw, then computes every index. A
// MissingColumnError aborts the run; per-index failures do not.
func (e *Engine) Run(ctx context.Context, raw schema.RawTable) (*RunResult, error) {
	start := time.Now()
	runID := e.newID()
	if infrastructure.GetTraceID(ctx) == "" {
		ctx = infrastructure.WithTraceID(ctx, runID)
	}

	ctx, span := e.tracer.Start(ctx, "engine.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.Int("input.rows", raw.Len()),
		attribute.Int("input.columns", len(raw.Columns)),
	))
	defer span.End()

	e.logger.InfoContext(ctx, "run started",
		"run_id", runID,
		"rows", raw.Len(),
		"columns", len(raw.Columns))

	table, err := e.normalizer.Normalize(raw)
	if err != nil {
		e.fail(ctx, start, err)
		return nil, err
	}

	ds, err := e.filter.Validate(ctx, table)
	if err != nil {
		e.fail(ctx, start, err)
		return nil, err
	}

	result, err := e.compute(ctx, runID, ds)
	if err != nil {
		e.fail(ctx, start, err)
		return nil, err
	}

	report := ds.Report()
	infrastructure.RecordRunMetrics(ctx, e.metrics, time.Since(start), report.ValidRows, report.DroppedInvalidDate, report.ImputedCells(), nil)
	span.SetAttributes(
		attribute.Int("run.results", len(result.Results)),
		attribute.Int("run.failures", len(result.Failures)),
	)

	e.logger.InfoContext(ctx, "run complete",
		"run_id", runID,
		"fingerprint", result.Fingerprint,
		"valid_rows", report.ValidRows,
		"results", len(result.Results),
		"failures", len(result.Failures),
		"duration_ms", time.Since(start).Milliseconds())

	return result, nil
}

func (e *Engine) fail(ctx context.Context, start time.Time, err error) {
	infrastructure.RecordError(ctx, err)
	infrastructure.RecordRunMetrics(ctx, e.metrics, time.Since(start), 0, 0, 0, err)

	if apierrors.IsFatal(err) {
		e.logger.ErrorContext(ctx, "run aborted", "error", err)
		return
	}
	e.logger.ErrorContext(ctx, "run failed", "error", err)
}

// compute fans the reducers out and gathers their results in catalogue order
func (e *Engine) compute(ctx context.Context, runID string, ds *dataset.Dataset) (*RunResult, error) {
	led := ledger.New(runID, ds.Fingerprint(),
		ledger.WithMetrics(e.metrics),
		ledger.WithLogger(e.logger))

	results := make([]*domain.IndexResult, len(e.definitions))
	failures := make([]*domain.IndexFailure, len(e.definitions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrency)
	for i, def := range e.definitions {
		g.Go(func() error {
			results[i], failures[i] = e.computeIndex(gctx, ds, def, led)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run %s cancelled: %w", runID, err)
	}

	out := &RunResult{
		RunID:       runID,
		Fingerprint: ds.Fingerprint(),
		GeneratedAt: e.now().UTC(),
		Results:     make([]domain.IndexResult, 0, len(e.definitions)),
		Failures:    []domain.IndexFailure{},
		Report:      ds.Report(),
	}
	order := make([]string, len(e.definitions))
	for i, def := range e.definitions {
		order[i] = def.ID
		if results[i] != nil {
			out.Results = append(out.Results, *results[i])
		}
		if failures[i] != nil {
			out.Failures = append(out.Failures, *failures[i])
		}
	}
	out.Ledger = led.Ordered(order)
	return out, nil
}

// computeIndex produces exactly one of a result or a failure, and one ledger entry
func (e *Engine) computeIndex(ctx context.Context, ds *dataset.Dataset, def indices.Definition, led *ledger.Ledger) (*domain.IndexResult, *domain.IndexFailure) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "index."+def.ID, trace.WithAttributes(
		attribute.String("index.id", def.ID),
		attribute.String("index.dimension", string(def.Dimension)),
		attribute.String("index.shape", string(def.Shape)),
	))
	defer span.End()

	entry := domain.LedgerEntry{IndexID: def.ID, FormulaVersion: def.FormulaVersion}

	key := cacheKey(ds.Fingerprint(), def, e.params)
	if e.cache != nil {
		cached, warnings, ok := e.cache.Get(key)
		infrastructure.RecordCacheLookup(ctx, e.metrics, def.ID, ok)
		if ok {
			span.SetAttributes(attribute.Bool("index.cached", true))
			entry.Status = domain.LedgerStatusCached
			entry.Warnings = warnings
			entry.Duration = time.Since(start)
			led.Record(ctx, entry)
			return &cached, nil
		}
	}

	result, warnings, err := e.evaluate(ctx, ds, def)
	entry.Duration = time.Since(start)
	entry.Warnings = warnings

	if err != nil {
		failure := &domain.IndexFailure{ID: def.ID, Kind: apierrors.FailureKind(err), Reason: err.Error()}
		entry.Status = domain.LedgerStatusFailed
		if failure.Kind == domain.FailureTimeout {
			entry.Status = domain.LedgerStatusTimeout
		}
		entry.Error = err.Error()
		led.Record(ctx, entry)

		infrastructure.RecordError(ctx, err)
		e.logger.WarnContext(ctx, "index omitted",
			"index_id", def.ID,
			"kind", failure.Kind,
			"error", err,
			"duration_ms", entry.Duration.Milliseconds())
		return nil, failure
	}

	entry.Status = domain.LedgerStatusOK
	led.Record(ctx, entry)
	if e.cache != nil {
		e.cache.Set(key, *result, warnings)
	}
	span.SetAttributes(attribute.Float64("index.value", result.Value))
	return result, nil
}

type reduction struct {
	out   indices.Output
	trend float64
	err   error
}

// evaluate runs the reducer under the time budget and adapts its output
func (e *Engine) evaluate(ctx context.Context, ds *dataset.Dataset, def indices.Definition) (*domain.IndexResult, []string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.reducerTimeout)
	defer cancel()

	done := make(chan reduction, 1)
	go func() {
		done <- e.reduce(ds, def)
	}()

	var r reduction
	select {
	case r = <-done:
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, nil, &apierrors.TimeoutError{IndexID: def.ID, Budget: e.reducerTimeout}
		}
		return nil, nil, apierrors.NewComputationError(def.ID, "cancelled", ctx.Err())
	}
	if r.err != nil {
		return nil, nil, r.err
	}

	if math.IsNaN(r.out.Value) || math.IsInf(r.out.Value, 0) {
		return nil, r.out.Warnings, apierrors.NewComputationError(def.ID, "non-finite headline value", nil)
	}

	payload, err := chart.Adapt(def.ID, def.Shape, r.out.Raw, def.ChartOptions(e.params))
	if err != nil {
		return nil, r.out.Warnings, err
	}

	keyMetrics := r.out.KeyMetrics
	if keyMetrics == nil {
		keyMetrics = []domain.KeyMetric{}
	}

	return &domain.IndexResult{
		ID:             def.ID,
		Title:          def.Title,
		Dimension:      def.Dimension,
		Value:          r.out.Value,
		Unit:           def.Unit,
		Trend:          r.trend,
		Chart:          payload,
		KeyMetrics:     keyMetrics,
		FormulaVersion: def.FormulaVersion,
	}, r.out.Warnings, nil
}

// reduce calls the reducer and derives the month-over-month trend unless the
// reducer supplied its own. Panics become ComputationErrors.
func (e *Engine) reduce(ds *dataset.Dataset, def indices.Definition) (r reduction) {
	defer func() {
		if rec := recover(); rec != nil {
			r = reduction{err: apierrors.NewComputationError(def.ID, fmt.Sprintf("panic: %v", rec), nil)}
		}
	}()

	out, err := def.Reduce(ds, e.params)
	if err != nil {
		var compErr *apierrors.ComputationError
		if !errors.As(err, &compErr) {
			err = apierrors.NewComputationError(def.ID, "reducer failed", err)
		}
		return reduction{err: err}
	}

	r = reduction{out: out}
	if out.Trend != nil {
		r.trend = *out.Trend
		return r
	}

	months := ds.Months()
	if len(months) < 2 {
		return r
	}
	latest, lerr := def.Reduce(ds.Month(months[len(months)-1]), e.params)
	previous, perr := def.Reduce(ds.Month(months[len(months)-2]), e.params)
	if lerr == nil && perr == nil {
		r.trend = indices.Trend(previous.Value, latest.Value)
	}
	return r
}
