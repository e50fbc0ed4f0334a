package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/LASER-IDEA/white-paper-sub000/internal/engine"
	"github.com/LASER-IDEA/white-paper-sub000/internal/indices"
	"github.com/LASER-IDEA/white-paper-sub000/internal/schema"
	"github.com/LASER-IDEA/white-paper-sub000/pkg/contracts/domain"
)

const dateLayout = "2006-01-02"

// ComputeRequest holds the per-run overrides accepted on the query string
type ComputeRequest struct {
	BaseStart    string `query:"base_start" validate:"omitempty,datetime=2006-01-02"`
	BaseEnd      string `query:"base_end" validate:"omitempty,datetime=2006-01-02"`
	RankingLimit *int   `query:"ranking_limit" validate:"omitempty,gte=0,lte=1000"`
}

// DescribeRequest names one catalogue entry
type DescribeRequest struct {
	IndexID string `json:"index_id" validate:"required,index_id"`
}

// CatalogEntry describes one declared index without its reducer
type CatalogEntry struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Dimension      domain.Dimension  `json:"dimension"`
	DimensionLabel string            `json:"dimension_label"`
	Unit           string            `json:"unit"`
	Shape          domain.ChartShape `json:"shape"`
	FormulaVersion string            `json:"formula_version"`
}

// IndexService runs the engine for API requests
type IndexService struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewIndexService creates an index service over eng
func NewIndexService(eng *engine.Engine, logger *slog.Logger) *IndexService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexService{
		engine: eng,
		logger: logger.With(slog.String("service", "index")),
	}
}

// Compute runs every index over raw with the request's overrides applied
func (s *IndexService) Compute(ctx context.Context, raw schema.RawTable, req ComputeRequest) (*engine.RunResult, error) {
	params, err := s.paramsFor(req)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "computing indices",
		slog.Int("rows", raw.Len()),
		slog.Int("columns", len(raw.Columns)),
		slog.String("params", params.CacheKey()))

	return s.engine.WithRunParams(params).Run(ctx, raw)
}

// Catalog lists the indices the engine computes, in output order
func (s *IndexService) Catalog() []CatalogEntry {
	defs := s.engine.Definitions()
	out := make([]CatalogEntry, 0, len(defs))
	for _, d := range defs {
		out = append(out, catalogEntry(d))
	}
	return out
}

// Lookup returns the catalogue entry for id
func (s *IndexService) Lookup(id string) (CatalogEntry, error) {
	for _, d := range s.engine.Definitions() {
		if d.ID == id {
			return catalogEntry(d), nil
		}
	}
	return CatalogEntry{}, fmt.Errorf("%w: %s", ErrIndexNotFound, id)
}

func (s *IndexService) paramsFor(req ComputeRequest) (indices.Params, error) {
	params := s.engine.Params()

	if req.BaseStart != "" {
		start, err := time.Parse(dateLayout, req.BaseStart)
		if err != nil {
			return params, fmt.Errorf("invalid base_start: %w", err)
		}
		params.BaseStart = start
	}
	if req.BaseEnd != "" {
		end, err := time.Parse(dateLayout, req.BaseEnd)
		if err != nil {
			return params, fmt.Errorf("invalid base_end: %w", err)
		}
		params.BaseEnd = end
	}
	if !params.BaseStart.IsZero() && !params.BaseEnd.IsZero() && params.BaseEnd.Before(params.BaseStart) {
		return params, ErrInvalidBasePeriod
	}
	if req.RankingLimit != nil {
		params.RankingLimit = *req.RankingLimit
	}
	return params, nil
}

func catalogEntry(d indices.Definition) CatalogEntry {
	return CatalogEntry{
		ID:             d.ID,
		Title:          d.Title,
		Dimension:      d.Dimension,
		DimensionLabel: d.Dimension.Label(),
		Unit:           d.Unit,
		Shape:          d.Shape,
		FormulaVersion: d.FormulaVersion,
	}
}
