package domain

import (
	"time"
)

// Dimension is the analytical dimension an index belongs to
type Dimension string

const (
	DimensionScaleGrowth           Dimension = "scale_growth"
	DimensionStructureEntity       Dimension = "structure_entity"
	DimensionTimeSpace             Dimension = "time_space"
	DimensionEfficiencyQuality     Dimension = "efficiency_quality"
	DimensionInnovationIntegration Dimension = "innovation_integration"
)

// Label returns the display name of the dimension
func (d Dimension) Label() string {
	switch d {
	case DimensionScaleGrowth:
		return "Scale & Growth"
	case DimensionStructureEntity:
		return "Structure & Entity"
	case DimensionTimeSpace:
		return "Time & Space"
	case DimensionEfficiencyQuality:
		return "Efficiency & Quality"
	case DimensionInnovationIntegration:
		return "Innovation & Integration"
	default:
		return "Unknown"
	}
}

// KeyMetric is a supporting label/value pair shown next to an index
type KeyMetric struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// IndexResult is the render-ready output of one reducer for one run
type IndexResult struct {
	ID             string       `json:"id"`
	Title          string       `json:"title"`
	Dimension      Dimension    `json:"dimension"`
	Value          float64      `json:"value"`
	Unit           string       `json:"unit"`
	Trend          float64      `json:"trend"`
	Chart          ChartPayload `json:"chart"`
	KeyMetrics     []KeyMetric  `json:"key_metrics"`
	FormulaVersion string       `json:"formula_version"`
}

// Failure kinds for indices absent from a run
const (
	FailureComputation = "computation"
	FailureOutputShape = "output_shape"
	FailureTimeout     = "timeout"
)

// IndexFailure reports an index that was omitted from a run and why
type IndexFailure struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// Ledger entry statuses
const (
	LedgerStatusOK      = "ok"
	LedgerStatusCached  = "cached"
	LedgerStatusFailed  = "failed"
	LedgerStatusTimeout = "timeout"
)

// LedgerEntry is the audit record of one index computation
type LedgerEntry struct {
	RunID          string        `json:"run_id"`
	IndexID        string        `json:"index_id"`
	Status         string        `json:"status"`
	Duration       time.Duration `json:"duration"`
	Warnings       []string      `json:"warnings"`
	Fingerprint    string        `json:"fingerprint"`
	FormulaVersion string        `json:"formula_version"`
	Error          string        `json:"error,omitempty"`
	RecordedAt     time.Time     `json:"recorded_at"`
}
