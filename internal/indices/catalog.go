// Package indices declares the index catalogue and implements one pure
// reducer per index. Reducers read a validated dataset and never mutate it.
package indices

import (
	"fmt"
	"time"

	"github.com/LASER-IDEA/white-paper-sub000/internal/chart"
	"github.com/LASER-IDEA/white-paper-sub000/internal/dataset"
	"github.com/LASER-IDEA/white-paper-sub000/pkg/contracts/domain"
)

// FormulaVersion is bumped whenever any reducer's formula changes
const FormulaVersion = "v1"

// Params are the run-level settings reducers may read
type Params struct {
	// BaseStart and BaseEnd bound the traffic index base period; zero means open
	BaseStart time.Time
	BaseEnd   time.Time
	// ConcentrationN lists the N of the CR-N ratios, ascending
	ConcentrationN []int
	// ParetoThreshold is the cumulative share the Pareto headline reports against
	ParetoThreshold float64
	// RankingLimit truncates ranked tables; 0 keeps every row
	RankingLimit int
}

// DefaultParams returns the whole dataset as base period, CR-1/10/50 and an 80% Pareto line
func DefaultParams() Params {
	return Params{
		ConcentrationN:  []int{1, 10, 50},
		ParetoThreshold: 0.8,
		RankingLimit:    50,
	}
}

// CacheKey renders the parameters into a stable string for result caching
func (p Params) CacheKey() string {
	return fmt.Sprintf("base=%s..%s;cr=%v;pareto=%g;limit=%d",
		formatDay(p.BaseStart), formatDay(p.BaseEnd), p.ConcentrationN, p.ParetoThreshold, p.RankingLimit)
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return "*"
	}
	return t.Format("2006-01-02")
}

// Output is what a reducer produces before chart adaptation
type Output struct {
	Value      float64
	Raw        chart.Raw
	KeyMetrics []domain.KeyMetric
	Warnings   []string
	// Trend, when set, overrides the month-over-month trend the engine derives
	Trend *float64
}

// Reducer computes one index from a validated dataset
type Reducer func(ds *dataset.Dataset, p Params) (Output, error)

// Definition declares one index: identity, presentation and its reducer
type Definition struct {
	ID             string
	Title          string
	Dimension      domain.Dimension
	Unit           string
	Shape          domain.ChartShape
	SortDescending bool
	FormulaVersion string
	Reduce         Reducer
}

// ChartOptions returns the adapter options declared for this index
func (d Definition) ChartOptions(p Params) chart.Options {
	opts := chart.Options{SortDescending: d.SortDescending}
	if d.Shape == domain.ShapeRankedTable {
		opts.Limit = p.RankingLimit
	}
	return opts
}

// Catalog returns every index definition in output order
func Catalog() []Definition {
	out := make([]Definition, len(catalog))
	copy(out, catalog)
	return out
}

func definitions() []Definition {
	return []Definition{
		// Scale & Growth
		{ID: "traffic_index", Title: "Traffic Index", Dimension: domain.DimensionScaleGrowth, Unit: "index", Shape: domain.ShapeTimeSeries, Reduce: TrafficIndex},
		{ID: "sortie_volume", Title: "Sortie Volume", Dimension: domain.DimensionScaleGrowth, Unit: "sorties", Shape: domain.ShapeTimeSeries, Reduce: SortieVolume},
		{ID: "flight_hours", Title: "Flight Hours", Dimension: domain.DimensionScaleGrowth, Unit: "hours", Shape: domain.ShapeTimeSeries, Reduce: FlightHours},
		{ID: "entity_growth", Title: "Active Entities", Dimension: domain.DimensionScaleGrowth, Unit: "entities", Shape: domain.ShapeTimeSeries, Reduce: EntityGrowth},

		// Structure & Entity
		{ID: "fleet_diversity", Title: "Fleet Diversity", Dimension: domain.DimensionStructureEntity, Unit: "simpson", Shape: domain.ShapeCategorical, Reduce: FleetDiversity},
		{ID: "market_balance", Title: "Market Balance", Dimension: domain.DimensionStructureEntity, Unit: "ratio", Shape: domain.ShapeCategorical, SortDescending: true, Reduce: MarketBalance},
		{ID: "concentration_ratio", Title: "Market Concentration (CR-10)", Dimension: domain.DimensionStructureEntity, Unit: "share", Shape: domain.ShapeCategorical, SortDescending: true, Reduce: ConcentrationRatio},
		{ID: "pareto_cumulative", Title: "Pareto Concentration", Dimension: domain.DimensionStructureEntity, Unit: "share", Shape: domain.ShapeCategorical, Reduce: ParetoCumulative},
		{ID: "user_type_mix", Title: "User Type Mix", Dimension: domain.DimensionStructureEntity, Unit: "share", Shape: domain.ShapeCategorical, Reduce: UserTypeMix},
		{ID: "entity_ranking", Title: "Entity Ranking", Dimension: domain.DimensionStructureEntity, Unit: "entities", Shape: domain.ShapeRankedTable, Reduce: EntityRanking},

		// Time & Space
		{ID: "temporal_entropy", Title: "Temporal Entropy", Dimension: domain.DimensionTimeSpace, Unit: "nats", Shape: domain.ShapeCategorical, Reduce: TemporalEntropy},
		{ID: "night_share", Title: "Night Operations Share", Dimension: domain.DimensionTimeSpace, Unit: "share", Shape: domain.ShapeCategorical, Reduce: NightShare},
		{ID: "seasonal_stability", Title: "Seasonal Stability", Dimension: domain.DimensionTimeSpace, Unit: "ratio", Shape: domain.ShapeTimeSeries, Reduce: SeasonalStability},
		{ID: "spatial_balance", Title: "Spatial Balance", Dimension: domain.DimensionTimeSpace, Unit: "ratio", Shape: domain.ShapeCategorical, Reduce: SpatialBalance},
		{ID: "region_weekday_heatmap", Title: "Regional Weekly Activity", Dimension: domain.DimensionTimeSpace, Unit: "share", Shape: domain.ShapeMatrix, Reduce: RegionWeekdayHeatmap},
		{ID: "weekday_weekend_ratio", Title: "Weekday/Weekend Ratio", Dimension: domain.DimensionTimeSpace, Unit: "ratio", Shape: domain.ShapeCategorical, Reduce: WeekdayWeekendRatio},

		// Efficiency & Quality
		{ID: "average_range", Title: "Average Flight Range", Dimension: domain.DimensionEfficiencyQuality, Unit: "km", Shape: domain.ShapeBoxPlot, Reduce: AverageRange},
		{ID: "average_duration", Title: "Average Flight Duration", Dimension: domain.DimensionEfficiencyQuality, Unit: "min", Shape: domain.ShapeBoxPlot, Reduce: AverageDuration},
		{ID: "altitude_utilization", Title: "Airspace Layer Utilization", Dimension: domain.DimensionEfficiencyQuality, Unit: "simpson", Shape: domain.ShapeCategorical, Reduce: AltitudeUtilization},
		{ID: "data_completeness", Title: "Data Completeness", Dimension: domain.DimensionEfficiencyQuality, Unit: "ratio", Shape: domain.ShapeCategorical, Reduce: DataCompleteness},

		// Innovation & Integration
		{ID: "regional_network", Title: "Regional Network Density", Dimension: domain.DimensionInnovationIntegration, Unit: "density", Shape: domain.ShapeGraph, Reduce: RegionalNetwork},
		{ID: "cross_region_integration", Title: "Cross-Region Operators", Dimension: domain.DimensionInnovationIntegration, Unit: "share", Shape: domain.ShapeRankedTable, Reduce: CrossRegionIntegration},
	}
}

func init() {
	seen := make(map[string]bool)
	for _, d := range catalog {
		if seen[d.ID] {
			panic("duplicate index id " + d.ID)
		}
		seen[d.ID] = true
	}
}

var catalog = withVersion(definitions())

func withVersion(defs []Definition) []Definition {
	for i := range defs {
		if defs[i].FormulaVersion == "" {
			defs[i].FormulaVersion = FormulaVersion
		}
	}
	return defs
}

// Lookup returns the definition of an index id
func Lookup(id string) (Definition, bool) {
	for _, d := range catalog {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}
