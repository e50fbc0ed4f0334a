package indices

import (
	"fmt"
	"math"

	"github.com/LASER-IDEA/white-paper-sub000/internal/chart"
	"github.com/LASER-IDEA/white-paper-sub000/internal/dataset"
	"github.com/LASER-IDEA/white-paper-sub000/internal/stats"
	"github.com/LASER-IDEA/white-paper-sub000/pkg/contracts/domain"
)

// FleetDiversity is the Simpson index 1 − Σ share² over aircraft models
func FleetDiversity(ds *dataset.Dataset, p Params) (Output, error) {
	models := sortiesBy(ds, byAircraft)
	volumes := models.volumes()

	out := Output{
		Value: stats.Simpson(volumes),
		Raw:   chart.Table{Rows: models.categories()},
		KeyMetrics: []domain.KeyMetric{
			metric("model_count", float64(len(volumes)), "models"),
		},
	}
	if top := models.descending(); len(top) > 0 && models.total() > 0 {
		out.KeyMetrics = append(out.KeyMetrics, metric("top_model_share", top[0].Value/models.total(), "share"))
	}
	if len(volumes) == 1 && models.order[0] == domain.Unknown {
		out.Warnings = append(out.Warnings, "no aircraft model information; diversity is 0")
	}
	return out, nil
}

// MarketBalance is 1 − Gini over entity sortie volumes
func MarketBalance(ds *dataset.Dataset, p Params) (Output, error) {
	entities := sortiesBy(ds, byEntity)
	regions := sortiesBy(ds, byRegion)

	out := Output{Raw: chart.Table{Rows: entities.categories()}}
	if entities.total() == 0 {
		return out, nil
	}

	gini := stats.Gini(entities.volumes())
	out.Value = 1 - gini
	out.KeyMetrics = []domain.KeyMetric{
		metric("gini", gini, "ratio"),
		metric("entity_count", float64(len(entities.order)), "entities"),
		metric("regional_balance", 1-stats.Gini(regions.volumes()), "ratio"),
	}
	return out, nil
}

const headlineConcentrationN = 10

// ConcentrationRatio reports CR-N, the combined share of the top N entities.
// The headline is CR-10.
func ConcentrationRatio(ds *dataset.Dataset, p Params) (Output, error) {
	entities := sortiesBy(ds, byEntity)
	ranked := entities.descending()
	total := entities.total()

	ns := p.ConcentrationN
	if len(ns) == 0 {
		ns = DefaultParams().ConcentrationN
	}
	maxN := 0
	for _, n := range ns {
		if n > maxN {
			maxN = n
		}
	}

	// bars cover the entities that can enter any configured ratio
	shown := ranked
	if len(shown) > maxN {
		shown = shown[:maxN]
	}
	bars := make([]domain.CategoryValue, len(shown))
	for i, e := range shown {
		bars[i] = domain.CategoryValue{Category: e.Category, Value: share(e.Value, total)}
	}

	out := Output{
		Value: concentration(ranked, total, headlineConcentrationN),
		Raw:   chart.Table{Rows: bars},
	}
	for _, n := range ns {
		out.KeyMetrics = append(out.KeyMetrics, metric(fmt.Sprintf("cr_%d", n), concentration(ranked, total, n), "share"))
	}
	return out, nil
}

// concentration sums the shares of the first n ranked entities, capped at 1
func concentration(ranked []domain.CategoryValue, total float64, n int) float64 {
	if total == 0 || n <= 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n && i < len(ranked); i++ {
		sum += ranked[i].Value
	}
	return math.Min(sum/total, 1)
}

// ParetoCumulative is the running cumulative share of entities sorted by
// volume. The headline is the fraction of entities needed to reach the
// threshold share.
func ParetoCumulative(ds *dataset.Dataset, p Params) (Output, error) {
	entities := sortiesBy(ds, byEntity)
	ranked := entities.descending()
	total := entities.total()

	threshold := p.ParetoThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultParams().ParetoThreshold
	}

	rows := make([]domain.CategoryValue, len(ranked))
	running := 0.0
	reached := 0
	for i, e := range ranked {
		running += e.Value
		cum := math.Min(share(running, total), 1)
		rows[i] = domain.CategoryValue{Category: e.Category, Value: cum}
		if reached == 0 && cum >= threshold-1e-12 {
			reached = i + 1
		}
	}
	// absorb floating drift so the curve ends exactly at 1
	if n := len(rows); n > 0 && total > 0 {
		rows[n-1].Value = 1
	}

	out := Output{Raw: chart.Table{Rows: rows}}
	if len(ranked) == 0 || total == 0 {
		return out, nil
	}
	if reached == 0 {
		reached = len(ranked)
	}

	topFifth := int(math.Ceil(float64(len(ranked)) * 0.2))
	out.Value = float64(reached) / float64(len(ranked))
	out.KeyMetrics = []domain.KeyMetric{
		metric("entities_to_threshold", float64(reached), "entities"),
		metric("threshold", threshold, "share"),
		metric("top_20pct_share", rows[topFifth-1].Value, "share"),
	}
	return out, nil
}

var userTypeOrder = []string{
	domain.UserTypeEnterprise,
	domain.UserTypePersonal,
	domain.UserTypeGovernment,
	domain.UserTypeOther,
}

// UserTypeMix is the sortie share per user type; the headline is the enterprise share
func UserTypeMix(ds *dataset.Dataset, p Params) (Output, error) {
	types := sortiesBy(ds, func(r domain.FlightRecord) string { return r.UserType })
	total := types.total()

	order := userTypeOrder
	if _, ok := types.values[domain.Unknown]; ok {
		order = append(append([]string{}, userTypeOrder...), domain.Unknown)
	}
	rows := make([]domain.CategoryValue, len(order))
	for i, ut := range order {
		rows[i] = domain.CategoryValue{Category: ut, Value: share(types.values[ut], total)}
	}

	out := Output{
		Value: share(types.values[domain.UserTypeEnterprise], total),
		Raw:   chart.Table{Rows: rows},
		KeyMetrics: []domain.KeyMetric{
			metric("personal_share", share(types.values[domain.UserTypePersonal], total), "share"),
			metric("government_share", share(types.values[domain.UserTypeGovernment], total), "share"),
		},
	}
	if ds.Len() > 0 && share(types.values[domain.Unknown], total) == 1 {
		out.Warnings = append(out.Warnings, "no user type information")
	}
	return out, nil
}

// EntityRanking ranks entities by sortie volume; the headline is the number of
// active entities
func EntityRanking(ds *dataset.Dataset, p Params) (Output, error) {
	entities := sortiesBy(ds, byEntity)
	ranked := entities.descending()

	out := Output{
		Value: float64(len(ranked)),
		Raw:   chart.Ranking{Items: entities.categories()},
	}
	if len(ranked) > 0 {
		out.KeyMetrics = []domain.KeyMetric{
			metric("top_entity_sorties", ranked[0].Value, "sorties"),
			metric("top_entity_share", share(ranked[0].Value, entities.total()), "share"),
		}
	}
	return out, nil
}

func share(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return part / total
}
