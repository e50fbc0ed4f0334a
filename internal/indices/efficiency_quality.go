package indices

import (
	"sort"

	"github.com/LASER-IDEA/white-paper-sub000/internal/chart"
	"github.com/LASER-IDEA/white-paper-sub000/internal/dataset"
	"github.com/LASER-IDEA/white-paper-sub000/internal/quality"
	"github.com/LASER-IDEA/white-paper-sub000/internal/stats"
	"github.com/LASER-IDEA/white-paper-sub000/pkg/contracts/domain"
)

// weightedAverage reduces a per-flight measure to its sortie-weighted mean,
// with per-region samples for the distribution chart
func weightedAverage(ds *dataset.Dataset, measure func(domain.FlightRecord) float64, unit string) Output {
	records := ds.Records()
	values := make([]float64, len(records))
	weights := make([]float64, len(records))

	samples := make(map[string][]float64)
	var order []string
	for i, r := range records {
		values[i] = measure(r)
		weights[i] = float64(r.Sorties)
		if _, ok := samples[r.Region]; !ok {
			order = append(order, r.Region)
		}
		samples[r.Region] = append(samples[r.Region], values[i])
	}

	groups := make([]chart.SampleGroup, len(order))
	for i, region := range order {
		groups[i] = chart.SampleGroup{Category: region, Values: samples[region]}
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	return Output{
		Value: stats.WeightedMean(values, weights),
		Raw:   chart.Samples{Groups: groups},
		KeyMetrics: []domain.KeyMetric{
			metric("median", stats.Quantile(sorted, 0.5), unit),
			metric("p90", stats.Quantile(sorted, 0.9), unit),
			metric("unweighted_mean", stats.Mean(values), unit),
		},
	}
}

// AverageRange is the sortie-weighted mean flight distance
func AverageRange(ds *dataset.Dataset, p Params) (Output, error) {
	out := weightedAverage(ds, func(r domain.FlightRecord) float64 { return r.Distance }, "km")
	if imp, ok := ds.Report().Imputed[domain.FieldDistance]; ok && imp.Count > 0 {
		out.Warnings = append(out.Warnings, "includes median-imputed distances")
	}
	return out, nil
}

// AverageDuration is the sortie-weighted mean flight duration
func AverageDuration(ds *dataset.Dataset, p Params) (Output, error) {
	out := weightedAverage(ds, func(r domain.FlightRecord) float64 { return r.Duration }, "min")
	if imp, ok := ds.Report().Imputed[domain.FieldDuration]; ok && imp.Count > 0 {
		out.Warnings = append(out.Warnings, "includes median-imputed durations")
	}
	return out, nil
}

// AltitudeUtilization is the Simpson index over altitude bands
func AltitudeUtilization(ds *dataset.Dataset, p Params) (Output, error) {
	bands := sortiesBy(ds, func(r domain.FlightRecord) string { return r.AltitudeBand })

	rows := bands.categories()
	numeric := ds.Len() > 0 && ds.Records()[0].AltitudeNumeric
	if numeric {
		rows = make([]domain.CategoryValue, len(quality.AltitudeBands))
		for i, b := range quality.AltitudeBands {
			rows[i] = domain.CategoryValue{Category: b, Value: bands.values[b]}
		}
	}

	out := Output{
		Value: stats.Simpson(bands.volumes()),
		Raw:   chart.Table{Rows: rows},
		KeyMetrics: []domain.KeyMetric{
			metric("bands_used", float64(len(bands.order)), "bands"),
		},
	}
	if len(bands.order) == 1 && bands.order[0] == domain.Unknown {
		out.Warnings = append(out.Warnings, "no altitude information; utilization is 0")
	}
	return out, nil
}

// DataCompleteness scores the input as valid/total × (1 − imputed/(valid × 2)),
// counting imputed duration and distance cells
func DataCompleteness(ds *dataset.Dataset, p Params) (Output, error) {
	report := ds.Report()
	total := float64(report.TotalRows)
	valid := float64(report.ValidRows)
	imputed := float64(report.Imputed[domain.FieldDuration].Count + report.Imputed[domain.FieldDistance].Count)

	out := Output{
		Raw: chart.Table{Rows: []domain.CategoryValue{
			{Category: "valid_rows", Value: valid},
			{Category: "dropped_rows", Value: total - valid},
			{Category: "imputed_cells", Value: imputed},
		}},
		KeyMetrics: []domain.KeyMetric{
			metric("total_rows", total, "rows"),
			metric("valid_share", share(valid, total), "share"),
		},
	}
	if total == 0 || valid == 0 {
		return out, nil
	}
	out.Value = stats.Clamp(valid/total*(1-imputed/(valid*2)), 0, 1)
	return out, nil
}
