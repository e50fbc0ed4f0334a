package indices

import (
	"github.com/LASER-IDEA/white-paper-sub000/internal/chart"
	"github.com/LASER-IDEA/white-paper-sub000/internal/dataset"
	"github.com/LASER-IDEA/white-paper-sub000/internal/stats"
	"github.com/LASER-IDEA/white-paper-sub000/pkg/contracts/domain"
)

// TrafficIndex scores each month's average daily sorties against the base
// period average, ×100. The headline is the latest month.
func TrafficIndex(ds *dataset.Dataset, p Params) (Output, error) {
	base := ds
	if !p.BaseStart.IsZero() || !p.BaseEnd.IsZero() {
		base = ds.Between(p.BaseStart, p.BaseEnd)
	}
	baseAvg := averageDailySorties(base)

	out := Output{Raw: chart.Series{Points: []domain.SeriesPoint{}}}
	if ds.Len() == 0 {
		out.Trend = seriesTrend(nil)
		return out, nil
	}
	if baseAvg == 0 {
		out.Warnings = append(out.Warnings, "base period has no sorties; index set to 0")
		out.KeyMetrics = []domain.KeyMetric{metric("base_daily_sorties", 0, "sorties/day")}
		out.Trend = seriesTrend(nil)
		return out, nil
	}

	months := ds.Months()
	points := make([]domain.SeriesPoint, len(months))
	for i, m := range months {
		avg := averageDailySorties(ds.Month(m))
		points[i] = domain.SeriesPoint{Period: m, Value: avg / baseAvg * 100}
	}

	out.Raw = chart.Series{Points: points}
	out.Value = points[len(points)-1].Value
	out.Trend = seriesTrend(points)
	out.KeyMetrics = []domain.KeyMetric{
		metric("whole_period_index", averageDailySorties(ds)/baseAvg*100, "index"),
		metric("base_daily_sorties", baseAvg, "sorties/day"),
		metric("months", float64(len(months)), "months"),
	}
	return out, nil
}

// SortieVolume totals sorties, with a monthly series
func SortieVolume(ds *dataset.Dataset, p Params) (Output, error) {
	points := monthly(ds, sorties)
	total := float64(ds.TotalSorties())

	avgMonthly := 0.0
	if len(points) > 0 {
		avgMonthly = total / float64(len(points))
	}
	peak := 0.0
	for _, pt := range points {
		if pt.Value > peak {
			peak = pt.Value
		}
	}

	return Output{
		Value: total,
		Raw:   chart.Series{Points: points},
		KeyMetrics: []domain.KeyMetric{
			metric("average_monthly_sorties", avgMonthly, "sorties"),
			metric("peak_month_sorties", peak, "sorties"),
			metric("records", float64(ds.Len()), "rows"),
		},
	}, nil
}

// FlightHours totals duration × sorties in hours, with a monthly series
func FlightHours(ds *dataset.Dataset, p Params) (Output, error) {
	hours := func(r domain.FlightRecord) float64 {
		return r.Duration * float64(r.Sorties) / 60
	}
	points := monthly(ds, hours)

	values := make([]float64, len(points))
	for i, pt := range points {
		values[i] = pt.Value
	}
	total := stats.Sum(values)

	perSortie := 0.0
	if n := ds.TotalSorties(); n > 0 {
		perSortie = total / float64(n)
	}

	return Output{
		Value: total,
		Raw:   chart.Series{Points: points},
		KeyMetrics: []domain.KeyMetric{
			metric("average_monthly_hours", stats.Mean(values), "hours"),
			metric("hours_per_sortie", perSortie, "hours"),
		},
	}, nil
}

// EntityGrowth counts distinct active entities per month; the headline is the
// latest month
func EntityGrowth(ds *dataset.Dataset, p Params) (Output, error) {
	active := make(map[string]map[string]struct{})
	all := make(map[string]struct{})
	for _, r := range ds.Records() {
		m := r.Month()
		if active[m] == nil {
			active[m] = make(map[string]struct{})
		}
		active[m][r.Entity] = struct{}{}
		all[r.Entity] = struct{}{}
	}

	months := ds.Months()
	points := make([]domain.SeriesPoint, len(months))
	for i, m := range months {
		points[i] = domain.SeriesPoint{Period: m, Value: float64(len(active[m]))}
	}

	out := Output{
		Raw:   chart.Series{Points: points},
		Trend: seriesTrend(points),
		KeyMetrics: []domain.KeyMetric{
			metric("total_entities", float64(len(all)), "entities"),
		},
	}
	if len(points) > 0 {
		out.Value = points[len(points)-1].Value
		out.KeyMetrics = append(out.KeyMetrics,
			metric("growth_since_first_month", Trend(points[0].Value, out.Value), "ratio"))
	}
	return out, nil
}
