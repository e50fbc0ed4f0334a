package indices

import (
	"fmt"
	"math"
	"time"

	"github.com/LASER-IDEA/white-paper-sub000/internal/chart"
	"github.com/LASER-IDEA/white-paper-sub000/internal/dataset"
	"github.com/LASER-IDEA/white-paper-sub000/internal/stats"
	"github.com/LASER-IDEA/white-paper-sub000/pkg/contracts/domain"
)

const hoursPerDay = 24

func hourlySorties(ds *dataset.Dataset) []float64 {
	bins := make([]float64, hoursPerDay)
	for _, r := range ds.Records() {
		if r.Hour >= 0 && r.Hour < hoursPerDay {
			bins[r.Hour] += float64(r.Sorties)
		}
	}
	return bins
}

// defaultHourWarning flags reducers whose input relies on the default hour policy
func defaultHourWarning(ds *dataset.Dataset) []string {
	report := ds.Report()
	if report == nil || report.DefaultedHour == 0 {
		return nil
	}
	return []string{fmt.Sprintf("%d records carry the default hour %d", report.DefaultedHour, report.DefaultHour)}
}

// TemporalEntropy is the Shannon entropy of sorties over the 24 hourly bins
func TemporalEntropy(ds *dataset.Dataset, p Params) (Output, error) {
	bins := hourlySorties(ds)

	rows := make([]domain.CategoryValue, hoursPerDay)
	peak := 0
	for h, v := range bins {
		rows[h] = domain.CategoryValue{Category: fmt.Sprintf("%02d", h), Value: v}
		if v > bins[peak] {
			peak = h
		}
	}

	entropy := stats.Shannon(bins)
	return Output{
		Value: entropy,
		Raw:   chart.Table{Rows: rows},
		KeyMetrics: []domain.KeyMetric{
			metric("normalized_entropy", entropy/math.Log(hoursPerDay), "ratio"),
			metric("peak_hour", float64(peak), "hour"),
			metric("max_entropy", math.Log(hoursPerDay), "nats"),
		},
		Warnings: defaultHourWarning(ds),
	}, nil
}

// IsNightHour reports whether an hour falls in [19,24) or [0,6]
func IsNightHour(hour int) bool {
	return hour >= 19 || hour <= 6
}

// NightShare is the fraction of sorties flown at night
func NightShare(ds *dataset.Dataset, p Params) (Output, error) {
	var night, total float64
	for _, r := range ds.Records() {
		total += float64(r.Sorties)
		if IsNightHour(r.Hour) {
			night += float64(r.Sorties)
		}
	}

	value := share(night, total)
	return Output{
		Value: value,
		Raw: chart.Table{Rows: []domain.CategoryValue{
			{Category: "day", Value: total - night},
			{Category: "night", Value: night},
		}},
		KeyMetrics: []domain.KeyMetric{
			metric("night_sorties", night, "sorties"),
			metric("day_share", share(total-night, total), "share"),
		},
		Warnings: defaultHourWarning(ds),
	}, nil
}

// SeasonalStability is max(0, 1 − CV) over monthly sortie totals
func SeasonalStability(ds *dataset.Dataset, p Params) (Output, error) {
	points := monthly(ds, sorties)
	out := Output{Raw: chart.Series{Points: points}}
	if len(points) == 0 {
		return out, nil
	}

	totals := make([]float64, len(points))
	for i, pt := range points {
		totals[i] = pt.Value
	}
	cv := stats.CoefficientOfVariation(totals)
	out.Value = math.Max(0, 1-cv)
	out.KeyMetrics = []domain.KeyMetric{
		metric("coefficient_of_variation", cv, "ratio"),
		metric("months", float64(len(points)), "months"),
	}
	if len(points) < 2 {
		out.Warnings = append(out.Warnings, "fewer than two months of data")
	}
	return out, nil
}

// SpatialBalance is the Shannon entropy over regions normalized by ln N
func SpatialBalance(ds *dataset.Dataset, p Params) (Output, error) {
	regions := sortiesBy(ds, byRegion)
	volumes := regions.volumes()

	return Output{
		Value: stats.NormalizedShannon(volumes),
		Raw:   chart.Table{Rows: regions.categories()},
		KeyMetrics: []domain.KeyMetric{
			metric("region_count", float64(len(volumes)), "regions"),
			metric("entropy", stats.Shannon(volumes), "nats"),
		},
	}, nil
}

var weekdayOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

func weekdayLabels() []string {
	labels := make([]string, len(weekdayOrder))
	for i, wd := range weekdayOrder {
		labels[i] = wd.String()[:3]
	}
	return labels
}

// RegionWeekdayHeatmap spreads sorties over region × weekday. The headline is
// the share of sorties in the busiest cell.
func RegionWeekdayHeatmap(ds *dataset.Dataset, p Params) (Output, error) {
	type key struct {
		region  string
		weekday time.Weekday
	}
	counts := make(map[key]float64)
	var regionOrder []string
	seen := make(map[string]bool)
	total := 0.0
	for _, r := range ds.Records() {
		if !seen[r.Region] {
			seen[r.Region] = true
			regionOrder = append(regionOrder, r.Region)
		}
		counts[key{r.Region, r.Timestamp.Weekday()}] += float64(r.Sorties)
		total += float64(r.Sorties)
	}

	var cells []domain.MatrixCell
	peak := 0.0
	for _, region := range regionOrder {
		for _, wd := range weekdayOrder {
			v, ok := counts[key{region, wd}]
			if !ok {
				continue
			}
			cells = append(cells, domain.MatrixCell{Row: region, Column: wd.String()[:3], Value: v})
			peak = math.Max(peak, v)
		}
	}

	return Output{
		Value: share(peak, total),
		Raw: chart.Matrix{
			RowOrder:    regionOrder,
			ColumnOrder: weekdayLabels(),
			Cells:       cells,
		},
		KeyMetrics: []domain.KeyMetric{
			metric("peak_cell_sorties", peak, "sorties"),
			metric("regions", float64(len(regionOrder)), "regions"),
		},
	}, nil
}

// WeekdayWeekendRatio divides average daily sorties on weekdays by the weekend average
func WeekdayWeekendRatio(ds *dataset.Dataset, p Params) (Output, error) {
	weekend := ds.Filter(domain.FlightRecord.IsWeekend)
	weekday := ds.Filter(func(r domain.FlightRecord) bool { return !r.IsWeekend() })
	weekdayAvg := averageDailySorties(weekday)
	weekendAvg := averageDailySorties(weekend)

	out := Output{
		Raw: chart.Table{Rows: []domain.CategoryValue{
			{Category: "weekday", Value: weekdayAvg},
			{Category: "weekend", Value: weekendAvg},
		}},
		KeyMetrics: []domain.KeyMetric{
			metric("weekday_daily_sorties", weekdayAvg, "sorties/day"),
			metric("weekend_daily_sorties", weekendAvg, "sorties/day"),
		},
	}
	if weekendAvg == 0 {
		if ds.Len() > 0 {
			out.Warnings = append(out.Warnings, "no weekend activity; ratio set to 0")
		}
		return out, nil
	}
	out.Value = weekdayAvg / weekendAvg
	return out, nil
}
