package indices

import (
	"sort"

	"github.com/LASER-IDEA/white-paper-sub000/internal/dataset"
	"github.com/LASER-IDEA/white-paper-sub000/pkg/contracts/domain"
)

// grouped is a keyed aggregate that remembers first-appearance order
type grouped struct {
	order  []string
	values map[string]float64
}

func newGrouped() *grouped {
	return &grouped{values: make(map[string]float64)}
}

func (g *grouped) add(key string, v float64) {
	if _, ok := g.values[key]; !ok {
		g.order = append(g.order, key)
	}
	g.values[key] += v
}

// volumes returns the aggregated values in first-appearance order
func (g *grouped) volumes() []float64 {
	out := make([]float64, len(g.order))
	for i, k := range g.order {
		out[i] = g.values[k]
	}
	return out
}

func (g *grouped) total() float64 {
	sum := 0.0
	for _, v := range g.values {
		sum += v
	}
	return sum
}

// categories returns {key, value} pairs in first-appearance order
func (g *grouped) categories() []domain.CategoryValue {
	out := make([]domain.CategoryValue, len(g.order))
	for i, k := range g.order {
		out[i] = domain.CategoryValue{Category: k, Value: g.values[k]}
	}
	return out
}

// descending returns the pairs sorted by value, ties kept in first-appearance order
func (g *grouped) descending() []domain.CategoryValue {
	out := g.categories()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Value > out[j].Value
	})
	return out
}

// sortiesBy sums sorties per key
func sortiesBy(ds *dataset.Dataset, key func(domain.FlightRecord) string) *grouped {
	g := newGrouped()
	for _, r := range ds.Records() {
		g.add(key(r), float64(r.Sorties))
	}
	return g
}

func byEntity(r domain.FlightRecord) string   { return r.Entity }
func byRegion(r domain.FlightRecord) string   { return r.Region }
func byAircraft(r domain.FlightRecord) string { return r.Aircraft }

// monthly sums a per-record value into an ascending monthly series
func monthly(ds *dataset.Dataset, value func(domain.FlightRecord) float64) []domain.SeriesPoint {
	sums := make(map[string]float64)
	for _, r := range ds.Records() {
		sums[r.Month()] += value(r)
	}
	months := ds.Months()
	points := make([]domain.SeriesPoint, len(months))
	for i, m := range months {
		points[i] = domain.SeriesPoint{Period: m, Value: sums[m]}
	}
	return points
}

func sorties(r domain.FlightRecord) float64 { return float64(r.Sorties) }

// averageDailySorties divides total sorties by the number of active days
func averageDailySorties(ds *dataset.Dataset) float64 {
	days := ds.DayCount()
	if days == 0 {
		return 0
	}
	return float64(ds.TotalSorties()) / float64(days)
}

// seriesTrend returns the fractional change between the last two points
func seriesTrend(points []domain.SeriesPoint) *float64 {
	t := 0.0
	if n := len(points); n >= 2 {
		t = Trend(points[n-2].Value, points[n-1].Value)
	}
	return &t
}

// Trend returns (latest − previous) / |previous|, 0 when previous is 0
func Trend(previous, latest float64) float64 {
	if previous == 0 {
		return 0
	}
	d := previous
	if d < 0 {
		d = -d
	}
	return (latest - previous) / d
}

func metric(label string, value float64, unit string) domain.KeyMetric {
	return domain.KeyMetric{Label: label, Value: value, Unit: unit}
}
