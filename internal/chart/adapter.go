package chart

import (
	"fmt"
	"math"
	"sort"

	apierrors "github.com/LASER-IDEA/white-paper-sub000/internal/errors"
	"github.com/LASER-IDEA/white-paper-sub000/internal/stats"
	"github.com/LASER-IDEA/white-paper-sub000/pkg/contracts/domain"
)

// Options tune how a payload is built
type Options struct {
	// SortDescending orders categorical payloads by value, largest first
	SortDescending bool
	// Limit truncates ranked tables after ranking; 0 keeps every row
	Limit int
}

// Adapt builds the payload of the declared shape from raw reducer output.
// A raw kind the shape cannot hold, or a non-finite value, yields an
// OutputShapeError.
func Adapt(indexID string, shape domain.ChartShape, raw Raw, opts Options) (domain.ChartPayload, error) {
	want, ok := accepts[shape]
	if !ok {
		return domain.ChartPayload{}, apierrors.NewOutputShapeError(indexID, string(shape), kindOf(raw))
	}
	if raw == nil || raw.Kind() != want {
		return domain.ChartPayload{}, apierrors.NewOutputShapeError(indexID, string(shape), kindOf(raw))
	}

	payload := domain.ChartPayload{Shape: shape}
	var err error
	switch r := raw.(type) {
	case Series:
		payload.Series, err = adaptSeries(r)
	case Table:
		payload.Categories, err = adaptTable(r, opts.SortDescending)
	case Matrix:
		payload.Cells, payload.RowLabels, payload.ColLabels, err = adaptMatrix(r)
	case GraphData:
		payload.Graph, err = adaptGraph(r)
	case Samples:
		payload.Boxes, err = adaptSamples(r)
	case Ranking:
		payload.Rows, err = adaptRanking(r, opts.Limit)
	default:
		return domain.ChartPayload{}, apierrors.NewOutputShapeError(indexID, string(shape), kindOf(raw))
	}
	if err != nil {
		return domain.ChartPayload{}, apierrors.NewOutputShapeError(indexID, string(shape), err.Error())
	}
	return payload, nil
}

func kindOf(raw Raw) string {
	if raw == nil {
		return "none"
	}
	return string(raw.Kind())
}

func checkFinite(label string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("non-finite value at %s", label)
	}
	return nil
}

func adaptSeries(r Series) ([]domain.SeriesPoint, error) {
	points := make([]domain.SeriesPoint, len(r.Points))
	copy(points, r.Points)
	for _, p := range points {
		if err := checkFinite(p.Period, p.Value); err != nil {
			return nil, err
		}
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Period < points[j].Period
	})
	return points, nil
}

func adaptTable(r Table, descending bool) ([]domain.CategoryValue, error) {
	rows := make([]domain.CategoryValue, len(r.Rows))
	copy(rows, r.Rows)
	for _, row := range rows {
		if err := checkFinite(row.Category, row.Value); err != nil {
			return nil, err
		}
	}
	if descending {
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Value > rows[j].Value
		})
	}
	return rows, nil
}

// adaptMatrix emits the full row × column cross product, summing duplicates.
// Cells the reducer did not emit, such as a weekday with no flights, are
// synthetic zeros.
func adaptMatrix(r Matrix) ([]domain.MatrixCell, []string, []string, error) {
	rows := orderLabels(r.RowOrder, r.Cells, func(c domain.MatrixCell) string { return c.Row })
	cols := orderLabels(r.ColumnOrder, r.Cells, func(c domain.MatrixCell) string { return c.Column })

	values := make(map[[2]string]float64, len(r.Cells))
	for _, c := range r.Cells {
		if err := checkFinite(c.Row+"/"+c.Column, c.Value); err != nil {
			return nil, nil, nil, err
		}
		values[[2]string{c.Row, c.Column}] += c.Value
	}

	cells := make([]domain.MatrixCell, 0, len(rows)*len(cols))
	for _, row := range rows {
		for _, col := range cols {
			cells = append(cells, domain.MatrixCell{Row: row, Column: col, Value: values[[2]string{row, col}]})
		}
	}
	return cells, rows, cols, nil
}

func orderLabels(declared []string, cells []domain.MatrixCell, label func(domain.MatrixCell) string) []string {
	seen := make(map[string]bool, len(declared))
	order := make([]string, 0, len(declared))
	for _, l := range declared {
		if !seen[l] {
			seen[l] = true
			order = append(order, l)
		}
	}
	for _, c := range cells {
		l := label(c)
		if !seen[l] {
			seen[l] = true
			order = append(order, l)
		}
	}
	return order
}

func adaptGraph(r GraphData) (*domain.Graph, error) {
	ids := make(map[string]bool, len(r.Nodes))
	g := &domain.Graph{
		Nodes: make([]domain.GraphNode, 0, len(r.Nodes)),
		Links: make([]domain.GraphLink, 0, len(r.Links)),
	}
	for _, n := range r.Nodes {
		if ids[n.ID] {
			return nil, fmt.Errorf("duplicate node %s", n.ID)
		}
		if err := checkFinite(n.ID, n.Weight); err != nil {
			return nil, err
		}
		ids[n.ID] = true
		g.Nodes = append(g.Nodes, n)
	}
	for _, l := range r.Links {
		if !ids[l.Source] || !ids[l.Target] {
			return nil, fmt.Errorf("link %s-%s references unknown node", l.Source, l.Target)
		}
		if err := checkFinite(l.Source+"-"+l.Target, l.Weight); err != nil {
			return nil, err
		}
		g.Links = append(g.Links, l)
	}
	return g, nil
}

// adaptSamples reduces each group to its five-number summary
func adaptSamples(r Samples) ([]domain.BoxSummary, error) {
	boxes := make([]domain.BoxSummary, 0, len(r.Groups))
	for _, group := range r.Groups {
		sorted := make([]float64, len(group.Values))
		copy(sorted, group.Values)
		for _, v := range sorted {
			if err := checkFinite(group.Category, v); err != nil {
				return nil, err
			}
		}
		sort.Float64s(sorted)

		box := domain.BoxSummary{Category: group.Category, Count: len(sorted)}
		if len(sorted) > 0 {
			box.Min = sorted[0]
			box.Q1 = stats.Quantile(sorted, 0.25)
			box.Median = stats.Quantile(sorted, 0.5)
			box.Q3 = stats.Quantile(sorted, 0.75)
			box.Max = sorted[len(sorted)-1]
		}
		boxes = append(boxes, box)
	}
	return boxes, nil
}

// adaptRanking sorts descending by value, keeping input order among ties, and
// assigns ranks 1..n
func adaptRanking(r Ranking, limit int) ([]domain.RankedRow, error) {
	items := make([]domain.CategoryValue, len(r.Items))
	copy(items, r.Items)
	total := 0.0
	for _, it := range items {
		if err := checkFinite(it.Category, it.Value); err != nil {
			return nil, err
		}
		total += it.Value
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Value > items[j].Value
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	rows := make([]domain.RankedRow, len(items))
	for i, it := range items {
		share := 0.0
		if total != 0 {
			share = it.Value / total
		}
		rows[i] = domain.RankedRow{Rank: i + 1, Label: it.Category, Value: it.Value, Share: share}
	}
	return rows, nil
}
