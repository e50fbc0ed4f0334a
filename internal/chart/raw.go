// Package chart converts raw reducer output into the canonical chart payload
// shapes consumed by renderers.
package chart

import (
	"github.com/LASER-IDEA/white-paper-sub000/pkg/contracts/domain"
)

// Kind identifies the structure of raw reducer output
type Kind string

const (
	KindSeries  Kind = "series"
	KindTable   Kind = "table"
	KindMatrix  Kind = "matrix"
	KindGraph   Kind = "graph"
	KindSamples Kind = "samples"
	KindRanking Kind = "ranking"
)

// Raw is the untyped-for-rendering output of a reducer
type Raw interface {
	Kind() Kind
}

// Series is a value per period
type Series struct {
	Points []domain.SeriesPoint
}

// Kind implements Raw
func (Series) Kind() Kind { return KindSeries }

// Table is a value per category
type Table struct {
	Rows []domain.CategoryValue
}

// Kind implements Raw
func (Table) Kind() Kind { return KindTable }

// Matrix is a sparse set of cells. Declared orders fix the row and column
// sequence; labels missing from them are appended in order of first appearance.
type Matrix struct {
	RowOrder    []string
	ColumnOrder []string
	Cells       []domain.MatrixCell
}

// Kind implements Raw
func (Matrix) Kind() Kind { return KindMatrix }

// GraphData is a node/link structure
type GraphData struct {
	Nodes []domain.GraphNode
	Links []domain.GraphLink
}

// Kind implements Raw
func (GraphData) Kind() Kind { return KindGraph }

// SampleGroup is the raw observations of one category
type SampleGroup struct {
	Category string
	Values   []float64
}

// Samples holds raw observations per category for distribution charts
type Samples struct {
	Groups []SampleGroup
}

// Kind implements Raw
func (Samples) Kind() Kind { return KindSamples }

// Ranking is a set of labelled values to be ranked
type Ranking struct {
	Items []domain.CategoryValue
}

// Kind implements Raw
func (Ranking) Kind() Kind { return KindRanking }

// accepts maps each payload shape to the raw kind it is built from
var accepts = map[domain.ChartShape]Kind{
	domain.ShapeTimeSeries:  KindSeries,
	domain.ShapeCategorical: KindTable,
	domain.ShapeMatrix:      KindMatrix,
	domain.ShapeGraph:       KindGraph,
	domain.ShapeBoxPlot:     KindSamples,
	domain.ShapeRankedTable: KindRanking,
}

// Accepts returns the raw kind a shape is built from
func Accepts(shape domain.ChartShape) (Kind, bool) {
	k, ok := accepts[shape]
	return k, ok
}
