package domain

// ChartShape is one of the canonical payload shapes consumed by renderers
type ChartShape string

const (
	ShapeTimeSeries  ChartShape = "time_series"
	ShapeCategorical ChartShape = "categorical"
	ShapeMatrix      ChartShape = "matrix"
	ShapeGraph       ChartShape = "graph"
	ShapeBoxPlot     ChartShape = "boxplot"
	ShapeRankedTable ChartShape = "ranked_table"
)

// SeriesPoint is one period of a time series
type SeriesPoint struct {
	Period string  `json:"period"`
	Value  float64 `json:"value"`
}

// CategoryValue is one bar of a categorical chart
type CategoryValue struct {
	Category string  `json:"category"`
	Value    float64 `json:"value"`
}

// MatrixCell is one cell of a heatmap
type MatrixCell struct {
	Row    string  `json:"row"`
	Column string  `json:"column"`
	Value  float64 `json:"value"`
}

// GraphNode is a weighted node of a node/link payload
type GraphNode struct {
	ID     string  `json:"id"`
	Weight float64 `json:"weight"`
}

// GraphLink is a weighted link between two nodes
type GraphLink struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
}

// Graph is a node/link payload
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Links []GraphLink `json:"links"`
}

// BoxSummary is the five-number summary of one category
type BoxSummary struct {
	Category string  `json:"category"`
	Min      float64 `json:"min"`
	Q1       float64 `json:"q1"`
	Median   float64 `json:"median"`
	Q3       float64 `json:"q3"`
	Max      float64 `json:"max"`
	Count    int     `json:"count"`
}

// RankedRow is one row of a ranked table
type RankedRow struct {
	Rank  int     `json:"rank"`
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Share float64 `json:"share"`
}

// ChartPayload carries exactly one populated shape, selected by Shape
type ChartPayload struct {
	Shape      ChartShape      `json:"shape"`
	Series     []SeriesPoint   `json:"series,omitempty"`
	Categories []CategoryValue `json:"categories,omitempty"`
	Cells      []MatrixCell    `json:"cells,omitempty"`
	RowLabels  []string        `json:"row_labels,omitempty"`
	ColLabels  []string        `json:"column_labels,omitempty"`
	Graph      *Graph          `json:"graph,omitempty"`
	Boxes      []BoxSummary    `json:"boxes,omitempty"`
	Rows       []RankedRow     `json:"rows,omitempty"`
}
