package domain

// Data quality policies applied by the validation pass
const (
	PolicyDropInvalidDate = "drop_invalid_date"
	PolicyMedianImpute    = "median_impute"
	PolicyAbsoluteValue   = "absolute_value"
	PolicyDefaultHour     = "default_hour"
	PolicyFillUnknown     = "fill_unknown"
	PolicyDefaultSorties  = "default_sorties"
)

// Imputation records how many values of a numeric field were filled and with what
type Imputation struct {
	Count  int     `json:"count"`
	Median float64 `json:"median"`
}

// DataQualityWarning is a non-fatal repair applied to the input
type DataQualityWarning struct {
	Field  string `json:"field,omitempty"`
	Policy string `json:"policy"`
	Count  int    `json:"count"`
	Detail string `json:"detail"`
}

// ValidationReport summarizes every drop and repair made while building a dataset
type ValidationReport struct {
	TotalRows          int                   `json:"total_rows"`
	ValidRows          int                   `json:"valid_rows"`
	DroppedInvalidDate int                   `json:"dropped_invalid_date"`
	Imputed            map[string]Imputation `json:"imputed"`
	Negated            map[string]int        `json:"negated"`
	FilledUnknown      map[string]int        `json:"filled_unknown"`
	DefaultedSorties   int                   `json:"defaulted_sorties"`
	DefaultedHour      int                   `json:"defaulted_hour"`
	DefaultHour        int                   `json:"default_hour"`
	Warnings           []DataQualityWarning  `json:"warnings"`
}

// NewValidationReport creates an empty report with initialized maps
func NewValidationReport(totalRows int) *ValidationReport {
	return &ValidationReport{
		TotalRows:     totalRows,
		Imputed:       make(map[string]Imputation),
		Negated:       make(map[string]int),
		FilledUnknown: make(map[string]int),
		Warnings:      []DataQualityWarning{},
	}
}

// ImputedCells returns the total number of imputed numeric cells
func (r *ValidationReport) ImputedCells() int {
	total := 0
	for _, imp := range r.Imputed {
		total += imp.Count
	}
	return total
}
