// Package quality turns a normalized table into a validated dataset, repairing
// or dropping bad values and recording every repair in a validation report.
package quality

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/LASER-IDEA/white-paper-sub000/internal/dataset"
	apierrors "github.com/LASER-IDEA/white-paper-sub000/internal/errors"
	"github.com/LASER-IDEA/white-paper-sub000/internal/schema"
	"github.com/LASER-IDEA/white-paper-sub000/internal/stats"
	"github.com/LASER-IDEA/white-paper-sub000/pkg/contracts/domain"
)

// Options configures the repair policies
type Options struct {
	HourPolicy HourPolicy
	Location   *time.Location
}

// DefaultOptions returns noon as the default hour and UTC dates
func DefaultOptions() Options {
	return Options{
		HourPolicy: DefaultHourPolicy{Value: DefaultHour},
		Location:   time.UTC,
	}
}

// Filter validates normalized tables
type Filter struct {
	opts   Options
	logger *slog.Logger
}

// NewFilter creates a filter. Zero-valued options fall back to DefaultOptions.
func NewFilter(logger *slog.Logger, opts Options) *Filter {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.HourPolicy == nil {
		opts.HourPolicy = DefaultHourPolicy{Value: DefaultHour}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Filter{opts: opts, logger: logger}
}

// numeric fields subject to median imputation, in report order
var imputedFields = []string{domain.FieldDuration, domain.FieldDistance, domain.FieldAltitude}

type numericCell struct {
	value float64
	ok    bool
}

type stagedRow struct {
	cells     []string
	timestamp time.Time
	hasTime   bool
	numbers   map[string]numericCell
}

// Validate applies the data quality policies and builds the dataset.
// It fails only when a required canonical field is absent from the table.
func (f *Filter) Validate(ctx context.Context, table *schema.NormalizedTable) (*dataset.Dataset, error) {
	var missing []string
	for _, field := range domain.RequiredFields {
		if !table.Has(field) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, apierrors.NewMissingColumnError(missing...)
	}

	report := domain.NewValidationReport(table.Len())
	report.DefaultHour = f.opts.HourPolicy.Hour()

	staged := make([]stagedRow, 0, table.Len())
	for _, row := range table.Rows {
		ts, hasTime, ok := parseDate(table.Value(row, domain.FieldDate), f.opts.Location)
		if !ok {
			report.DroppedInvalidDate++
			continue
		}
		staged = append(staged, stagedRow{cells: row, timestamp: ts, hasTime: hasTime})
	}

	altitudeNumeric := f.altitudeIsNumeric(table, staged)
	numericFields := []string{domain.FieldDuration, domain.FieldDistance}
	if altitudeNumeric {
		numericFields = append(numericFields, domain.FieldAltitude)
	}

	// parse and take absolute values before collecting the median pool
	pools := make(map[string][]float64)
	for i := range staged {
		staged[i].numbers = make(map[string]numericCell, len(numericFields))
		for _, field := range numericFields {
			v, ok := parseNumber(table.Value(staged[i].cells, field))
			if ok && v < 0 {
				v = math.Abs(v)
				report.Negated[field]++
			}
			staged[i].numbers[field] = numericCell{value: v, ok: ok}
			if ok {
				pools[field] = append(pools[field], v)
			}
		}
	}

	medians := make(map[string]float64, len(numericFields))
	for _, field := range numericFields {
		medians[field] = stats.Median(pools[field])
	}

	records := make([]domain.FlightRecord, 0, len(staged))
	for _, s := range staged {
		rec := domain.FlightRecord{
			Timestamp:       s.timestamp,
			HasTime:         s.hasTime,
			AltitudeNumeric: altitudeNumeric,
			Extra:           table.Extras(s.cells),
		}

		numbers := make(map[string]float64, len(numericFields))
		for _, field := range numericFields {
			cell := s.numbers[field]
			if !cell.ok {
				imp := report.Imputed[field]
				imp.Count++
				imp.Median = medians[field]
				report.Imputed[field] = imp
				cell.value = medians[field]
			}
			numbers[field] = cell.value
		}
		rec.Duration = numbers[domain.FieldDuration]
		rec.Distance = numbers[domain.FieldDistance]

		if altitudeNumeric {
			rec.Altitude = numbers[domain.FieldAltitude]
			rec.AltitudeBand = altitudeBand(rec.Altitude)
		} else {
			rec.AltitudeBand = f.categorical(table, s.cells, domain.FieldAltitude, report)
		}

		rec.Hour = f.resolveHour(table, s, report)
		rec.Region = f.categorical(table, s.cells, domain.FieldRegion, report)
		rec.Entity = f.categorical(table, s.cells, domain.FieldEntity, report)
		rec.Aircraft = f.categorical(table, s.cells, domain.FieldAircraft, report)

		rec.UserType = normalizeUserType(table.Value(s.cells, domain.FieldUserType))
		if rec.UserType == domain.Unknown && table.Has(domain.FieldUserType) {
			report.FilledUnknown[domain.FieldUserType]++
		}

		rec.Sorties = f.resolveSorties(table, s.cells, report)
		records = append(records, rec)
	}

	report.ValidRows = len(records)
	report.Warnings = buildWarnings(report)

	f.logger.InfoContext(ctx, "validation complete",
		"total_rows", report.TotalRows,
		"valid_rows", report.ValidRows,
		"dropped_invalid_date", report.DroppedInvalidDate,
		"imputed_cells", report.ImputedCells(),
		"defaulted_hour", report.DefaultedHour,
		"altitude_numeric", altitudeNumeric,
	)
	for _, w := range report.Warnings {
		f.logger.WarnContext(ctx, "data quality repair",
			"field", w.Field,
			"policy", w.Policy,
			"count", w.Count,
		)
	}

	return dataset.New(records, report, table.Fingerprint()), nil
}

// altitudeIsNumeric reports whether every non-empty altitude of the date-valid
// rows parses as a number. A column with no values at all is categorical.
func (f *Filter) altitudeIsNumeric(table *schema.NormalizedTable, staged []stagedRow) bool {
	if !table.Has(domain.FieldAltitude) {
		return false
	}
	seen := false
	for _, s := range staged {
		v := strings.TrimSpace(table.Value(s.cells, domain.FieldAltitude))
		if v == "" {
			continue
		}
		if _, ok := parseNumber(v); !ok {
			return false
		}
		seen = true
	}
	return seen
}

func (f *Filter) resolveHour(table *schema.NormalizedTable, s stagedRow, report *domain.ValidationReport) int {
	if s.hasTime {
		return s.timestamp.Hour()
	}
	if h, ok := parseHour(table.Value(s.cells, domain.FieldTime)); ok {
		return h
	}
	if h, ok := parseHour(table.Value(s.cells, domain.FieldHour)); ok {
		return h
	}
	report.DefaultedHour++
	return f.opts.HourPolicy.Hour()
}

// categorical returns the trimmed value or "unknown". Fills are only counted
// when the column exists.
func (f *Filter) categorical(table *schema.NormalizedTable, row []string, field string, report *domain.ValidationReport) string {
	v := strings.TrimSpace(table.Value(row, field))
	if v != "" {
		return v
	}
	if table.Has(field) {
		report.FilledUnknown[field]++
	}
	return domain.Unknown
}

// maxSorties bounds a single row's sortie count; larger values are malformed
const maxSorties = math.MaxInt32

// resolveSorties defaults missing or malformed counts to one and takes the
// absolute value of negative counts
func (f *Filter) resolveSorties(table *schema.NormalizedTable, row []string, report *domain.ValidationReport) int {
	v, ok := parseNumber(table.Value(row, domain.FieldSorties))
	if ok && math.Abs(v) > maxSorties {
		ok = false
	}
	if !ok {
		if table.Has(domain.FieldSorties) {
			report.DefaultedSorties++
		}
		return 1
	}
	if v < 0 {
		v = math.Abs(v)
		report.Negated[domain.FieldSorties]++
	}
	return int(math.Round(v))
}

func buildWarnings(report *domain.ValidationReport) []domain.DataQualityWarning {
	warnings := []domain.DataQualityWarning{}

	if report.DroppedInvalidDate > 0 {
		warnings = append(warnings, domain.DataQualityWarning{
			Field:  domain.FieldDate,
			Policy: domain.PolicyDropInvalidDate,
			Count:  report.DroppedInvalidDate,
			Detail: fmt.Sprintf("%d rows dropped: date could not be parsed", report.DroppedInvalidDate),
		})
	}
	for _, field := range imputedFields {
		if imp, ok := report.Imputed[field]; ok && imp.Count > 0 {
			warnings = append(warnings, domain.DataQualityWarning{
				Field:  field,
				Policy: domain.PolicyMedianImpute,
				Count:  imp.Count,
				Detail: fmt.Sprintf("%d missing or invalid values replaced with median %.4g", imp.Count, imp.Median),
			})
		}
	}
	for _, field := range append(imputedFields, domain.FieldSorties) {
		if n := report.Negated[field]; n > 0 {
			warnings = append(warnings, domain.DataQualityWarning{
				Field:  field,
				Policy: domain.PolicyAbsoluteValue,
				Count:  n,
				Detail: fmt.Sprintf("%d negative values replaced with their absolute value", n),
			})
		}
	}
	if report.DefaultedHour > 0 {
		warnings = append(warnings, domain.DataQualityWarning{
			Field:  domain.FieldHour,
			Policy: domain.PolicyDefaultHour,
			Count:  report.DefaultedHour,
			Detail: fmt.Sprintf("%d records without a time of day assigned hour %d", report.DefaultedHour, report.DefaultHour),
		})
	}
	for _, field := range []string{domain.FieldRegion, domain.FieldEntity, domain.FieldUserType, domain.FieldAircraft, domain.FieldAltitude} {
		if n := report.FilledUnknown[field]; n > 0 {
			warnings = append(warnings, domain.DataQualityWarning{
				Field:  field,
				Policy: domain.PolicyFillUnknown,
				Count:  n,
				Detail: fmt.Sprintf("%d empty values set to %q", n, domain.Unknown),
			})
		}
	}
	if report.DefaultedSorties > 0 {
		warnings = append(warnings, domain.DataQualityWarning{
			Field:  domain.FieldSorties,
			Policy: domain.PolicyDefaultSorties,
			Count:  report.DefaultedSorties,
			Detail: fmt.Sprintf("%d missing or malformed sortie counts set to 1", report.DefaultedSorties),
		})
	}
	return warnings
}
