// Package dataset holds the validated, immutable record collection every index
// reducer reads from.
package dataset

import (
	"sort"
	"time"

	"github.com/LASER-IDEA/white-paper-sub000/pkg/contracts/domain"
)

// Dataset is a read-only view over validated flight records.
// Records are never modified after construction; subsets share the backing
// records of their parent.
type Dataset struct {
	records     []domain.FlightRecord
	report      *domain.ValidationReport
	fingerprint string
	months      []string
}

// New builds a dataset. The caller must not modify records afterwards.
func New(records []domain.FlightRecord, report *domain.ValidationReport, fingerprint string) *Dataset {
	if report == nil {
		report = domain.NewValidationReport(len(records))
		report.ValidRows = len(records)
	}
	d := &Dataset{
		records:     records[:len(records):len(records)],
		report:      report,
		fingerprint: fingerprint,
	}
	d.months = collectMonths(d.records)
	return d
}

// Empty returns a dataset with no records
func Empty() *Dataset {
	return New(nil, nil, "")
}

// Len returns the number of records
func (d *Dataset) Len() int {
	return len(d.records)
}

// Records returns the records in input order. The slice must be treated as read-only.
func (d *Dataset) Records() []domain.FlightRecord {
	return d.records
}

// Report returns the validation report the dataset was built with
func (d *Dataset) Report() *domain.ValidationReport {
	return d.report
}

// Fingerprint returns the content hash of the normalized input
func (d *Dataset) Fingerprint() string {
	return d.fingerprint
}

// Months returns the distinct YYYY-MM periods present, ascending
func (d *Dataset) Months() []string {
	out := make([]string, len(d.months))
	copy(out, d.months)
	return out
}

// TotalSorties returns the sortie count over all records
func (d *Dataset) TotalSorties() int {
	total := 0
	for _, r := range d.records {
		total += r.Sorties
	}
	return total
}

// Filter returns the subset of records matching keep. The report and
// fingerprint of the parent carry over.
func (d *Dataset) Filter(keep func(domain.FlightRecord) bool) *Dataset {
	var subset []domain.FlightRecord
	for _, r := range d.records {
		if keep(r) {
			subset = append(subset, r)
		}
	}
	return New(subset, d.report, d.fingerprint)
}

// Month returns the subset of records in one YYYY-MM period
func (d *Dataset) Month(month string) *Dataset {
	return d.Filter(func(r domain.FlightRecord) bool {
		return r.Month() == month
	})
}

// Between returns the records whose day lies in [start, end]. A zero bound is open.
func (d *Dataset) Between(start, end time.Time) *Dataset {
	return d.Filter(func(r domain.FlightRecord) bool {
		day := r.Day()
		if !start.IsZero() && day.Before(start) {
			return false
		}
		if !end.IsZero() && day.After(end) {
			return false
		}
		return true
	})
}

// DayCount returns the number of distinct calendar days with at least one record
func (d *Dataset) DayCount() int {
	days := make(map[time.Time]struct{})
	for _, r := range d.records {
		days[r.Day()] = struct{}{}
	}
	return len(days)
}

func collectMonths(records []domain.FlightRecord) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		seen[r.Month()] = struct{}{}
	}
	months := make([]string, 0, len(seen))
	for m := range seen {
		months = append(months, m)
	}
	sort.Strings(months)
	return months
}
