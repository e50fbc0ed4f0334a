package exporter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/LASER-IDEA/white-paper-sub000/internal/engine"
	"github.com/LASER-IDEA/white-paper-sub000/pkg/contracts/domain"
)

// Output file names
const (
	IndicesFile  = "indices.json"
	LedgerFile   = "ledger.csv"
	SummaryFile  = "summary.csv"
	WorkbookFile = "indices.xlsx"
)

var (
	ledgerHeaders  = []string{"run_id", "index_id", "status", "duration_ms", "formula_version", "fingerprint", "warnings", "error", "recorded_at"}
	summaryHeaders = []string{"index_id", "title", "dimension", "status", "value", "unit", "trend", "formula_version", "reason"}
)

// Options selects optional outputs
type Options struct {
	// Workbook also writes an XLSX workbook
	Workbook bool
}

// Files lists the paths written by an export
type Files struct {
	Indices  string `json:"indices"`
	Ledger   string `json:"ledger"`
	Summary  string `json:"summary"`
	Workbook string `json:"workbook,omitempty"`
}

// RunExporter writes run results into an output directory
type RunExporter struct {
	outDir string
	csv    *CSVWriter
	logger *slog.Logger
}

// NewRunExporter creates an exporter writing into outDir
func NewRunExporter(outDir string, logger *slog.Logger) *RunExporter {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "exporter"))
	return &RunExporter{
		outDir: outDir,
		csv:    NewCSVWriter(outDir, logger),
		logger: logger,
	}
}

// Export writes every output file for result
func (e *RunExporter) Export(result *engine.RunResult, opts Options) (Files, error) {
	if err := os.MkdirAll(e.outDir, 0755); err != nil {
		return Files{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	files := Files{
		Indices: filepath.Join(e.outDir, IndicesFile),
		Ledger:  filepath.Join(e.outDir, LedgerFile),
		Summary: filepath.Join(e.outDir, SummaryFile),
	}

	if err := e.writeJSON(files.Indices, result); err != nil {
		return Files{}, err
	}
	if err := e.WriteLedger(LedgerFile, result.Ledger); err != nil {
		return Files{}, err
	}
	if err := e.csv.WriteSimpleCSV(SummaryFile, summaryHeaders, SummaryRecords(result)); err != nil {
		return Files{}, fmt.Errorf("failed to write summary: %w", err)
	}

	if opts.Workbook {
		files.Workbook = filepath.Join(e.outDir, WorkbookFile)
		if err := e.writeWorkbook(files.Workbook, result); err != nil {
			return Files{}, err
		}
	}

	e.logger.Info("run exported",
		slog.String("run_id", result.RunID),
		slog.String("out_dir", e.outDir),
		slog.Int("results", len(result.Results)),
		slog.Int("failures", len(result.Failures)),
		slog.Bool("workbook", opts.Workbook))

	return files, nil
}

// WriteLedger streams ledger entries to a CSV file
func (e *RunExporter) WriteLedger(name string, entries []domain.LedgerEntry) error {
	stream, err := e.csv.CreateStreamWriter(name, ledgerHeaders)
	if err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	for _, entry := range entries {
		if err := stream.WriteRecord(ledgerRecord(entry)); err != nil {
			stream.Close()
			return fmt.Errorf("failed to write ledger entry %s: %w", entry.IndexID, err)
		}
	}
	return stream.Close()
}

func (e *RunExporter) writeJSON(path string, result *engine.RunResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func ledgerRecord(entry domain.LedgerEntry) []string {
	return []string{
		entry.RunID,
		entry.IndexID,
		entry.Status,
		formatMillis(entry.Duration),
		entry.FormulaVersion,
		entry.Fingerprint,
		strings.Join(entry.Warnings, "; "),
		entry.Error,
		entry.RecordedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

// SummaryRecords returns one row per computed index in catalogue order,
// followed by one row per failed index
func SummaryRecords(result *engine.RunResult) [][]string {
	records := make([][]string, 0, len(result.Results)+len(result.Failures))
	for _, r := range result.Results {
		records = append(records, []string{
			r.ID,
			r.Title,
			string(r.Dimension),
			domain.LedgerStatusOK,
			formatFloat(r.Value),
			r.Unit,
			formatRounded(r.Trend),
			r.FormulaVersion,
			"",
		})
	}
	for _, f := range result.Failures {
		records = append(records, []string{f.ID, "", "", f.Kind, "", "", "", "", f.Reason})
	}
	return records
}

func (e *RunExporter) writeWorkbook(path string, result *engine.RunResult) error {
	f := excelize.NewFile()
	defer f.Close()

	summary := f.GetSheetName(0)
	if err := f.SetSheetName(summary, "Summary"); err != nil {
		return fmt.Errorf("failed to name summary sheet: %w", err)
	}
	if err := writeSheet(f, "Summary", summaryHeaders, SummaryRecords(result)); err != nil {
		return err
	}

	ledger := make([][]string, 0, len(result.Ledger))
	for _, entry := range result.Ledger {
		ledger = append(ledger, ledgerRecord(entry))
	}
	if _, err := f.NewSheet("Ledger"); err != nil {
		return fmt.Errorf("failed to add ledger sheet: %w", err)
	}
	if err := writeSheet(f, "Ledger", ledgerHeaders, ledger); err != nil {
		return err
	}

	if result.Report != nil {
		if _, err := f.NewSheet("Validation"); err != nil {
			return fmt.Errorf("failed to add validation sheet: %w", err)
		}
		if err := writeSheet(f, "Validation", []string{"metric", "value"}, validationRecords(result.Report)); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, records [][]string) error {
	write := func(rowIdx int, values []string) error {
		cell, err := excelize.CoordinatesToCellName(1, rowIdx)
		if err != nil {
			return err
		}
		row := make([]interface{}, len(values))
		for i, v := range values {
			row[i] = v
		}
		return f.SetSheetRow(sheet, cell, &row)
	}

	if err := write(1, headers); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	for i, record := range records {
		if err := write(i+2, record); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func validationRecords(report *domain.ValidationReport) [][]string {
	records := [][]string{
		{"total_rows", formatInt(report.TotalRows)},
		{"valid_rows", formatInt(report.ValidRows)},
		{"dropped_invalid_date", formatInt(report.DroppedInvalidDate)},
		{"defaulted_sorties", formatInt(report.DefaultedSorties)},
		{"defaulted_hour", formatInt(report.DefaultedHour)},
	}

	fields := make([]string, 0, len(report.Imputed))
	for field := range report.Imputed {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		imp := report.Imputed[field]
		records = append(records,
			[]string{"imputed_" + field, formatInt(imp.Count)},
			[]string{"median_" + field, formatFloat(imp.Median)},
		)
	}

	for _, w := range report.Warnings {
		records = append(records, []string{"warning", w.Detail})
	}
	return records
}
