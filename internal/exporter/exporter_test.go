package exporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/LASER-IDEA/white-paper-sub000/internal/engine"
	"github.com/LASER-IDEA/white-paper-sub000/internal/infrastructure"
	"github.com/LASER-IDEA/white-paper-sub000/pkg/contracts/domain"
)

func sampleRun() *engine.RunResult {
	recorded := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	report := domain.NewValidationReport(4)
	report.ValidRows = 3
	report.DroppedInvalidDate = 1
	report.Imputed["duration"] = domain.Imputation{Count: 1, Median: 20}

	return &engine.RunResult{
		RunID:       "run-1",
		Fingerprint: "abc",
		GeneratedAt: recorded,
		Results: []domain.IndexResult{
			{ID: "traffic_index", Title: "Traffic Index", Dimension: domain.DimensionScaleGrowth, Value: 100, Unit: "index", Trend: 0.5, FormulaVersion: "traffic_index@v1"},
			{ID: "market_balance", Title: "Market Balance", Dimension: domain.DimensionStructureEntity, Value: 0.25, Unit: "ratio", FormulaVersion: "market_balance@v1"},
		},
		Failures: []domain.IndexFailure{
			{ID: "regional_network", Kind: domain.FailureTimeout, Reason: "exceeded 3s"},
		},
		Report: report,
		Ledger: []domain.LedgerEntry{
			{RunID: "run-1", IndexID: "traffic_index", Status: domain.LedgerStatusOK, Duration: 1500 * time.Microsecond, Warnings: []string{"a", "b"}, Fingerprint: "abc", FormulaVersion: "traffic_index@v1", RecordedAt: recorded},
			{RunID: "run-1", IndexID: "regional_network", Status: domain.LedgerStatusTimeout, Error: "exceeded 3s", Fingerprint: "abc", RecordedAt: recorded},
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, utf8BOM), "csv starts with a BOM")

	records, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM))).ReadAll()
	require.NoError(t, err)
	return records
}

func TestExport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	exp := NewRunExporter(dir, infrastructure.NewDiscardLogger())

	files, err := exp.Export(sampleRun(), Options{Workbook: true})
	require.NoError(t, err)

	t.Run("json document", func(t *testing.T) {
		data, err := os.ReadFile(files.Indices)
		require.NoError(t, err)

		var doc engine.RunResult
		require.NoError(t, json.Unmarshal(data, &doc))
		assert.Equal(t, "run-1", doc.RunID)
		assert.Len(t, doc.Results, 2)
		assert.Len(t, doc.Failures, 1)
	})

	t.Run("summary csv", func(t *testing.T) {
		records := readCSV(t, files.Summary)
		require.Len(t, records, 4)
		assert.Equal(t, summaryHeaders, records[0])
		assert.Equal(t, []string{"traffic_index", "Traffic Index", "scale_growth", "ok", "100", "index", "0.5000", "traffic_index@v1", ""}, records[1])
		assert.Equal(t, "0.25", records[2][4])
		assert.Equal(t, []string{"regional_network", "", "", "timeout", "", "", "", "", "exceeded 3s"}, records[3])
	})

	t.Run("ledger csv", func(t *testing.T) {
		records := readCSV(t, files.Ledger)
		require.Len(t, records, 3)
		assert.Equal(t, ledgerHeaders, records[0])
		assert.Equal(t, "1.500", records[1][3])
		assert.Equal(t, "a; b", records[1][6])
		assert.Equal(t, "2024-03-01T08:00:00.000Z", records[1][8])
		assert.Equal(t, "timeout", records[2][2])
	})

	t.Run("workbook", func(t *testing.T) {
		f, err := excelize.OpenFile(files.Workbook)
		require.NoError(t, err)
		defer f.Close()

		assert.Equal(t, []string{"Summary", "Ledger", "Validation"}, f.GetSheetList())

		rows, err := f.GetRows("Summary")
		require.NoError(t, err)
		require.Len(t, rows, 4)
		assert.Equal(t, "market_balance", rows[2][0])

		validation, err := f.GetRows("Validation")
		require.NoError(t, err)
		assert.Contains(t, validation, []string{"imputed_duration", "1"})
		assert.Contains(t, validation, []string{"median_duration", "20"})
	})
}

func TestExportWithoutWorkbook(t *testing.T) {
	dir := t.TempDir()
	files, err := NewRunExporter(dir, nil).Export(sampleRun(), Options{})
	require.NoError(t, err)

	assert.Empty(t, files.Workbook)
	_, err = os.Stat(filepath.Join(dir, WorkbookFile))
	assert.True(t, os.IsNotExist(err))
}

func TestCSVWriter(t *testing.T) {
	dir := t.TempDir()
	w := NewCSVWriter(dir, nil)

	require.NoError(t, w.WriteCSV("plain.csv", WriteOptions{
		Headers: []string{"a", "b"},
		Records: [][]string{{"1", "x,y"}},
	}))

	data, err := os.ReadFile(filepath.Join(dir, "plain.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,\"x,y\"\n", string(data))

	t.Run("absolute paths bypass the base dir", func(t *testing.T) {
		abs := filepath.Join(t.TempDir(), "nested", "abs.csv")
		stream, err := w.CreateStreamWriter(abs, []string{"h"})
		require.NoError(t, err)
		assert.Equal(t, abs, stream.Path())
		require.NoError(t, stream.WriteRecord([]string{"v"}))
		require.NoError(t, stream.Close())

		records := readCSV(t, abs)
		assert.Equal(t, [][]string{{"h"}, {"v"}}, records)
	})
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "0.1", formatFloat(0.1))
	assert.Equal(t, "3", formatFloat(3))
	assert.Equal(t, "0.3333", formatRounded(1.0/3))
	assert.Equal(t, "2.000", formatMillis(2*time.Millisecond))
}
