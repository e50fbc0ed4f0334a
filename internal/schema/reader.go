package schema

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Format names an input table encoding
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// FormatFromPath picks the table format from a file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported input extension %q", filepath.Ext(path))
	}
}

// FormatFromContentType maps an HTTP content type to a table format
func FormatFromContentType(contentType string) (Format, error) {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	switch ct {
	case "text/csv", "application/csv", "text/plain", "":
		return FormatCSV, nil
	case "application/json":
		return FormatJSON, nil
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "application/octet-stream":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported content type %q", contentType)
	}
}

// Read decodes a table in the given format
func Read(r io.Reader, format Format) (RawTable, error) {
	switch format {
	case FormatCSV:
		return ReadCSV(r)
	case FormatJSON:
		return ReadJSON(r)
	case FormatXLSX:
		return ReadXLSX(r)
	default:
		return RawTable{}, fmt.Errorf("unsupported table format %q", format)
	}
}

// ReadFile opens path and decodes it according to its extension
func ReadFile(path string) (RawTable, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return RawTable{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return RawTable{}, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	return Read(f, format)
}

// ReadCSV decodes a CSV table whose first record is the header.
// Short rows are padded with empty cells.
func ReadCSV(r io.Reader) (RawTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return RawTable{}, nil
	}
	if err != nil {
		return RawTable{}, fmt.Errorf("failed to read CSV header: %w", err)
	}

	table := RawTable{Columns: header}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return RawTable{}, fmt.Errorf("failed to read CSV row %d: %w", len(table.Rows)+1, err)
		}
		if isBlank(record) {
			continue
		}
		table.Rows = append(table.Rows, padRow(record, len(header)))
	}
	return table, nil
}

// ReadJSON decodes an array of flat objects. Keys become columns in the order
// they are first seen; absent keys are empty cells.
func ReadJSON(r io.Reader) (RawTable, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err == io.EOF {
		return RawTable{}, nil
	}
	if err != nil {
		return RawTable{}, fmt.Errorf("failed to read JSON: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return RawTable{}, fmt.Errorf("JSON input must be an array of objects")
	}

	var table RawTable
	position := make(map[string]int)
	var objects []map[string]any

	for dec.More() {
		var obj map[string]any
		if err := decodeOrdered(dec, &obj, func(key string) {
			if _, seen := position[key]; !seen {
				position[key] = len(table.Columns)
				table.Columns = append(table.Columns, key)
			}
		}); err != nil {
			return RawTable{}, fmt.Errorf("failed to read JSON row %d: %w", len(objects)+1, err)
		}
		objects = append(objects, obj)
	}

	for _, obj := range objects {
		row := make([]string, len(table.Columns))
		for key, v := range obj {
			row[position[key]] = jsonCell(v)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// decodeOrdered decodes one object while reporting its keys in document order
func decodeOrdered(dec *json.Decoder, out *map[string]any, onKey func(string)) error {
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	keyDec := json.NewDecoder(bytes.NewReader(raw))
	keyDec.UseNumber()
	tok, err := keyDec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected object, got %s", raw)
	}

	obj := make(map[string]any)
	for keyDec.More() {
		tok, err := keyDec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var v any
		if err := keyDec.Decode(&v); err != nil {
			return err
		}
		onKey(key)
		obj[key] = v
	}
	*out = obj
	return nil
}

func jsonCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		b, _ := json.Marshal(val)
		return string(b)
	}
}

// ReadXLSX decodes the first worksheet that has a non-empty header row.
// Cells are read without number formatting, so date cells arrive as serials.
func ReadXLSX(r io.Reader) (RawTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return RawTable{}, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return RawTable{}, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 || isBlank(rows[0]) {
			continue
		}

		header := rows[0]
		table := RawTable{Columns: header}
		for _, row := range rows[1:] {
			if isBlank(row) {
				continue
			}
			table.Rows = append(table.Rows, padRow(row, len(header)))
		}
		return table, nil
	}
	return RawTable{}, nil
}

func padRow(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
