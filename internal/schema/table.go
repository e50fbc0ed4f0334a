package schema

import (
	"encoding/binary"
	"encoding/hex"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// RawTable is a row-oriented table exactly as read from the input
type RawTable struct {
	Columns []string
	Rows    [][]string
}

// Len returns the number of data rows
func (t RawTable) Len() int {
	return len(t.Rows)
}

// NormalizedTable is a RawTable whose recognized columns carry canonical names.
// Unrecognized columns keep their original header.
type NormalizedTable struct {
	Columns []string
	Rows    [][]string

	canonical map[string]int
	extras    []int
}

// Len returns the number of data rows
func (t *NormalizedTable) Len() int {
	return len(t.Rows)
}

// Has reports whether a canonical field is present
func (t *NormalizedTable) Has(field string) bool {
	_, ok := t.canonical[field]
	return ok
}

// Index returns the column position of a canonical field
func (t *NormalizedTable) Index(field string) (int, bool) {
	idx, ok := t.canonical[field]
	return idx, ok
}

// Value returns the cell of a canonical field in a row, empty when absent
func (t *NormalizedTable) Value(row []string, field string) string {
	idx, ok := t.canonical[field]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// Extras returns the passthrough values of a row keyed by original header
func (t *NormalizedTable) Extras(row []string) map[string]string {
	if len(t.extras) == 0 {
		return nil
	}
	extra := make(map[string]string, len(t.extras))
	for _, idx := range t.extras {
		if idx < len(row) {
			extra[t.Columns[idx]] = row[idx]
		}
	}
	return extra
}

// CanonicalFields returns the resolved canonical fields in sorted order
func (t *NormalizedTable) CanonicalFields() []string {
	fields := make([]string, 0, len(t.canonical))
	for f := range t.canonical {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Fingerprint returns a stable BLAKE2b-256 hash over the canonical columns and
// their values in row order. Passthrough columns and input column order do not
// affect it.
func (t *NormalizedTable) Fingerprint() string {
	h, _ := blake2b.New256(nil)
	fields := t.CanonicalFields()

	writeString := func(s string) {
		var n [8]byte
		binary.LittleEndian.PutUint64(n[:], uint64(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}

	for _, f := range fields {
		writeString(f)
	}
	for _, row := range t.Rows {
		for _, f := range fields {
			writeString(t.Value(row, f))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
