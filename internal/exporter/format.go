package exporter

import (
	"strconv"
	"time"
)

// formatFloat renders the shortest exact representation of f
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatRounded renders a value with exactly four decimals
func formatRounded(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}

func formatInt(i int) string {
	return strconv.Itoa(i)
}

// formatMillis renders a duration in milliseconds with microsecond precision
func formatMillis(d time.Duration) string {
	return strconv.FormatFloat(float64(d.Microseconds())/1000, 'f', 3, 64)
}
