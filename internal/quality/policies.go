package quality

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/LASER-IDEA/white-paper-sub000/pkg/contracts/domain"
)

// DefaultHour is the hour assigned by DefaultHourPolicy
const DefaultHour = 12

// HourPolicy supplies the hour of day for records whose input carries none
type HourPolicy interface {
	Name() string
	Hour() int
}

// DefaultHourPolicy assigns a fixed hour, noon unless overridden
type DefaultHourPolicy struct {
	Value int
}

// Name identifies the policy in the validation report
func (p DefaultHourPolicy) Name() string {
	return domain.PolicyDefaultHour
}

// Hour returns the configured hour, clamped to 0..23
func (p DefaultHourPolicy) Hour() int {
	if p.Value < 0 || p.Value > 23 {
		return DefaultHour
	}
	return p.Value
}

type dateLayout struct {
	layout  string
	hasTime bool
}

// accepted date layouts, tried in order
var dateLayouts = []dateLayout{
	{time.RFC3339, true},
	{"2006-01-02 15:04:05", true},
	{"2006-01-02T15:04:05", true},
	{"2006-01-02 15:04", true},
	{"2006/01/02 15:04:05", true},
	{"2006/01/02 15:04", true},
	{"2006-01-02", false},
	{"2006/01/02", false},
	{"20060102", false},
	{"01/02/2006", false},
	{"2006年01月02日", false},
	{"2006-1-2", false},
	{"2006/1/2", false},
	{"1/2/06 15:04:05", true},
	{"1/2/06 15:04", true},
	{"1/2/2006 15:04", true},
	{"01-02-06 15:04", true},
	{"1/2/06", false},
	{"1/2/2006", false},
	{"01-02-06", false},
}

// Excel serial day numbers accepted as dates: 1927-05-18 through 9999-12-31.
// Smaller numbers are more likely bare years than serials.
const (
	minExcelSerial = 10000
	maxExcelSerial = 2958465
)

// parseDate parses a date cell, reporting whether it carried a time of day
func parseDate(value string, loc *time.Location) (time.Time, bool, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false, false
	}
	for _, l := range dateLayouts {
		if ts, err := time.ParseInLocation(l.layout, value, loc); err == nil {
			return ts, l.hasTime, true
		}
	}
	return parseExcelSerial(value, loc)
}

// parseExcelSerial reads a spreadsheet date serial such as "45306" or
// "45306.354166". A fractional part carries the time of day.
func parseExcelSerial(value string, loc *time.Location) (time.Time, bool, bool) {
	serial, err := strconv.ParseFloat(value, 64)
	if err != nil || serial < minExcelSerial || serial > maxExcelSerial {
		return time.Time{}, false, false
	}
	ts, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false, false
	}
	local := time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), ts.Second(), 0, loc)
	return local, serial != math.Trunc(serial), true
}

// parseHour reads an hour of day from a time cell ("15:04", "15:04:05") or an
// hour cell ("15", "15.0")
func parseHour(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	for _, layout := range []string{"15:04:05", "15:04"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.Hour(), true
		}
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || f < 0 || f >= 24 {
		return 0, false
	}
	return int(f), true
}

// parseNumber parses a finite number; empty, malformed, NaN and infinite values fail
func parseNumber(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var userTypeSynonyms = map[string]string{
	"enterprise": domain.UserTypeEnterprise,
	"company":    domain.UserTypeEnterprise,
	"corporate":  domain.UserTypeEnterprise,
	"business":   domain.UserTypeEnterprise,
	"commercial": domain.UserTypeEnterprise,
	"企业":         domain.UserTypeEnterprise,
	"personal":   domain.UserTypePersonal,
	"individual": domain.UserTypePersonal,
	"private":    domain.UserTypePersonal,
	"consumer":   domain.UserTypePersonal,
	"个人":         domain.UserTypePersonal,
	"government": domain.UserTypeGovernment,
	"gov":        domain.UserTypeGovernment,
	"public":     domain.UserTypeGovernment,
	"政府":         domain.UserTypeGovernment,
	"other":      domain.UserTypeOther,
	"其他":         domain.UserTypeOther,
}

// normalizeUserType maps a user type cell onto the fixed categories.
// Unrecognized non-empty values become "other".
func normalizeUserType(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return domain.Unknown
	}
	if ut, ok := userTypeSynonyms[v]; ok {
		return ut
	}
	return domain.UserTypeOther
}

// Altitude bands for numeric altitudes in metres
const (
	BandVeryLow = "0-120m"
	BandLow     = "120-300m"
	BandMedium  = "300-600m"
	BandHigh    = "600m+"
)

// AltitudeBands lists the numeric bands in ascending order
var AltitudeBands = []string{BandVeryLow, BandLow, BandMedium, BandHigh}

// altitudeBand buckets a numeric altitude
func altitudeBand(metres float64) string {
	switch {
	case metres < 120:
		return BandVeryLow
	case metres < 300:
		return BandLow
	case metres < 600:
		return BandMedium
	default:
		return BandHigh
	}
}
