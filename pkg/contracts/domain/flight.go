package domain

import (
	"time"
)

// Canonical field names produced by the schema normalizer
const (
	FieldDate     = "date"
	FieldTime     = "time"
	FieldHour     = "hour"
	FieldRegion   = "region"
	FieldEntity   = "entity"
	FieldUserType = "user_type"
	FieldAircraft = "aircraft"
	FieldDuration = "duration"
	FieldDistance = "distance"
	FieldAltitude = "altitude"
	FieldSorties  = "sorties"
)

// RequiredFields lists the canonical fields every input table must resolve
var RequiredFields = []string{FieldDate, FieldRegion, FieldDuration, FieldDistance, FieldEntity}

// User type categories
const (
	UserTypeEnterprise = "enterprise"
	UserTypePersonal   = "personal"
	UserTypeGovernment = "government"
	UserTypeOther      = "other"
)

// Unknown is the placeholder for empty categorical values after repair
const Unknown = "unknown"

// FlightRecord is one observed flight or aggregated operation unit after validation
type FlightRecord struct {
	Timestamp       time.Time         `json:"timestamp"`
	HasTime         bool              `json:"has_time"`
	Hour            int               `json:"hour"`
	Region          string            `json:"region"`
	Entity          string            `json:"entity"`
	UserType        string            `json:"user_type"`
	Aircraft        string            `json:"aircraft"`
	Duration        float64           `json:"duration"` // minutes
	Distance        float64           `json:"distance"` // km
	Altitude        float64           `json:"altitude,omitempty"`
	AltitudeBand    string            `json:"altitude_band"`
	AltitudeNumeric bool              `json:"altitude_numeric"`
	Sorties         int               `json:"sorties"`
	Extra           map[string]string `json:"extra,omitempty"`
}

// Month returns the YYYY-MM period key of the record
func (r FlightRecord) Month() string {
	return r.Timestamp.Format("2006-01")
}

// Day returns the calendar day of the record truncated to midnight UTC
func (r FlightRecord) Day() time.Time {
	y, m, d := r.Timestamp.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsWeekend reports whether the record falls on Saturday or Sunday
func (r FlightRecord) IsWeekend() bool {
	wd := r.Timestamp.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
