package schema

import (
	"fmt"
	"log/slog"
	"strings"

	apierrors "github.com/LASER-IDEA/white-paper-sub000/internal/errors"
	"github.com/LASER-IDEA/white-paper-sub000/pkg/contracts/domain"
)

// Mapping declares, per canonical field, the accepted input column names in
// priority order
type Mapping map[string][]string

// DefaultMapping returns the synonym table for the flight event feeds we ingest
func DefaultMapping() Mapping {
	return Mapping{
		domain.FieldDate:     {"date", "flight_date", "timestamp", "datetime", "start_time", "takeoff_time", "日期", "飞行日期", "起飞时间"},
		domain.FieldTime:     {"time", "time_of_day", "时间"},
		domain.FieldHour:     {"hour", "hour_of_day", "小时"},
		domain.FieldRegion:   {"region", "area", "district", "city", "province", "地区", "区域", "行政区"},
		domain.FieldEntity:   {"entity", "operator", "enterprise", "company", "operator_id", "entity_id", "运营主体", "企业", "运营商"},
		domain.FieldUserType: {"user_type", "usertype", "customer_type", "用户类型"},
		domain.FieldAircraft: {"aircraft_model", "aircraft", "model", "aircraft_type", "机型", "航空器型号"},
		domain.FieldDuration: {"duration", "duration_min", "flight_duration", "flight_time", "飞行时长", "时长"},
		domain.FieldDistance: {"distance", "distance_km", "flight_distance", "飞行距离", "距离"},
		domain.FieldAltitude: {"altitude", "altitude_band", "height", "altitude_m", "飞行高度", "高度"},
		domain.FieldSorties:  {"sorties", "sortie_count", "flight_count", "flights", "架次"},
	}
}

// Normalizer resolves input headers to canonical field names
type Normalizer struct {
	mapping  Mapping
	lookup   map[string]synonymRef
	required []string
	logger   *slog.Logger
}

type synonymRef struct {
	field    string
	priority int
}

// NewNormalizer validates the mapping and builds the header lookup.
// Construction fails when a required field has no declared synonym or when one
// synonym is claimed by two canonical fields.
func NewNormalizer(mapping Mapping, logger *slog.Logger) (*Normalizer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var missing []string
	for _, field := range domain.RequiredFields {
		if len(mapping[field]) == 0 {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("invalid column mapping: %w", apierrors.NewMissingColumnError(missing...))
	}

	lookup := make(map[string]synonymRef)
	for field, synonyms := range mapping {
		for i, syn := range synonyms {
			key := foldHeader(syn)
			if existing, ok := lookup[key]; ok && existing.field != field {
				return nil, fmt.Errorf("invalid column mapping: synonym %q declared for both %s and %s", syn, existing.field, field)
			}
			lookup[key] = synonymRef{field: field, priority: i}
		}
	}

	return &Normalizer{
		mapping:  mapping,
		lookup:   lookup,
		required: domain.RequiredFields,
		logger:   logger,
	}, nil
}

// Normalize renames recognized columns to canonical names and leaves the rest
// untouched. No cell values are inspected.
func (n *Normalizer) Normalize(raw RawTable) (*NormalizedTable, error) {
	columns := make([]string, len(raw.Columns))
	copy(columns, raw.Columns)

	canonical := make(map[string]int)
	bestPriority := make(map[string]int)

	for i, header := range raw.Columns {
		ref, ok := n.lookup[foldHeader(header)]
		if !ok {
			continue
		}
		if prev, taken := canonical[ref.field]; taken {
			if ref.priority >= bestPriority[ref.field] {
				n.logger.Debug("column shadowed by higher priority synonym",
					slog.String("column", header),
					slog.String("field", ref.field))
				continue
			}
			// the earlier column loses and becomes a passthrough again
			columns[prev] = raw.Columns[prev]
		}
		canonical[ref.field] = i
		bestPriority[ref.field] = ref.priority
		columns[i] = ref.field
	}

	var missing []string
	for _, field := range n.required {
		if _, ok := canonical[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		n.logger.Error("required columns not found",
			slog.Any("missing", missing),
			slog.Any("columns", raw.Columns))
		return nil, apierrors.NewMissingColumnError(missing...)
	}

	var extras []int
	for i := range columns {
		isCanonical := false
		for _, idx := range canonical {
			if idx == i {
				isCanonical = true
				break
			}
		}
		if !isCanonical {
			extras = append(extras, i)
		}
	}

	n.logger.Debug("columns normalized",
		slog.Int("resolved", len(canonical)),
		slog.Int("passthrough", len(extras)))

	return &NormalizedTable{
		Columns:   columns,
		Rows:      raw.Rows,
		canonical: canonical,
		extras:    extras,
	}, nil
}

// foldHeader lowercases and trims a header, folding spaces and hyphens to underscores
func foldHeader(header string) string {
	h := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header, "\ufeff")))
	h = strings.NewReplacer(" ", "_", "-", "_").Replace(h)
	return h
}
