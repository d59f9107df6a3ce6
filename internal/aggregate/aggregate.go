// Package aggregate derives counts from an entity sequence.
//
// Status and severity buckets match exactly and case-sensitively: "Critical"
// is not "critical". The effectiveness type bucket is different on purpose:
// any type containing EFFECTIVENESS or REDUCTION belongs to it, so it may
// overlap the exact type buckets.
package aggregate

import (
	"strings"

	"ipal-monitor/internal/models"
)

// StatusCounts buckets entities by status.
type StatusCounts struct {
	Active       int `json:"active"`
	Acknowledged int `json:"acknowledged"`
	Resolved     int `json:"resolved"`
}

// SeverityCounts buckets entities by severity.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// TypeCounts buckets entities by type.
type TypeCounts struct {
	Violation     int `json:"violation"`
	SensorFault   int `json:"sensor_fault"`
	Effectiveness int `json:"effectiveness"`
}

// Set is the aggregate of one entity sequence. It is comparable with ==.
type Set struct {
	Total    int            `json:"total"`
	Status   StatusCounts   `json:"status"`
	Severity SeverityCounts `json:"severity"`
	Type     TypeCounts     `json:"type"`
}

// HasCritical reports a non-empty critical bucket.
func (s Set) HasCritical() bool { return s.Severity.Critical > 0 }

// HasHigh reports a non-empty high bucket.
func (s Set) HasHigh() bool { return s.Severity.High > 0 }

// HasAlerts reports a non-empty sequence.
func (s Set) HasAlerts() bool { return s.Total > 0 }

// Aggregate computes the Set of entities. Unknown or missing values count
// toward Total only.
func Aggregate(entities []models.Entity) Set {
	var s Set
	s.Total = len(entities)

	for _, e := range entities {
		switch e.String(models.FieldStatus) {
		case models.AlertStatusActive:
			s.Status.Active++
		case models.AlertStatusAcknowledged:
			s.Status.Acknowledged++
		case models.AlertStatusResolved:
			s.Status.Resolved++
		}

		switch e.String(models.FieldSeverity) {
		case models.SeverityCritical:
			s.Severity.Critical++
		case models.SeverityHigh:
			s.Severity.High++
		case models.SeverityMedium:
			s.Severity.Medium++
		case models.SeverityLow:
			s.Severity.Low++
		}

		typ := e.String(models.FieldType)
		switch typ {
		case models.AlertTypeViolation:
			s.Type.Violation++
		case models.AlertTypeSensorFault:
			s.Type.SensorFault++
		}
		if IsEffectivenessType(typ) {
			s.Type.Effectiveness++
		}
	}
	return s
}

// IsEffectivenessType is the fuzzy effectiveness classification.
func IsEffectivenessType(typ string) bool {
	return strings.Contains(typ, "EFFECTIVENESS") || strings.Contains(typ, "REDUCTION")
}

// WithSeverity returns the entities whose severity is exactly severity.
func WithSeverity(entities []models.Entity, severity string) []models.Entity {
	return filter(entities, func(e models.Entity) bool {
		return e.String(models.FieldSeverity) == severity
	})
}

// WithType returns the entities whose type is exactly typ.
func WithType(entities []models.Entity, typ string) []models.Entity {
	return filter(entities, func(e models.Entity) bool {
		return e.String(models.FieldType) == typ
	})
}

// Effectiveness returns the entities of the fuzzy effectiveness bucket.
func Effectiveness(entities []models.Entity) []models.Entity {
	return filter(entities, func(e models.Entity) bool {
		return IsEffectivenessType(e.String(models.FieldType))
	})
}

func filter(entities []models.Entity, keep func(models.Entity) bool) []models.Entity {
	out := make([]models.Entity, 0)
	for _, e := range entities {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
