package aggregate

import (
	"fmt"
	"testing"
	"time"

	"ipal-monitor/internal/models"
	"ipal-monitor/internal/quality"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alert(id, status, severity, typ string) models.Entity {
	fields := map[string]any{models.FieldFacilityID: 7}
	if status != "" {
		fields[models.FieldStatus] = status
	}
	if severity != "" {
		fields[models.FieldSeverity] = severity
	}
	if typ != "" {
		fields[models.FieldType] = typ
	}
	return models.Entity{ID: id, FacilityID: 7, Fields: fields}
}

func TestAggregate_Empty(t *testing.T) {
	s := Aggregate(nil)
	assert.Equal(t, Set{}, s)
	assert.False(t, s.HasAlerts())
	assert.False(t, s.HasCritical())
}

func TestAggregate_Buckets(t *testing.T) {
	entities := []models.Entity{
		alert("1", "active", "critical", "VIOLATION"),
		alert("2", "active", "high", "SENSOR_FAULT"),
		alert("3", "acknowledged", "medium", "REDUCTION_EFFECTIVENESS_LOW"),
		alert("4", "resolved", "low", "VIOLATION"),
		alert("5", "", "", ""),
		alert("6", "archived", "urgent", "OTHER"),
	}

	s := Aggregate(entities)
	assert.Equal(t, 6, s.Total)
	assert.Equal(t, StatusCounts{Active: 2, Acknowledged: 1, Resolved: 1}, s.Status)
	assert.Equal(t, SeverityCounts{Critical: 1, High: 1, Medium: 1, Low: 1}, s.Severity)
	assert.Equal(t, TypeCounts{Violation: 2, SensorFault: 1, Effectiveness: 1}, s.Type)
	assert.True(t, s.HasCritical())
	assert.True(t, s.HasHigh())
	assert.True(t, s.HasAlerts())
}

func TestAggregate_SeverityIsCaseSensitive(t *testing.T) {
	s := Aggregate([]models.Entity{alert("1", "active", "Critical", "VIOLATION")})

	assert.Equal(t, 1, s.Total)
	assert.Equal(t, 0, s.Severity.Critical)
	assert.False(t, s.HasCritical())
}

func TestAggregate_EffectivenessIsFuzzy(t *testing.T) {
	tests := []struct {
		typ  string
		want int
	}{
		{"REDUCTION_EFFECTIVENESS_LOW", 1},
		{"TDS_REDUCTION", 1},
		{"LOW_EFFECTIVENESS", 1},
		{"EFFECTIVENESS", 1},
		{"reduction_effectiveness_low", 0},
		{"VIOLATION", 0},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			s := Aggregate([]models.Entity{alert("1", "active", "high", tt.typ)})
			assert.Equal(t, tt.want, s.Type.Effectiveness)
		})
	}
}

func TestAggregate_ExactBucketsNeverExceedTotal(t *testing.T) {
	statuses := []string{"active", "acknowledged", "resolved", "Active", ""}
	severities := []string{"critical", "high", "medium", "low", "HIGH", ""}
	types := []string{"VIOLATION", "SENSOR_FAULT", "REDUCTION_EFFECTIVENESS_LOW", ""}

	var entities []models.Entity
	for i := 0; i < 60; i++ {
		entities = append(entities, alert(fmt.Sprint(i),
			statuses[i%len(statuses)], severities[i%len(severities)], types[i%len(types)]))

		s := Aggregate(entities)
		require.Equal(t, len(entities), s.Total)
		assert.LessOrEqual(t, s.Status.Active+s.Status.Acknowledged+s.Status.Resolved, s.Total)
		assert.LessOrEqual(t, s.Severity.Critical+s.Severity.High+s.Severity.Medium+s.Severity.Low, s.Total)
		assert.LessOrEqual(t, s.Type.Violation+s.Type.SensorFault, s.Total)
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	entities := []models.Entity{
		alert("1", "active", "critical", "VIOLATION"),
		alert("2", "active", "high", "TDS_REDUCTION"),
	}
	assert.Equal(t, Aggregate(entities), Aggregate(entities))
	assert.True(t, Aggregate(entities) == Aggregate(entities))
}

func TestSelectors(t *testing.T) {
	entities := []models.Entity{
		alert("1", "active", "critical", "VIOLATION"),
		alert("2", "active", "high", "TDS_REDUCTION"),
		alert("3", "active", "critical", "SENSOR_FAULT"),
	}

	assert.Len(t, WithSeverity(entities, "critical"), 2)
	assert.Len(t, WithType(entities, "SENSOR_FAULT"), 1)
	eff := Effectiveness(entities)
	require.Len(t, eff, 1)
	assert.Equal(t, "2", eff[0].ID)
	assert.NotNil(t, WithSeverity(entities, "low"))
}

func TestSummarizeReading(t *testing.T) {
	empty := SummarizeReading(nil)
	assert.False(t, empty.HasData)
	assert.Equal(t, StatusUnknown, empty.Status)
	assert.Empty(t, empty.Violations)
	assert.NotNil(t, empty.Recommendations)

	ph := 7.2
	ts := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	r := &models.SensorReading{
		ID:        "r1",
		IPALID:    7,
		Timestamp: ts,
		Outlet:    &models.WaterParams{PH: &ph},
		FuzzyAnalysis: &models.FuzzyAnalysis{
			QualityScore: 64,
			Compliance: &models.Compliance{Violations: []models.Violation{
				{Parameter: "tds", Location: "outlet"},
			}},
		},
	}

	s := SummarizeReading(r)
	assert.True(t, s.HasData)
	assert.Equal(t, "r1", s.ReadingID)
	assert.Equal(t, 64.0, s.QualityScore)
	assert.Equal(t, StatusUnknown, s.Status)
	assert.Len(t, s.Violations, 1)
	require.NotNil(t, s.Timestamp)
	assert.True(t, s.Timestamp.Equal(ts))
	assert.Same(t, r.Outlet, s.Outlet)
	assert.Equal(t, quality.Fair, s.Grade)
	assert.Equal(t, quality.TrendNeutral, s.Trend)
	assert.Equal(t, map[string]map[string]string{
		quality.Outlet: {"ph": quality.ParamExcellent},
	}, s.Parameters)

	r.FuzzyAnalysis.Status = "Buruk"
	s = SummarizeReading(r)
	assert.Equal(t, "Buruk", s.Status)
	assert.Equal(t, quality.TrendDown, s.Trend)
}
