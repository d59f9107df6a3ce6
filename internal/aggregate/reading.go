package aggregate

import (
	"encoding/json"
	"time"

	"ipal-monitor/internal/models"
	"ipal-monitor/internal/quality"
)

// StatusUnknown is reported when a reading carries no analysis status.
const StatusUnknown = "unknown"

// ReadingSummary is the convenience view of the latest reading.
type ReadingSummary struct {
	HasData         bool                `json:"has_data"`
	ReadingID       string              `json:"reading_id,omitempty"`
	QualityScore    float64             `json:"quality_score"`
	Status          string              `json:"status"`
	Violations      []models.Violation  `json:"violations"`
	Recommendations []json.RawMessage   `json:"recommendations"`
	Inlet           *models.WaterParams `json:"inlet,omitempty"`
	Outlet          *models.WaterParams `json:"outlet,omitempty"`
	Timestamp       *time.Time          `json:"timestamp,omitempty"`

	// Grade is the status implied by QualityScore.
	Grade string        `json:"grade,omitempty"`
	Trend quality.Trend `json:"trend"`
	// Parameters grades every measured value by location, then parameter.
	Parameters map[string]map[string]string `json:"parameters,omitempty"`
}

// SummarizeReading derives the summary of r; nil means no reading yet.
func SummarizeReading(r *models.SensorReading) ReadingSummary {
	s := ReadingSummary{
		Status:          StatusUnknown,
		Violations:      []models.Violation{},
		Recommendations: []json.RawMessage{},
	}
	if r == nil {
		return s
	}

	s.HasData = true
	s.ReadingID = r.ID
	s.Inlet = r.Inlet
	s.Outlet = r.Outlet
	if !r.Timestamp.IsZero() {
		ts := r.Timestamp
		s.Timestamp = &ts
	}
	s.Parameters = gradeParameters(r)

	fa := r.FuzzyAnalysis
	if fa == nil {
		return s
	}
	s.QualityScore = fa.QualityScore
	s.Grade = quality.StatusForScore(fa.QualityScore)
	s.Trend = quality.TrendOf(s.Grade)
	if fa.Status != "" {
		s.Status = fa.Status
		if t := quality.TrendOf(fa.Status); t != quality.TrendUnknown {
			s.Trend = t
		}
	}
	if fa.Compliance != nil && fa.Compliance.Violations != nil {
		s.Violations = fa.Compliance.Violations
	}
	if fa.Recommendations != nil {
		s.Recommendations = fa.Recommendations
	}
	return s
}

func gradeParameters(r *models.SensorReading) map[string]map[string]string {
	out := make(map[string]map[string]string)
	for location, p := range map[string]*models.WaterParams{quality.Inlet: r.Inlet, quality.Outlet: r.Outlet} {
		if p == nil {
			continue
		}
		grades := make(map[string]string)
		for param, v := range map[string]*float64{
			"ph":          p.PH,
			"tds":         p.TDS,
			"temperature": p.Temperature,
			"turbidity":   p.Turbidity,
		} {
			if v == nil {
				continue
			}
			if status, ok := quality.ParameterStatus(param, *v, location); ok {
				grades[param] = status
			}
		}
		if len(grades) > 0 {
			out[location] = grades
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
