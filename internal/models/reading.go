package models

import (
	"encoding/json"
	"time"
)

// WaterParams are the measured values at one sampling point.
type WaterParams struct {
	PH          *float64 `json:"ph,omitempty"`
	TDS         *float64 `json:"tds,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Turbidity   *float64 `json:"turbidity,omitempty"`
}

// Violation is a compliance violation found by the fuzzy analysis.
type Violation struct {
	Parameter string   `json:"parameter"`
	Location  string   `json:"location,omitempty"`
	Value     *float64 `json:"value,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
	Severity  string   `json:"severity,omitempty"`
	Message   string   `json:"message,omitempty"`
}

// Compliance groups violations.
type Compliance struct {
	IsCompliant bool        `json:"is_compliant"`
	Violations  []Violation `json:"violations,omitempty"`
}

// FuzzyAnalysis is the nested analysis block of a reading.
type FuzzyAnalysis struct {
	QualityScore    float64           `json:"quality_score"`
	Status          string            `json:"status"`
	Compliance      *Compliance       `json:"compliance,omitempty"`
	Recommendations []json.RawMessage `json:"recommendations,omitempty"`
}

// SensorReading is a reading document (collection "sensor_readings").
type SensorReading struct {
	ID            string         `json:"id"`
	IPALID        int            `json:"ipal_id"`
	Timestamp     time.Time      `json:"timestamp"`
	Inlet         *WaterParams   `json:"inlet,omitempty"`
	Outlet        *WaterParams   `json:"outlet,omitempty"`
	FuzzyAnalysis *FuzzyAnalysis `json:"fuzzy_analysis,omitempty"`
}
