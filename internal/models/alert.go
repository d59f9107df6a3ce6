package models

import "time"

// Alert lifecycle statuses.
const (
	AlertStatusActive       = "active"
	AlertStatusAcknowledged = "acknowledged"
	AlertStatusResolved     = "resolved"
)

// Alert severities. Matching is exact and case-sensitive.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Alert types produced by the backend analysis.
const (
	AlertTypeViolation   = "VIOLATION"
	AlertTypeSensorFault = "SENSOR_FAULT"
)

// Alert is an alert document (collection "alerts").
type Alert struct {
	ID         string     `json:"id"`
	IPALID     int        `json:"ipal_id"`
	Type       string     `json:"type"`
	Severity   string     `json:"severity"`
	Status     string     `json:"status"`
	Parameter  string     `json:"parameter,omitempty"`
	Location   string     `json:"location,omitempty"`
	Message    string     `json:"message,omitempty"`
	Value      *float64   `json:"value,omitempty"`
	Threshold  *float64   `json:"threshold,omitempty"`
	ReadingID  string     `json:"reading_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	HandledBy  string     `json:"handled_by,omitempty"`
}

// AlertStats is the /api/alerts/stats payload.
type AlertStats struct {
	Total        int            `json:"total"`
	Active       int            `json:"active"`
	Acknowledged int            `json:"acknowledged"`
	Resolved     int            `json:"resolved"`
	BySeverity   map[string]int `json:"by_severity,omitempty"`
	ByParameter  map[string]int `json:"by_parameter,omitempty"`
}
