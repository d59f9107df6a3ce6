package models

import "time"

// Facility statuses (IPAL and sensor).
const (
	FacilityStatusActive      = "active"
	FacilityStatusMaintenance = "maintenance"
	FacilityStatusInactive    = "inactive"
)

// Coordinates is a geographic point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Facility is an IPAL as returned by the REST backend.
type Facility struct {
	IPALID           int          `json:"ipal_id"`
	Location         string       `json:"ipal_location"`
	Description      string       `json:"ipal_description,omitempty"`
	Address          string       `json:"address,omitempty"`
	Capacity         string       `json:"capacity,omitempty"`
	ContactPerson    string       `json:"contact_person,omitempty"`
	ContactPhone     string       `json:"contact_phone,omitempty"`
	Coordinates      *Coordinates `json:"coordinates,omitempty"`
	OperationalHours string       `json:"operational_hours,omitempty"`
	Status           string       `json:"status,omitempty"`
	SensorCount      int          `json:"sensor_count,omitempty"`
	CreatedAt        *time.Time   `json:"created_at,omitempty"`
}

// FacilityStats is the /api/ipals/{id}/stats payload.
type FacilityStats struct {
	IPALID          int      `json:"ipal_id"`
	TotalSensors    int      `json:"total_sensors"`
	OnlineSensors   int      `json:"online_sensors"`
	TotalReadings   int      `json:"total_readings"`
	ActiveAlerts    int      `json:"active_alerts"`
	AvgQualityScore *float64 `json:"avg_quality_score,omitempty"`
}

// Sensor is sensor metadata.
type Sensor struct {
	ID          string     `json:"id"`
	IPALID      int        `json:"ipal_id"`
	SensorType  string     `json:"sensor_type"`
	Location    string     `json:"sensor_location,omitempty"`
	Status      string     `json:"status,omitempty"`
	IsOnline    bool       `json:"is_online,omitempty"`
	LastReading *time.Time `json:"last_reading_at,omitempty"`
}

// SensorList is the sensor listing with online/offline counts.
type SensorList struct {
	Sensors      []Sensor `json:"data"`
	Count        int      `json:"count"`
	OnlineCount  int      `json:"online_count"`
	OfflineCount int      `json:"offline_count"`
}

// User is an admin account.
type User struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	Role        string `json:"role,omitempty"`
}
