package api

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"ipal-monitor/internal/models"
)

// ReadingFilter selects sensor readings.
type ReadingFilter struct {
	IPALID    int
	Limit     int    // default 50
	Order     string // "desc" (default) or "asc"
	StartDate *time.Time
	EndDate   *time.Time
}

func (f ReadingFilter) params() map[string]string {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	order := f.Order
	if order == "" {
		order = "desc"
	}
	p := map[string]string{
		"ipal_id": strconv.Itoa(f.IPALID),
		"limit":   strconv.Itoa(limit),
		"order":   order,
	}
	addDates(p, f.StartDate, f.EndDate)
	return p
}

// SensorFilter selects sensors.
type SensorFilter struct {
	IPALID     int
	SensorType string
	Status     string
	Limit      int // default 50
}

// SensorLatest is a sensor with its latest reading.
type SensorLatest struct {
	Success bool                  `json:"success"`
	Sensor  *models.Sensor        `json:"sensor,omitempty"`
	Reading *models.SensorReading `json:"latest_reading,omitempty"`
}

// SensorHistory is a sensor's reading history.
type SensorHistory struct {
	Success  bool                   `json:"success"`
	SensorID string                 `json:"sensor_id,omitempty"`
	Count    int                    `json:"count"`
	Data     []models.SensorReading `json:"data"`
}

// SensorService reads sensors and their readings.
type SensorService struct {
	c *Client
}

// NewSensorService creates the service.
func NewSensorService(c *Client) *SensorService {
	return &SensorService{c: c}
}

// Readings returns sensor readings.
func (s *SensorService) Readings(ctx context.Context, f ReadingFilter) ([]models.SensorReading, error) {
	readings := make([]models.SensorReading, 0)
	if _, err := s.c.getData(ctx, "/api/sensors/readings", f.params(), &readings); err != nil {
		return nil, err
	}
	return readings, nil
}

// LatestReading returns the newest reading of a facility, or nil.
func (s *SensorService) LatestReading(ctx context.Context, ipalID int) (*models.SensorReading, error) {
	readings, err := s.Readings(ctx, ReadingFilter{IPALID: ipalID, Limit: 1, Order: "desc"})
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, nil
	}
	return &readings[0], nil
}

// List returns sensors with online/offline counts.
func (s *SensorService) List(ctx context.Context, f SensorFilter) (*models.SensorList, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	params := map[string]string{"limit": strconv.Itoa(limit)}
	if f.IPALID > 0 {
		params["ipal_id"] = strconv.Itoa(f.IPALID)
	}
	if f.SensorType != "" {
		params["sensor_type"] = f.SensorType
	}
	if f.Status != "" {
		params["status"] = f.Status
	}

	list := &models.SensorList{}
	if err := s.c.Get(ctx, "/api/sensors", params, list); err != nil {
		return nil, err
	}
	if list.Sensors == nil {
		list.Sensors = []models.Sensor{}
	}
	return list, nil
}

// Get returns one sensor.
func (s *SensorService) Get(ctx context.Context, sensorID string) (*models.Sensor, error) {
	var sensor models.Sensor
	if _, err := s.c.getData(ctx, "/api/sensors/"+url.PathEscape(sensorID), nil, &sensor); err != nil {
		return nil, err
	}
	return &sensor, nil
}

// Latest returns a sensor together with its latest reading.
func (s *SensorService) Latest(ctx context.Context, sensorID string) (*SensorLatest, error) {
	var out SensorLatest
	if err := s.c.Get(ctx, "/api/sensors/"+url.PathEscape(sensorID)+"/latest", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// History returns a sensor's readings; limit defaults to 100.
func (s *SensorService) History(ctx context.Context, sensorID string, limit int, start, end *time.Time) (*SensorHistory, error) {
	if limit <= 0 {
		limit = 100
	}
	params := map[string]string{"limit": strconv.Itoa(limit)}
	addDates(params, start, end)

	var out SensorHistory
	if err := s.c.Get(ctx, "/api/sensors/"+url.PathEscape(sensorID)+"/history", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func addDates(p map[string]string, start, end *time.Time) {
	if start != nil {
		p["start_date"] = start.UTC().Format(time.RFC3339)
	}
	if end != nil {
		p["end_date"] = end.UTC().Format(time.RFC3339)
	}
}
