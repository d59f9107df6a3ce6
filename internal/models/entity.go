package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Collection names in the live document store.
const (
	CollectionAlerts         = "alerts"
	CollectionSensorReadings = "sensor_readings"
)

// Field names shared by both collections.
const (
	FieldFacilityID = "ipal_id"
	FieldStatus     = "status"
	FieldSeverity   = "severity"
	FieldType       = "type"
	FieldCreatedAt  = "created_at"
	FieldTimestamp  = "timestamp"
)

// Document is a raw document as delivered by the store.
type Document struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

// Entity is a mapped document: the store id plus its fields.
type Entity struct {
	ID         string         `json:"id"`
	FacilityID int            `json:"ipal_id"`
	Fields     map[string]any `json:"fields"`
}

// String returns a string field, or "" when missing or not a string.
func (e Entity) String(field string) string {
	if e.Fields == nil {
		return ""
	}
	s, _ := e.Fields[field].(string)
	return s
}

// Time returns a timestamp field. RFC3339 strings, time.Time values and unix
// seconds are accepted; anything else yields the zero time.
func (e Entity) Time(field string) time.Time {
	if e.Fields == nil {
		return time.Time{}
	}
	return AsTime(e.Fields[field])
}

// Decode unmarshals the entity (id + fields) into dest.
func (e Entity) Decode(dest any) error {
	raw := make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		raw[k] = v
	}
	raw["id"] = e.ID

	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal entity %s: %w", e.ID, err)
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return fmt.Errorf("failed to decode entity %s: %w", e.ID, err)
	}
	return nil
}

// AsInt converts the numeric representations a store may hand back.
func AsInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// AsTime converts a stored timestamp value.
func AsTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed
		}
	case int64:
		return time.Unix(t, 0).UTC()
	case int:
		return time.Unix(int64(t), 0).UTC()
	case float64:
		return time.Unix(int64(t), 0).UTC()
	}
	return time.Time{}
}
