// Package mapper turns raw store snapshots into entities.
package mapper

import (
	"fmt"

	"ipal-monitor/internal/livestore"
	"ipal-monitor/internal/models"
)

// Map converts snap into entities in snapshot order. The id comes from the
// store document id; fields are copied so the snapshot is never shared or
// mutated. An empty snapshot yields an empty, non-nil slice.
func Map(snap livestore.Snapshot) []models.Entity {
	out := make([]models.Entity, 0, len(snap.Docs))
	for _, doc := range snap.Docs {
		out = append(out, entityOf(doc))
	}
	return out
}

func entityOf(doc models.Document) models.Entity {
	fields := make(map[string]any, len(doc.Data))
	for k, v := range doc.Data {
		if k == "id" {
			continue
		}
		fields[k] = v
	}
	facilityID, _ := models.AsInt(doc.Data[models.FieldFacilityID])
	return models.Entity{ID: doc.ID, FacilityID: facilityID, Fields: fields}
}

// ToAlerts decodes alert entities.
func ToAlerts(entities []models.Entity) ([]models.Alert, error) {
	alerts := make([]models.Alert, 0, len(entities))
	for _, e := range entities {
		var a models.Alert
		if err := e.Decode(&a); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

// ToReading decodes a sensor reading entity.
func ToReading(e models.Entity) (*models.SensorReading, error) {
	var r models.SensorReading
	if err := e.Decode(&r); err != nil {
		return nil, fmt.Errorf("reading: %w", err)
	}
	return &r, nil
}
