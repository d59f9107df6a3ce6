package livestore

import (
	"encoding/json"
	"fmt"
	"strings"

	"ipal-monitor/internal/models"
)

// ParseChange decodes a JSON change notification.
func ParseChange(payload []byte) (Change, error) {
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Change{}, fmt.Errorf("failed to decode change: %w", err)
	}
	return changeFromValues(raw)
}

// changeFromValues reads a change from loosely typed values, either directly
// or from a JSON encoded "data" field.
func changeFromValues(values map[string]any) (Change, error) {
	if data, ok := values["data"].(string); ok {
		return ParseChange([]byte(data))
	}

	var c Change
	if collection, ok := values["collection"].(string); ok {
		c.Collection = collection
	}
	if v, ok := values[models.FieldFacilityID]; ok && v != nil {
		id, ok := models.AsInt(v)
		if !ok {
			return Change{}, fmt.Errorf("invalid ipal_id in change: %v", v)
		}
		c.FacilityID = id
	}
	if docID, ok := values["doc_id"].(string); ok {
		c.DocID = docID
	}
	return c, nil
}

// changeFromTopic reads a change from an MQTT topic of the form
// ipal/<ipal_id>/<collection>/changed. A JSON payload, when present, may add
// the document id.
func changeFromTopic(topic string, payload []byte) (Change, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != "ipal" || parts[3] != "changed" {
		return Change{}, fmt.Errorf("unexpected change topic %q", topic)
	}
	id, ok := models.AsInt(parts[1])
	if !ok {
		return Change{}, fmt.Errorf("invalid ipal_id in topic %q", topic)
	}
	c := Change{Collection: parts[2], FacilityID: id}

	if len(payload) > 0 {
		if body, err := ParseChange(payload); err == nil && body.DocID != "" {
			c.DocID = body.DocID
		}
	}
	return c, nil
}
