package livestore

import (
	"context"
	"encoding/json"
	"fmt"

	mqttcommon "ipal-monitor/common/mqtt"

	"go.uber.org/zap"
)

// DefaultChangeTopic matches ipal/<ipal_id>/<collection>/changed.
const DefaultChangeTopic = "ipal/+/+/changed"

// MQTTSubscriber is the part of the MQTT client the source needs.
type MQTTSubscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// MQTTPublisher is the part of the MQTT client writers need.
type MQTTPublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// ChangeTopic returns the topic announcing changes of collection for ipalID.
func ChangeTopic(ipalID int, collection string) string {
	return fmt.Sprintf("ipal/%d/%s/changed", ipalID, collection)
}

// PublishChangeMQTT announces a change on its MQTT topic.
func PublishChangeMQTT(pub MQTTPublisher, qos byte, c Change) error {
	if c.Collection == "" || c.FacilityID <= 0 {
		return fmt.Errorf("change needs a collection and ipal_id: %+v", c)
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return pub.Publish(ChangeTopic(c.FacilityID, c.Collection), qos, false, payload)
}

// MQTTSource reads changes announced on MQTT topics.
type MQTTSource struct {
	client MQTTSubscriber
	topic  string
	qos    byte
	logger *zap.Logger
}

// NewMQTTSource subscribes to topic (DefaultChangeTopic when empty).
func NewMQTTSource(client MQTTSubscriber, topic string, qos byte, logger *zap.Logger) *MQTTSource {
	if topic == "" {
		topic = DefaultChangeTopic
	}
	return &MQTTSource{client: client, topic: topic, qos: qos, logger: logger}
}

// Start implements Source.
func (s *MQTTSource) Start(ctx context.Context, emit func(Change)) error {
	err := s.client.Subscribe(s.topic, s.qos, func(topic string, payload []byte) error {
		c, err := changeFromTopic(topic, payload)
		if err != nil {
			return err
		}
		emit(c)
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("MQTT change feed started", zap.String("topic", s.topic))

	<-ctx.Done()
	if err := s.client.Unsubscribe(s.topic); err != nil {
		s.logger.Warn("Failed to unsubscribe change topic", zap.String("topic", s.topic), zap.Error(err))
	}
	return nil
}
