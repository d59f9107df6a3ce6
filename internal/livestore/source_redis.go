package livestore

import (
	"context"
	"fmt"
	"time"

	rediscommon "ipal-monitor/common/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// DefaultChangeStream is the stream document writers append changes to.
const DefaultChangeStream = "ipal:changes"

// RedisStreamSource reads changes from a Redis stream through a consumer group.
type RedisStreamSource struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	logger   *zap.Logger

	BatchSize int64
	Block     time.Duration
	StartID   string // group start position, "$" = only new entries
}

// NewRedisStreamSource creates a source; every process should use its own group.
func NewRedisStreamSource(client *redis.Client, stream, group, consumer string, logger *zap.Logger) *RedisStreamSource {
	return &RedisStreamSource{
		client:    client,
		stream:    stream,
		group:     group,
		consumer:  consumer,
		logger:    logger,
		BatchSize: 50,
		Block:     5 * time.Second,
		StartID:   "$",
	}
}

// Start implements Source.
func (s *RedisStreamSource) Start(ctx context.Context, emit func(Change)) error {
	if err := rediscommon.CreateConsumerGroup(ctx, s.client, s.stream, s.group, s.StartID); err != nil {
		return err
	}

	s.logger.Info("Redis change feed started",
		zap.String("stream", s.stream),
		zap.String("consumer_group", s.group),
		zap.String("consumer_name", s.consumer),
	)

	for {
		if ctx.Err() != nil {
			return nil
		}

		messages, err := rediscommon.ReadFromStream(ctx, s.client, s.stream, s.group, s.consumer, s.BatchSize, s.Block)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read from stream: %w", err)
		}

		ids := make([]string, 0, len(messages))
		for _, msg := range messages {
			ids = append(ids, msg.ID)
			c, err := changeFromValues(msg.Values)
			if err != nil {
				s.logger.Warn("Malformed change message",
					zap.String("message_id", msg.ID),
					zap.Error(err),
				)
				continue
			}
			emit(c)
		}

		if err := rediscommon.Ack(ctx, s.client, s.stream, s.group, ids...); err != nil {
			s.logger.Warn("Failed to ack change messages", zap.Int("count", len(ids)), zap.Error(err))
		}
	}
}

// PublishChange announces a change on a Redis stream.
func PublishChange(ctx context.Context, client *redis.Client, stream string, c Change) (string, error) {
	values := map[string]interface{}{
		"collection": c.Collection,
		"ipal_id":    c.FacilityID,
	}
	if c.DocID != "" {
		values["doc_id"] = c.DocID
	}
	return rediscommon.PublishToStream(ctx, client, stream, values)
}
