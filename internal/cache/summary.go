package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ipal-monitor/internal/aggregate"
	"ipal-monitor/internal/counter"

	"go.uber.org/zap"
)

// Defaults for SummaryCache.
const (
	DefaultPrefix = "ipal"
	DefaultTTL    = 5 * time.Minute
)

// AlertSummary is the cached view of a facility's live alerts.
type AlertSummary struct {
	IPALID      int           `json:"ipal_id"`
	Aggregates  aggregate.Set `json:"aggregates"`
	LatestType  string        `json:"latest_type,omitempty"`
	NewAlertIDs []string      `json:"new_alert_ids,omitempty"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// SummaryCache writes facility summaries under <prefix>:<ipal_id>:...
type SummaryCache struct {
	kv     KVStore
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewSummaryCache creates a cache; empty prefix and non-positive ttl take the defaults.
func NewSummaryCache(kv KVStore, prefix string, ttl time.Duration, logger *zap.Logger) *SummaryCache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SummaryCache{kv: kv, prefix: prefix, ttl: ttl, logger: logger}
}

// AlertsKey is the key of the alert summary.
func (c *SummaryCache) AlertsKey(ipalID int) string {
	return fmt.Sprintf("%s:%d:alerts:summary", c.prefix, ipalID)
}

// CountsKey is the key of the server-side counts.
func (c *SummaryCache) CountsKey(ipalID int) string {
	return fmt.Sprintf("%s:%d:alerts:counts", c.prefix, ipalID)
}

// ReadingKey is the key of the latest reading summary.
func (c *SummaryCache) ReadingKey(ipalID int) string {
	return fmt.Sprintf("%s:%d:reading:latest", c.prefix, ipalID)
}

// PutAlerts stores the alert summary.
func (c *SummaryCache) PutAlerts(ctx context.Context, s AlertSummary) error {
	return c.put(ctx, c.AlertsKey(s.IPALID), s)
}

// GetAlerts loads the alert summary.
func (c *SummaryCache) GetAlerts(ctx context.Context, ipalID int) (*AlertSummary, error) {
	var s AlertSummary
	if err := c.get(ctx, c.AlertsKey(ipalID), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// PutCounts stores server-side counts.
func (c *SummaryCache) PutCounts(ctx context.Context, counts counter.Counts) error {
	return c.put(ctx, c.CountsKey(counts.FacilityID), counts)
}

// GetCounts loads server-side counts.
func (c *SummaryCache) GetCounts(ctx context.Context, ipalID int) (*counter.Counts, error) {
	var counts counter.Counts
	if err := c.get(ctx, c.CountsKey(ipalID), &counts); err != nil {
		return nil, err
	}
	return &counts, nil
}

// PutReading stores the latest reading summary.
func (c *SummaryCache) PutReading(ctx context.Context, ipalID int, s aggregate.ReadingSummary) error {
	return c.put(ctx, c.ReadingKey(ipalID), s)
}

// GetReading loads the latest reading summary.
func (c *SummaryCache) GetReading(ctx context.Context, ipalID int) (*aggregate.ReadingSummary, error) {
	var s aggregate.ReadingSummary
	if err := c.get(ctx, c.ReadingKey(ipalID), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Clear removes every summary of a facility.
func (c *SummaryCache) Clear(ctx context.Context, ipalID int) error {
	if err := c.kv.Del(ctx, c.AlertsKey(ipalID), c.CountsKey(ipalID), c.ReadingKey(ipalID)); err != nil {
		return fmt.Errorf("failed to clear cache for ipal %d: %w", ipalID, err)
	}
	return nil
}

func (c *SummaryCache) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := c.kv.Set(ctx, key, string(data), c.ttl); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	c.logger.Debug("Updated summary cache",
		zap.String("key", key),
		zap.Duration("ttl", c.ttl),
	)
	return nil
}

func (c *SummaryCache) get(ctx context.Context, key string, dest any) error {
	val, err := c.kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}
