// Package counter polls server-side alert counts for one facility.
package counter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ipal-monitor/internal/livequery"
	"ipal-monitor/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultInterval is the polling cadence.
const DefaultInterval = 60 * time.Second

// CountStore counts documents without transferring them.
type CountStore interface {
	CountFromServer(ctx context.Context, q livequery.Query) (int64, error)
}

// Counts is one consistent tick of counts. Total equals Active.
type Counts struct {
	FacilityID int       `json:"ipal_id"`
	Total      int64     `json:"total"`
	Active     int64     `json:"active"`
	Critical   int64     `json:"critical"`
	High       int64     `json:"high"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// HasCritical reports critical active alerts.
func (c Counts) HasCritical() bool { return c.Critical > 0 }

// HasHigh reports high active alerts.
func (c Counts) HasHigh() bool { return c.High > 0 }

// AlertCounter fetches active/critical/high counts and, once started, keeps
// them fresh until stopped.
type AlertCounter struct {
	store    CountStore
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger

	mu       sync.RWMutex
	current  Counts
	lastErr  error
	loading  bool
	onUpdate func(Counts)

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewAlertCounter creates a counter; interval <= 0 means DefaultInterval.
func NewAlertCounter(store CountStore, interval time.Duration, logger *zap.Logger) *AlertCounter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &AlertCounter{
		store:    store,
		interval: interval,
		timeout:  15 * time.Second,
		logger:   logger,
	}
}

// OnUpdate registers fn to receive every published tick. Set it before Start.
func (c *AlertCounter) OnUpdate(fn func(Counts)) {
	c.mu.Lock()
	c.onUpdate = fn
	c.mu.Unlock()
}

// Fetch runs the three counts concurrently and returns them only when all
// succeeded. A non-positive facility id returns zero counts without a query.
func (c *AlertCounter) Fetch(ctx context.Context, facilityID int) (Counts, error) {
	if facilityID <= 0 {
		return Counts{}, nil
	}

	active, err := countQuery(facilityID, "")
	if err != nil {
		return Counts{}, err
	}
	critical, err := countQuery(facilityID, models.SeverityCritical)
	if err != nil {
		return Counts{}, err
	}
	high, err := countQuery(facilityID, models.SeverityHigh)
	if err != nil {
		return Counts{}, err
	}

	var nActive, nCritical, nHigh int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := c.store.CountFromServer(gctx, active)
		nActive = n
		return err
	})
	g.Go(func() error {
		n, err := c.store.CountFromServer(gctx, critical)
		nCritical = n
		return err
	})
	g.Go(func() error {
		n, err := c.store.CountFromServer(gctx, high)
		nHigh = n
		return err
	})
	if err := g.Wait(); err != nil {
		return Counts{}, fmt.Errorf("failed to count alerts for ipal %d: %w", facilityID, err)
	}

	return Counts{
		FacilityID: facilityID,
		Total:      nActive,
		Active:     nActive,
		Critical:   nCritical,
		High:       nHigh,
		FetchedAt:  time.Now(),
	}, nil
}

func countQuery(facilityID int, severity string) (livequery.Query, error) {
	spec, err := livequery.NewFilterSpec(facilityID, livequery.Options{
		StatusFilter:   livequery.StatusActive,
		SeverityFilter: severity,
	})
	if err != nil {
		return livequery.Query{}, err
	}
	return livequery.BuildCount(models.CollectionAlerts, spec)
}

// Start polls facilityID now and then every interval, replacing any previous
// poll. A non-positive id only stops the previous poll. Concurrent calls leave
// exactly one poller running.
func (c *AlertCounter) Start(facilityID int) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	c.stopLocked()
	if facilityID <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.poll(ctx, facilityID, c.done)
}

// Stop cancels polling and waits for the poller to exit. After Stop returns
// no further tick is published.
func (c *AlertCounter) Stop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	c.stopLocked()
}

// Running reports whether a poller is active.
func (c *AlertCounter) Running() bool {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	return c.cancel != nil
}

// stopLocked requires runMu. The poller never takes runMu, so waiting here
// cannot deadlock.
func (c *AlertCounter) stopLocked() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.cancel, c.done = nil, nil
}

// Current returns the last published counts.
func (c *AlertCounter) Current() Counts {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Err returns the error of the last tick, nil after a successful one.
func (c *AlertCounter) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Loading reports whether a tick is in progress.
func (c *AlertCounter) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

func (c *AlertCounter) poll(ctx context.Context, facilityID int, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		c.tick(ctx, facilityID)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *AlertCounter) tick(ctx context.Context, facilityID int) {
	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	counts, err := c.Fetch(fetchCtx, facilityID)
	cancel()

	c.mu.Lock()
	c.loading = false
	if ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.lastErr = err
		c.mu.Unlock()
		c.logger.Error("Failed to fetch alert counts",
			zap.Int("ipal_id", facilityID),
			zap.Error(err),
		)
		return
	}
	c.current = counts
	c.lastErr = nil
	onUpdate := c.onUpdate
	c.mu.Unlock()

	c.logger.Debug("Alert counts fetched",
		zap.Int("ipal_id", facilityID),
		zap.Int64("active", counts.Active),
		zap.Int64("critical", counts.Critical),
		zap.Int64("high", counts.High),
	)
	if onUpdate != nil {
		onUpdate(counts)
	}
}
