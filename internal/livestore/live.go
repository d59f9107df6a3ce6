package livestore

import (
	"context"
	"sync"
	"time"

	"ipal-monitor/internal/livequery"
	"ipal-monitor/internal/models"

	"go.uber.org/zap"
)

// Live implements LiveStore on top of a Store and a Hub: every subscription
// re-runs its query when the hub reports a relevant change.
type Live struct {
	store  Store
	hub    *Hub
	logger *zap.Logger

	queryTimeout time.Duration
}

// NewLive creates a LiveStore.
func NewLive(store Store, hub *Hub, logger *zap.Logger) *Live {
	return &Live{
		store:        store,
		hub:          hub,
		logger:       logger,
		queryTimeout: 15 * time.Second,
	}
}

// OnSnapshot implements LiveStore.
func (l *Live) OnSnapshot(q livequery.Query, onNext func(Snapshot), onError func(error)) func() {
	ctx, cancel := context.WithCancel(context.Background())
	changes, unwatch := l.hub.Watch(q.Collection, facilityOf(q))

	go func() {
		defer unwatch()
		for {
			docs, err := l.run(ctx, q)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				l.logger.Warn("Live query failed",
					zap.String("query", q.Key()),
					zap.Error(err),
				)
				onError(err)
				return
			}
			onNext(Snapshot{Docs: docs, ReadAt: time.Now()})

			select {
			case <-ctx.Done():
				return
			case <-changes:
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			unwatch()
		})
	}
}

// CountFromServer implements LiveStore.
func (l *Live) CountFromServer(ctx context.Context, q livequery.Query) (int64, error) {
	return l.store.Count(ctx, q)
}

func (l *Live) run(ctx context.Context, q livequery.Query) ([]models.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, l.queryTimeout)
	defer cancel()
	return l.store.Run(ctx, q)
}
