package livestore

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Hub fans one physical change feed out to many logical watchers.
type Hub struct {
	mu       sync.RWMutex
	watchers map[uint64]*watch
	nextID   uint64
	logger   *zap.Logger
}

type watch struct {
	collection string
	facilityID int
	ch         chan Change
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		watchers: make(map[uint64]*watch),
		logger:   logger,
	}
}

// Watch registers interest in collection/facility. The channel has a
// one-slot buffer: bursts of changes coalesce into a single wake-up.
func (h *Hub) Watch(collection string, facilityID int) (<-chan Change, func()) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	w := &watch{
		collection: collection,
		facilityID: facilityID,
		ch:         make(chan Change, 1),
	}
	h.watchers[id] = w
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.watchers, id)
			h.mu.Unlock()
		})
	}
	return w.ch, cancel
}

// Publish wakes every watcher the change affects. It never blocks.
func (h *Hub) Publish(c Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, w := range h.watchers {
		if !c.Affects(w.collection, w.facilityID) {
			continue
		}
		select {
		case w.ch <- c:
		default:
			// a wake-up is already pending
		}
	}
}

// Len returns the number of registered watchers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers)
}

// Run pumps src into the hub until ctx is done, restarting the source with
// exponential backoff when it fails.
func (h *Hub) Run(ctx context.Context, src Source) {
	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		err := src.Start(ctx, h.Publish)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			h.logger.Error("Change feed failed",
				zap.Error(err),
				zap.Duration("backoff", backoff),
			)
		}
		// wake everyone: changes may have been missed while disconnected
		h.Publish(Change{})

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}
