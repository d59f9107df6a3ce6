// Package subscription owns live query subscriptions for one consumer.
//
// A Manager hands out Handles. Opening a new handle closes the previous one
// first, and every handle carries a generation number: a delivery whose
// generation is no longer the manager's active generation is dropped, even if
// it was already in flight when the handle was closed.
package subscription

import (
	"sync"

	"ipal-monitor/internal/livequery"
	"ipal-monitor/internal/livestore"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SnapshotFunc receives a snapshot together with the generation of the handle
// that produced it.
type SnapshotFunc func(generation uint64, snap livestore.Snapshot)

// ErrorFunc receives the terminal error of a handle.
type ErrorFunc func(generation uint64, err error)

// Manager keeps at most one active handle. It is safe for concurrent use.
type Manager struct {
	store  livestore.LiveStore
	logger *zap.Logger

	mu         sync.Mutex
	generation uint64
	active     *Handle
}

// NewManager creates a manager opening subscriptions on store.
func NewManager(store livestore.LiveStore, logger *zap.Logger) *Manager {
	return &Manager{store: store, logger: logger}
}

// Handle is one live subscription.
type Handle struct {
	id         string
	generation uint64
	query      livequery.Query
	mgr        *Manager

	// mu serialises deliveries with Close.
	mu         sync.Mutex
	closed     bool
	onSnapshot SnapshotFunc
	onError    ErrorFunc

	unsubMu     sync.Mutex
	unsubscribe func()
	stopped     bool
}

// ID returns the unique handle id.
func (h *Handle) ID() string { return h.id }

// Generation returns the generation the handle was opened with.
func (h *Handle) Generation() uint64 { return h.generation }

// Query returns the query the handle subscribes to.
func (h *Handle) Query() livequery.Query { return h.query }

// Closed reports whether the handle stopped delivering.
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Open closes the active handle, if any, then subscribes to q. Callbacks run
// on the store's delivery goroutine, one at a time, and must not block.
func (m *Manager) Open(q livequery.Query, onSnapshot SnapshotFunc, onError ErrorFunc) *Handle {
	if prev := m.Active(); prev != nil {
		m.Close(prev)
	}

	m.mu.Lock()
	m.generation++
	h := &Handle{
		id:         uuid.New().String(),
		generation: m.generation,
		query:      q,
		mgr:        m,
		onSnapshot: onSnapshot,
		onError:    onError,
	}
	m.active = h
	m.mu.Unlock()

	m.logger.Debug("Subscription opened",
		zap.String("handle_id", h.id),
		zap.Uint64("generation", h.generation),
		zap.String("query", q.Key()),
	)

	unsubscribe := m.store.OnSnapshot(q, h.deliver, h.fail)
	h.setUnsubscribe(unsubscribe)
	return h
}

// Switch closes old (which may be nil or already closed) and opens q.
func (m *Manager) Switch(old *Handle, q livequery.Query, onSnapshot SnapshotFunc, onError ErrorFunc) *Handle {
	if old != nil {
		m.Close(old)
	}
	return m.Open(q, onSnapshot, onError)
}

// Close stops h. When Close returns no callback of h is running or will run.
// Closing twice is a no-op.
func (m *Manager) Close(h *Handle) {
	if h == nil {
		return
	}

	h.mu.Lock()
	wasClosed := h.closed
	h.closed = true
	h.mu.Unlock()

	m.release(h)
	h.stop()

	if !wasClosed {
		m.logger.Debug("Subscription closed",
			zap.String("handle_id", h.id),
			zap.Uint64("generation", h.generation),
		)
	}
}

// CloseAll closes the active handle.
func (m *Manager) CloseAll() {
	m.Close(m.Active())
}

// Active returns the active handle or nil.
func (m *Manager) Active() *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Generation returns the active generation. It only grows.
func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

func (m *Manager) isCurrent(generation uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil && m.active.generation == generation
}

func (m *Manager) release(h *Handle) {
	m.mu.Lock()
	if m.active == h {
		m.active = nil
	}
	m.mu.Unlock()
}

func (h *Handle) deliver(snap livestore.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || !h.mgr.isCurrent(h.generation) {
		h.mgr.logger.Debug("Dropped stale snapshot",
			zap.String("handle_id", h.id),
			zap.Uint64("generation", h.generation),
		)
		return
	}
	h.onSnapshot(h.generation, snap)
}

func (h *Handle) fail(err error) {
	h.mu.Lock()
	if h.closed || !h.mgr.isCurrent(h.generation) {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.onError(h.generation, err)
	h.mu.Unlock()

	h.mgr.logger.Warn("Subscription failed",
		zap.String("handle_id", h.id),
		zap.Uint64("generation", h.generation),
		zap.Error(err),
	)
	h.mgr.release(h)
	h.stop()
}

func (h *Handle) setUnsubscribe(fn func()) {
	h.unsubMu.Lock()
	defer h.unsubMu.Unlock()
	if h.stopped {
		fn()
		return
	}
	h.unsubscribe = fn
}

func (h *Handle) stop() {
	h.unsubMu.Lock()
	defer h.unsubMu.Unlock()
	if h.stopped {
		return
	}
	h.stopped = true
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
}
