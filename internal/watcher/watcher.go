// Package watcher exposes live, aggregated views of a facility's alerts and
// latest reading, and owns their subscriptions as the facility changes.
//
// Every Watcher runs one goroutine. Snapshots, errors, facility switches and
// session revocation are processed there one at a time, so the exposed State
// is always internally consistent. A failed subscription is not retried
// automatically; callers use Refresh.
package watcher

import (
	"errors"
	"sync"
	"time"

	"ipal-monitor/internal/aggregate"
	"ipal-monitor/internal/auth"
	"ipal-monitor/internal/livequery"
	"ipal-monitor/internal/livestore"
	"ipal-monitor/internal/mapper"
	"ipal-monitor/internal/metrics"
	"ipal-monitor/internal/models"
	"ipal-monitor/internal/subscription"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrClosed is returned by operations on a closed watcher.
var ErrClosed = errors.New("watcher closed")

// Config holds the collaborators of a watcher.
type Config struct {
	Store   livestore.LiveStore
	Session *auth.Session
	Logger  *zap.Logger
}

type kind int

const (
	kindAlerts kind = iota
	kindLatestReading
)

type cmdKind int

const (
	cmdSwitch cmdKind = iota
	cmdRefresh
	cmdClose
)

type command struct {
	kind       cmdKind
	facilityID int
	reply      chan error
}

type delivery struct {
	generation uint64
	snap       livestore.Snapshot
	err        error
}

// Watcher is a consumer-facing live view. Create it with NewAlertWatcher or
// NewReadingWatcher and Close it when done.
type Watcher struct {
	id         string
	kind       kind
	collection string
	options    livequery.Options
	session    *auth.Session
	mgr        *subscription.Manager
	logger     *zap.Logger

	cmds chan command
	wake chan struct{}
	done chan struct{}

	// mailbox filled by store callbacks and the session, drained by the loop
	mbMu        sync.Mutex
	pendingSnap *delivery
	pendingErr  *delivery
	revoked     error

	stateMu sync.RWMutex
	state   State
	updates chan State

	// owned by the loop goroutine
	spec         livequery.FilterSpec
	handle       *subscription.Handle
	knownIDs     map[string]struct{}
	seenSnapshot bool

	closeOnce sync.Once
	unRevoke  func()
}

// NewAlertWatcher watches the alerts selected by opts.
func NewAlertWatcher(cfg Config, opts livequery.Options) (*Watcher, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return newWatcher(cfg, kindAlerts, models.CollectionAlerts, opts), nil
}

// NewReadingWatcher watches the newest sensor reading.
func NewReadingWatcher(cfg Config) *Watcher {
	return newWatcher(cfg, kindLatestReading, models.CollectionSensorReadings, livequery.Options{})
}

func newWatcher(cfg Config, k kind, collection string, opts livequery.Options) *Watcher {
	id := uuid.New().String()
	logger := cfg.Logger.With(
		zap.String("watcher_id", id),
		zap.String("collection", collection),
	)

	w := &Watcher{
		id:         id,
		kind:       k,
		collection: collection,
		options:    opts,
		session:    cfg.Session,
		mgr:        subscription.NewManager(cfg.Store, logger),
		logger:     logger,
		cmds:       make(chan command),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		updates:    make(chan State, 1),
		knownIDs:   make(map[string]struct{}),
	}
	w.state = State{Conn: Idle, Entities: []models.Entity{}, Reading: aggregate.SummarizeReading(nil)}
	w.unRevoke = cfg.Session.OnRevoke(w.onRevoke)

	go w.loop()
	return w
}

// ID returns the watcher's unique id.
func (w *Watcher) ID() string { return w.id }

// State returns the current state.
func (w *Watcher) State() State {
	w.stateMu.RLock()
	defer w.stateMu.RUnlock()
	return w.state
}

// Updates delivers the latest state after every change. Intermediate states
// may be skipped by slow readers. The channel is closed by Close.
func (w *Watcher) Updates() <-chan State {
	return w.updates
}

// SwitchFacility validates id, closes the current subscription and opens one
// for the new facility. It returns once the old subscription is closed; the
// first snapshot arrives asynchronously.
func (w *Watcher) SwitchFacility(id any) error {
	facilityID, err := livequery.ParseFacilityID(id)
	if err != nil {
		return err
	}
	return w.send(command{kind: cmdSwitch, facilityID: facilityID})
}

// Refresh reopens the current subscription, for example after an error.
// Entities of the last good snapshot are kept until new data arrives.
func (w *Watcher) Refresh() error {
	return w.send(command{kind: cmdRefresh})
}

// Close tears the watcher down. When Close returns no further state change
// happens. Closing twice is a no-op.
func (w *Watcher) Close() {
	w.closeOnce.Do(func() {
		w.unRevoke()
		_ = w.send(command{kind: cmdClose})
		<-w.done
	})
}

func (w *Watcher) send(cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case w.cmds <- cmd:
	case <-w.done:
		return ErrClosed
	}
	return <-cmd.reply
}

func (w *Watcher) onSnapshot(generation uint64, snap livestore.Snapshot) {
	w.mbMu.Lock()
	w.pendingSnap = &delivery{generation: generation, snap: snap}
	w.mbMu.Unlock()
	w.signal()
}

func (w *Watcher) onError(generation uint64, err error) {
	w.mbMu.Lock()
	w.pendingErr = &delivery{generation: generation, err: err}
	w.mbMu.Unlock()
	w.signal()
}

func (w *Watcher) onRevoke(reason error) {
	w.mbMu.Lock()
	w.revoked = reason
	w.mbMu.Unlock()
	w.signal()
}

func (w *Watcher) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Watcher) loop() {
	defer close(w.done)

	for {
		select {
		case cmd := <-w.cmds:
			if cmd.kind == cmdClose {
				w.closeHandle()
				w.update(func(s *State) { s.Conn = Closed })
				close(w.updates)
				cmd.reply <- nil
				w.logger.Info("Watcher closed")
				return
			}
			// deliveries posted before the command apply first
			w.drain()
			cmd.reply <- w.handleCommand(cmd)
		case <-w.wake:
			w.drain()
		}
	}
}

func (w *Watcher) handleCommand(cmd command) error {
	switch cmd.kind {
	case cmdSwitch:
		return w.switchFacility(cmd.facilityID)
	case cmdRefresh:
		return w.refresh()
	}
	return nil
}

func (w *Watcher) switchFacility(facilityID int) error {
	if !w.session.IsAuthenticated() {
		return w.session.Err()
	}

	spec, err := w.specFor(facilityID)
	if err != nil {
		return err
	}
	if spec.Equal(w.spec) && w.handle != nil {
		return nil
	}

	w.closeHandle()
	w.spec = spec
	w.knownIDs = make(map[string]struct{})
	w.seenSnapshot = false

	w.update(func(s *State) {
		*s = State{
			FacilityID: facilityID,
			Conn:       Connecting,
			Entities:   []models.Entity{},
			Reading:    aggregate.SummarizeReading(nil),
		}
	})

	w.logger.Info("Switching facility", zap.Int("ipal_id", facilityID))
	return w.open()
}

func (w *Watcher) refresh() error {
	if w.spec.IsZero() {
		return nil
	}
	if !w.session.IsAuthenticated() {
		return w.session.Err()
	}

	w.closeHandle()
	w.update(func(s *State) {
		s.Conn = Connecting
		s.LastError = nil
	})
	return w.open()
}

func (w *Watcher) specFor(facilityID int) (livequery.FilterSpec, error) {
	if w.kind == kindLatestReading {
		return livequery.LatestReadingSpec(facilityID)
	}
	return livequery.NewFilterSpec(facilityID, w.options)
}

func (w *Watcher) open() error {
	q, err := livequery.Build(w.collection, w.spec)
	if err != nil {
		return err
	}
	w.handle = w.mgr.Open(q, w.onSnapshot, w.onError)
	return nil
}

func (w *Watcher) closeHandle() {
	if w.handle != nil {
		w.mgr.Close(w.handle)
		w.handle = nil
	}
}

func (w *Watcher) current(generation uint64) bool {
	return w.handle != nil && w.handle.Generation() == generation
}

func (w *Watcher) drain() {
	w.mbMu.Lock()
	snap, failure, revoked := w.pendingSnap, w.pendingErr, w.revoked
	w.pendingSnap, w.pendingErr, w.revoked = nil, nil, nil
	w.mbMu.Unlock()

	if snap != nil && w.current(snap.generation) {
		w.applySnapshot(snap.snap)
	}
	if failure != nil && w.current(failure.generation) {
		w.applyError(failure.err)
	}
	if revoked != nil {
		w.applyRevoke(revoked)
	}
}

func (w *Watcher) applySnapshot(snap livestore.Snapshot) {
	entities := mapper.Map(snap)

	var (
		set     aggregate.Set
		reading aggregate.ReadingSummary
		newIDs  []string
	)
	switch w.kind {
	case kindAlerts:
		set = aggregate.Aggregate(entities)
		newIDs = w.trackIDs(entities)
	case kindLatestReading:
		reading = w.summarize(entities)
	}

	w.update(func(s *State) {
		s.Conn = Live
		s.Entities = entities
		s.Aggregates = set
		s.Reading = reading
		s.LastError = nil
		s.NewAlert = len(newIDs) > 0
		s.NewAlertIDs = newIDs
		s.UpdatedAt = snap.ReadAt
	})
	metrics.RecordSnapshot(w.collection)

	if w.kind == kindAlerts {
		latest := "none"
		if len(entities) > 0 {
			latest = entities[0].String(models.FieldType)
		}
		w.logger.Info("Alerts updated",
			zap.Int("count", len(entities)),
			zap.String("latest", latest),
			zap.Int("critical", set.Severity.Critical),
			zap.Int("high", set.Severity.High),
		)
		if len(newIDs) > 0 {
			metrics.RecordNewAlerts(len(newIDs))
			w.logger.Warn("New alert detected", zap.Strings("alert_ids", newIDs))
		}
	} else {
		w.logger.Info("Reading updated",
			zap.Bool("has_data", reading.HasData),
			zap.Float64("quality_score", reading.QualityScore),
			zap.Int("violations", len(reading.Violations)),
		)
	}
}

// trackIDs returns ids absent from the previous snapshot. The first snapshot
// of a facility never reports new alerts.
func (w *Watcher) trackIDs(entities []models.Entity) []string {
	ids := make(map[string]struct{}, len(entities))
	var fresh []string
	for _, e := range entities {
		ids[e.ID] = struct{}{}
		if _, known := w.knownIDs[e.ID]; !known && w.seenSnapshot {
			fresh = append(fresh, e.ID)
		}
	}
	w.knownIDs = ids
	w.seenSnapshot = true
	return fresh
}

func (w *Watcher) summarize(entities []models.Entity) aggregate.ReadingSummary {
	if len(entities) == 0 {
		return aggregate.SummarizeReading(nil)
	}
	r, err := mapper.ToReading(entities[0])
	if err != nil {
		w.logger.Warn("Failed to decode reading",
			zap.String("reading_id", entities[0].ID),
			zap.Error(err),
		)
		return aggregate.SummarizeReading(nil)
	}
	return aggregate.SummarizeReading(r)
}

func (w *Watcher) applyError(err error) {
	// the manager already closed the handle
	w.handle = nil

	if auth.IsSessionExpired(err) {
		w.session.Revoke(err)
	}

	w.update(func(s *State) {
		s.Conn = Error
		s.LastError = err
		s.NewAlert = false
		s.NewAlertIDs = nil
	})
	metrics.RecordSubscriptionError(w.collection)
	w.logger.Error("Live subscription failed", zap.Error(err))
}

func (w *Watcher) applyRevoke(reason error) {
	w.closeHandle()

	w.update(func(s *State) {
		if s.Conn == Error {
			return
		}
		if s.Conn != Idle {
			s.Conn = Closed
		}
		s.LastError = reason
	})
	w.logger.Info("Session revoked, subscription closed", zap.Error(reason))
}

func (w *Watcher) update(fn func(*State)) {
	w.stateMu.Lock()
	w.state.UpdatedAt = time.Time{}
	fn(&w.state)
	if w.state.UpdatedAt.IsZero() {
		w.state.UpdatedAt = time.Now()
	}
	s := w.state
	w.stateMu.Unlock()

	select {
	case w.updates <- s:
	default:
		select {
		case <-w.updates:
		default:
		}
		select {
		case w.updates <- s:
		default:
		}
	}
}
