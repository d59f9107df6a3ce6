package watcher

import (
	"time"

	"ipal-monitor/internal/aggregate"
	"ipal-monitor/internal/models"
)

// ConnState is the connection state of a watcher.
type ConnState int

const (
	// Idle: no facility selected yet.
	Idle ConnState = iota
	// Connecting: subscription open, no snapshot yet.
	Connecting
	// Live: at least one snapshot received.
	Live
	// Error: the subscription failed; entities are from the last good snapshot.
	Error
	// Closed: torn down or session revoked.
	Closed
)

func (s ConnState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Live:
		return "live"
	case Error:
		return "error"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// State is what presentation code reads. Entities must not be modified.
type State struct {
	FacilityID int
	Conn       ConnState
	Entities   []models.Entity
	Aggregates aggregate.Set
	// Reading is only filled by latest-reading watchers.
	Reading   aggregate.ReadingSummary
	LastError error
	// NewAlert is set when the last snapshot holds an id the previous one
	// for the same facility did not.
	NewAlert    bool
	NewAlertIDs []string
	// UpdatedAt is when the state last changed; for a snapshot it is the
	// snapshot's read time.
	UpdatedAt time.Time
}

// Listening reports an open subscription.
func (s State) Listening() bool {
	return s.Conn == Connecting || s.Conn == Live
}

// Empty reports a state without entities; not an error by itself.
func (s State) Empty() bool {
	return len(s.Entities) == 0
}
