// Package livestore is the client side of the live document store: one-shot
// queries, server-side counts and snapshot subscriptions driven by a shared
// change feed.
package livestore

import (
	"context"
	"errors"
	"time"

	"ipal-monitor/internal/livequery"
	"ipal-monitor/internal/models"
)

// ErrUnknownCollection is returned for a collection the store does not serve.
var ErrUnknownCollection = errors.New("unknown collection")

// Snapshot is the full current result set of a query.
type Snapshot struct {
	Docs   []models.Document
	ReadAt time.Time
}

// Empty reports whether the snapshot has no documents.
func (s Snapshot) Empty() bool {
	return len(s.Docs) == 0
}

// Store executes queries against the backing database.
type Store interface {
	Run(ctx context.Context, q livequery.Query) ([]models.Document, error)
	Count(ctx context.Context, q livequery.Query) (int64, error)
}

// LiveStore is what the subscription layer consumes.
type LiveStore interface {
	// OnSnapshot delivers the result of q now and after every relevant change.
	// onError is called at most once and ends the listener. The returned
	// function stops the listener; it never blocks on in-flight deliveries.
	OnSnapshot(q livequery.Query, onNext func(Snapshot), onError func(error)) (unsubscribe func())
	// CountFromServer counts documents matching q without transferring them.
	CountFromServer(ctx context.Context, q livequery.Query) (int64, error)
}

// Change announces that documents of a collection changed. FacilityID 0 and
// an empty Collection act as wildcards.
type Change struct {
	Collection string `json:"collection"`
	FacilityID int    `json:"ipal_id,omitempty"`
	DocID      string `json:"doc_id,omitempty"`
}

// Affects reports whether a subscription on collection/facility must re-read.
func (c Change) Affects(collection string, facilityID int) bool {
	if c.Collection != "" && c.Collection != collection {
		return false
	}
	if c.FacilityID != 0 && facilityID != 0 && c.FacilityID != facilityID {
		return false
	}
	return true
}

// Source is a physical change feed. Start blocks, calling emit for every
// change, until ctx is cancelled or the feed fails.
type Source interface {
	Start(ctx context.Context, emit func(Change)) error
}

// facilityOf extracts the facility bound by a query's ipal_id predicate.
func facilityOf(q livequery.Query) int {
	for _, p := range q.Predicates {
		if p.Field == models.FieldFacilityID && p.Op == livequery.OpEqual {
			if id, ok := models.AsInt(p.Value); ok {
				return id
			}
		}
	}
	return 0
}
