package livestore

import (
	"context"
	"fmt"
	"sync"

	"ipal-monitor/internal/livequery"
	"ipal-monitor/internal/models"
)

// MemoryStore is an in-process Store. Writes are announced on the hub, if any.
// Used when no database is configured and in tests.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string]map[string]models.Document
	failOn map[string]error
	hub    *Hub
}

// NewMemoryStore creates an empty store announcing writes on hub (may be nil).
func NewMemoryStore(hub *Hub) *MemoryStore {
	return &MemoryStore{
		docs:   make(map[string]map[string]models.Document),
		failOn: make(map[string]error),
		hub:    hub,
	}
}

// Put inserts or replaces a document.
func (m *MemoryStore) Put(collection string, doc models.Document) {
	data := make(map[string]any, len(doc.Data))
	for k, v := range doc.Data {
		data[k] = v
	}

	m.mu.Lock()
	if m.docs[collection] == nil {
		m.docs[collection] = make(map[string]models.Document)
	}
	m.docs[collection][doc.ID] = models.Document{ID: doc.ID, Data: data}
	m.mu.Unlock()

	facilityID, _ := models.AsInt(data[models.FieldFacilityID])
	m.announce(Change{Collection: collection, FacilityID: facilityID, DocID: doc.ID})
}

// Delete removes a document.
func (m *MemoryStore) Delete(collection, id string) {
	m.mu.Lock()
	doc, ok := m.docs[collection][id]
	delete(m.docs[collection], id)
	m.mu.Unlock()

	if ok {
		facilityID, _ := models.AsInt(doc.Data[models.FieldFacilityID])
		m.announce(Change{Collection: collection, FacilityID: facilityID, DocID: id})
	}
}

// FailWith makes every query on collection fail with err until cleared with nil.
func (m *MemoryStore) FailWith(collection string, err error) {
	m.mu.Lock()
	if err == nil {
		delete(m.failOn, collection)
	} else {
		m.failOn[collection] = err
	}
	m.mu.Unlock()
	m.announce(Change{Collection: collection})
}

// Run implements Store.
func (m *MemoryStore) Run(ctx context.Context, q livequery.Query) ([]models.Document, error) {
	docs, err := m.snapshot(ctx, q.Collection)
	if err != nil {
		return nil, err
	}
	return q.Apply(docs), nil
}

// Count implements Store.
func (m *MemoryStore) Count(ctx context.Context, q livequery.Query) (int64, error) {
	docs, err := m.snapshot(ctx, q.Collection)
	if err != nil {
		return 0, err
	}
	return int64(len(q.WithLimit(0).Apply(docs))), nil
}

func (m *MemoryStore) snapshot(ctx context.Context, collection string) ([]models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.failOn[collection]; err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	out := make([]models.Document, 0, len(m.docs[collection]))
	for _, d := range m.docs[collection] {
		out = append(out, d)
	}
	return out, nil
}

func (m *MemoryStore) announce(c Change) {
	if m.hub != nil {
		m.hub.Publish(c)
	}
}
