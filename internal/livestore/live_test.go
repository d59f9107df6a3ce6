package livestore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ipal-monitor/internal/livequery"
	"ipal-monitor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func alertDoc(id string, facility int, status, severity string, created time.Time) models.Document {
	return models.Document{ID: id, Data: map[string]any{
		models.FieldFacilityID: facility,
		models.FieldStatus:     status,
		models.FieldSeverity:   severity,
		models.FieldCreatedAt:  created.Format(time.RFC3339Nano),
	}}
}

func priorityQuery(t *testing.T, facility int) livequery.Query {
	t.Helper()
	spec, err := livequery.NewFilterSpec(facility, livequery.DefaultOptions())
	require.NoError(t, err)
	q, err := livequery.Build(models.CollectionAlerts, spec)
	require.NoError(t, err)
	return q
}

type snapshotRecorder struct {
	mu    sync.Mutex
	snaps []Snapshot
	errs  []error
}

func (r *snapshotRecorder) next(s Snapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, s)
	r.mu.Unlock()
}

func (r *snapshotRecorder) fail(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *snapshotRecorder) count() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps), len(r.errs)
}

func (r *snapshotRecorder) last() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snaps[len(r.snaps)-1]
}

func TestLive_DeliversInitialAndChangedSnapshots(t *testing.T) {
	hub := NewHub(zap.NewNop())
	store := NewMemoryStore(hub)
	live := NewLive(store, hub, zap.NewNop())

	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	store.Put(models.CollectionAlerts, alertDoc("a1", 7, "active", "high", base))

	rec := &snapshotRecorder{}
	unsubscribe := live.OnSnapshot(priorityQuery(t, 7), rec.next, rec.fail)
	defer unsubscribe()

	require.Eventually(t, func() bool { n, _ := rec.count(); return n == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, rec.last().Docs, 1)

	store.Put(models.CollectionAlerts, alertDoc("a2", 7, "active", "critical", base.Add(time.Minute)))
	require.Eventually(t, func() bool { return len(rec.last().Docs) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "a2", rec.last().Docs[0].ID)
}

func TestLive_UnsubscribeStopsDeliveries(t *testing.T) {
	hub := NewHub(zap.NewNop())
	store := NewMemoryStore(hub)
	live := NewLive(store, hub, zap.NewNop())

	rec := &snapshotRecorder{}
	unsubscribe := live.OnSnapshot(priorityQuery(t, 7), rec.next, rec.fail)
	require.Eventually(t, func() bool { n, _ := rec.count(); return n == 1 }, time.Second, 5*time.Millisecond)

	unsubscribe()
	unsubscribe()
	require.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, 5*time.Millisecond)

	store.Put(models.CollectionAlerts, alertDoc("a1", 7, "active", "high", time.Now()))
	time.Sleep(50 * time.Millisecond)
	n, _ := rec.count()
	assert.Equal(t, 1, n)
}

func TestLive_ErrorEndsListener(t *testing.T) {
	hub := NewHub(zap.NewNop())
	store := NewMemoryStore(hub)
	live := NewLive(store, hub, zap.NewNop())

	boom := errors.New("permission denied")
	store.FailWith(models.CollectionAlerts, boom)

	rec := &snapshotRecorder{}
	unsubscribe := live.OnSnapshot(priorityQuery(t, 7), rec.next, rec.fail)
	defer unsubscribe()

	require.Eventually(t, func() bool { _, e := rec.count(); return e == 1 }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, rec.errs[0], boom)

	// further changes do not revive the listener
	store.Put(models.CollectionAlerts, alertDoc("a1", 7, "active", "high", time.Now()))
	time.Sleep(50 * time.Millisecond)
	n, e := rec.count()
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, e)
}

func TestLive_CountFromServer(t *testing.T) {
	hub := NewHub(zap.NewNop())
	store := NewMemoryStore(hub)
	live := NewLive(store, hub, zap.NewNop())

	base := time.Now()
	for i := 0; i < 12; i++ {
		store.Put(models.CollectionAlerts, alertDoc(fmt.Sprintf("a%d", i), 7, "active", "critical", base.Add(time.Duration(i)*time.Second)))
	}
	store.Put(models.CollectionAlerts, alertDoc("other", 8, "active", "critical", base))

	spec, err := livequery.NewFilterSpec(7, livequery.Options{StatusFilter: "active", SeverityFilter: "critical"})
	require.NoError(t, err)
	q, err := livequery.BuildCount(models.CollectionAlerts, spec)
	require.NoError(t, err)

	n, err := live.CountFromServer(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
}
