package counter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ipal-monitor/internal/livequery"
	"ipal-monitor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedStore answers counts from a table keyed by severity ("" = all
// active). Each call can be delayed per severity.
type scriptedStore struct {
	mu     sync.Mutex
	counts map[string]int64
	delay  map[string]time.Duration
	gate   map[string]chan struct{}
	err    error
	calls  atomic.Int32
}

func severityOf(q livequery.Query) string {
	for _, p := range q.Predicates {
		if p.Field == models.FieldSeverity {
			return p.Value.(string)
		}
	}
	return ""
}

func (s *scriptedStore) CountFromServer(ctx context.Context, q livequery.Query) (int64, error) {
	s.calls.Add(1)
	if q.Limit != 0 || q.OrderBy != "" {
		return 0, errors.New("count query must not be ordered or limited")
	}
	sev := severityOf(q)

	s.mu.Lock()
	d := s.delay[sev]
	gate := s.gate[sev]
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	return s.counts[sev], nil
}

func (s *scriptedStore) set(sev string, n int64) {
	s.mu.Lock()
	s.counts[sev] = n
	s.mu.Unlock()
}

func newScripted() *scriptedStore {
	return &scriptedStore{counts: map[string]int64{}, delay: map[string]time.Duration{}}
}

func TestFetch(t *testing.T) {
	store := newScripted()
	store.set("", 9)
	store.set("critical", 2)
	store.set("high", 3)
	c := NewAlertCounter(store, time.Minute, zap.NewNop())

	counts, err := c.Fetch(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 7, counts.FacilityID)
	assert.Equal(t, int64(9), counts.Active)
	assert.Equal(t, int64(9), counts.Total)
	assert.Equal(t, int64(2), counts.Critical)
	assert.Equal(t, int64(3), counts.High)
	assert.True(t, counts.HasCritical())
	assert.Equal(t, int32(3), store.calls.Load())
}

func TestFetch_NonPositiveFacilityIsNoop(t *testing.T) {
	store := newScripted()
	c := NewAlertCounter(store, time.Minute, zap.NewNop())

	for _, id := range []int{0, -3} {
		counts, err := c.Fetch(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, Counts{}, counts)
	}
	assert.Equal(t, int32(0), store.calls.Load())

	c.Start(0)
	c.Stop()
	assert.Equal(t, int32(0), store.calls.Load())
}

func TestFetch_QueriesRunConcurrently(t *testing.T) {
	store := newScripted()
	for _, sev := range []string{"", "critical", "high"} {
		store.delay[sev] = 100 * time.Millisecond
	}
	c := NewAlertCounter(store, time.Minute, zap.NewNop())

	start := time.Now()
	_, err := c.Fetch(context.Background(), 7)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestFetch_ErrorPublishesNothing(t *testing.T) {
	store := newScripted()
	store.err = errors.New("deadline exceeded")
	c := NewAlertCounter(store, time.Minute, zap.NewNop())

	_, err := c.Fetch(context.Background(), 7)
	assert.ErrorContains(t, err, "deadline exceeded")
}

// While one sub-count of a tick is still in flight the exposed counts stay at
// the previous complete tick: a fresh critical count is never shown next to a
// stale high count.
func TestStart_JoinBeforePublish(t *testing.T) {
	store := newScripted()
	store.set("", 5)
	c := NewAlertCounter(store, 150*time.Millisecond, zap.NewNop())

	var ticks atomic.Int32
	c.OnUpdate(func(Counts) { ticks.Add(1) })

	c.Start(7)
	defer c.Stop()
	require.Eventually(t, func() bool { return ticks.Load() >= 1 }, time.Second, 5*time.Millisecond)

	gate := make(chan struct{})
	store.mu.Lock()
	store.counts["critical"] = 2
	store.counts["high"] = 1
	store.gate = map[string]chan struct{}{"high": gate}
	store.mu.Unlock()

	// critical already answered 2 on the next tick; high is held back
	require.Eventually(t, func() bool { return store.calls.Load() >= 6 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	cur := c.Current()
	assert.Equal(t, int64(5), cur.Active)
	assert.Equal(t, int64(0), cur.Critical)
	assert.Equal(t, int64(0), cur.High)

	close(gate)
	require.Eventually(t, func() bool { return c.Current().Critical == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), c.Current().High)
}

func TestStop_NoPublishAfterReturn(t *testing.T) {
	store := newScripted()
	store.set("", 1)
	c := NewAlertCounter(store, 10*time.Millisecond, zap.NewNop())

	var ticks atomic.Int32
	c.OnUpdate(func(Counts) { ticks.Add(1) })

	c.Start(7)
	require.Eventually(t, func() bool { return ticks.Load() >= 2 }, time.Second, 5*time.Millisecond)
	c.Stop()
	c.Stop()

	after := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, ticks.Load())
	assert.Equal(t, int64(1), c.Current().Active)
	assert.NoError(t, c.Err())
	assert.False(t, c.Loading())
}

func TestStart_ReplacesPreviousFacility(t *testing.T) {
	store := newScripted()
	c := NewAlertCounter(store, 10*time.Millisecond, zap.NewNop())

	var mu sync.Mutex
	var facilities []int
	c.OnUpdate(func(n Counts) {
		mu.Lock()
		facilities = append(facilities, n.FacilityID)
		mu.Unlock()
	})

	c.Start(7)
	c.Start(8)
	time.Sleep(40 * time.Millisecond)
	c.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, facilities)
	assert.Equal(t, 8, facilities[len(facilities)-1])
	// once facility 8 is published, facility 7 never shows up again
	seen8 := false
	for _, id := range facilities {
		if id == 8 {
			seen8 = true
		}
		if seen8 {
			assert.Equal(t, 8, id)
		}
	}
}

func TestStart_ConcurrentLeavesOnePoller(t *testing.T) {
	store := newScripted()
	c := NewAlertCounter(store, 5*time.Millisecond, zap.NewNop())

	var ticks atomic.Int32
	c.OnUpdate(func(Counts) { ticks.Add(1) })

	for round := 0; round < 50; round++ {
		var wg sync.WaitGroup
		for i := 1; i <= 4; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				c.Start(id)
			}(i)
		}
		wg.Wait()
		assert.True(t, c.Running())
	}
	c.Stop()
	assert.False(t, c.Running())

	after := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, ticks.Load(), "ticks published after Stop returned")
}
