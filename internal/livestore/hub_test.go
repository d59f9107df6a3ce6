package livestore

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestChange_Affects(t *testing.T) {
	tests := []struct {
		name   string
		change Change
		want   bool
	}{
		{"exact", Change{Collection: "alerts", FacilityID: 7}, true},
		{"other facility", Change{Collection: "alerts", FacilityID: 8}, false},
		{"other collection", Change{Collection: "sensor_readings", FacilityID: 7}, false},
		{"collection wildcard", Change{FacilityID: 7}, true},
		{"facility wildcard", Change{Collection: "alerts"}, true},
		{"full wildcard", Change{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.change.Affects("alerts", 7))
		})
	}
}

func TestHub_CoalescesBursts(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ch, cancel := hub.Watch("alerts", 7)
	defer cancel()

	for i := 0; i < 10; i++ {
		hub.Publish(Change{Collection: "alerts", FacilityID: 7})
	}

	select {
	case <-ch:
	default:
		t.Fatal("expected a pending wake-up")
	}
	select {
	case <-ch:
		t.Fatal("burst should coalesce into one wake-up")
	default:
	}
}

func TestHub_FiltersAndCancels(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ch, cancel := hub.Watch("alerts", 7)
	require.Equal(t, 1, hub.Len())

	hub.Publish(Change{Collection: "alerts", FacilityID: 9})
	select {
	case <-ch:
		t.Fatal("change for another facility must not wake the watcher")
	default:
	}

	cancel()
	cancel()
	assert.Equal(t, 0, hub.Len())
}

type flakySource struct {
	starts atomic.Int32
}

func (s *flakySource) Start(ctx context.Context, emit func(Change)) error {
	if s.starts.Add(1) == 1 {
		return errors.New("connection refused")
	}
	emit(Change{Collection: "alerts", FacilityID: 1})
	<-ctx.Done()
	return nil
}

func TestHub_RunRestartsFailedSource(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ch, cancel := hub.Watch("alerts", 1)
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	src := &flakySource{}
	done := make(chan struct{})
	go func() {
		hub.Run(ctx, src)
		close(done)
	}()

	// the failure itself publishes a wildcard change
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected wake-up after source failure")
	}

	assert.Eventually(t, func() bool { return src.starts.Load() == 2 }, 3*time.Second, 10*time.Millisecond)

	stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
