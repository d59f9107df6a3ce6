// Package facility keeps the list of active IPAL facilities and the one the
// operator is looking at.
package facility

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ipal-monitor/internal/livequery"
	"ipal-monitor/internal/models"

	"go.uber.org/zap"
)

// ErrUnknownFacility is returned by Select for an id not in the loaded list.
var ErrUnknownFacility = errors.New("unknown facility")

// Lister loads facilities; api.IPALService implements it.
type Lister interface {
	List(ctx context.Context, status string) ([]models.Facility, error)
}

// Selector holds the active facilities and the current selection.
type Selector struct {
	lister Lister
	logger *zap.Logger

	mu         sync.RWMutex
	facilities []models.Facility
	selected   int
	listeners  []func(models.Facility)
}

// NewSelector creates an empty selector.
func NewSelector(lister Lister, logger *zap.Logger) *Selector {
	return &Selector{lister: lister, logger: logger}
}

// OnSelect registers fn, called synchronously after every selection change.
func (s *Selector) OnSelect(fn func(models.Facility)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Load fetches the active facilities. When nothing is selected, or the
// selection disappeared, the first facility is selected. On error the
// previous list is kept and nothing is substituted for it.
func (s *Selector) Load(ctx context.Context) ([]models.Facility, error) {
	facilities, err := s.lister.List(ctx, models.FacilityStatusActive)
	if err != nil {
		s.logger.Error("Failed to load facilities", zap.Error(err))
		return nil, fmt.Errorf("failed to load facilities: %w", err)
	}

	s.mu.Lock()
	s.facilities = facilities
	var pick *models.Facility
	if _, ok := s.find(s.selected); !ok {
		s.selected = 0
		if len(facilities) > 0 {
			s.selected = facilities[0].IPALID
			pick = &facilities[0]
		}
	}
	listeners := s.listeners
	s.mu.Unlock()

	s.logger.Info("Facilities loaded", zap.Int("count", len(facilities)))
	if pick != nil {
		s.logger.Info("Facility auto-selected",
			zap.Int("ipal_id", pick.IPALID),
			zap.String("location", pick.Location),
		)
		notify(listeners, *pick)
	}
	return s.Facilities(), nil
}

// Select makes id the current facility. Selecting the current one again does
// not notify.
func (s *Selector) Select(id any) (models.Facility, error) {
	ipalID, err := livequery.ParseFacilityID(id)
	if err != nil {
		return models.Facility{}, err
	}

	s.mu.Lock()
	f, ok := s.find(ipalID)
	if !ok {
		s.mu.Unlock()
		return models.Facility{}, fmt.Errorf("%w: %d", ErrUnknownFacility, ipalID)
	}
	changed := s.selected != ipalID
	s.selected = ipalID
	listeners := s.listeners
	s.mu.Unlock()

	if changed {
		s.logger.Info("Facility selected", zap.Int("ipal_id", ipalID))
		notify(listeners, f)
	}
	return f, nil
}

// Selected returns the current facility, if any.
func (s *Selector) Selected() (models.Facility, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.find(s.selected)
}

// Facilities returns a copy of the loaded list.
func (s *Selector) Facilities() []models.Facility {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Facility, len(s.facilities))
	copy(out, s.facilities)
	return out
}

// find must be called with s.mu held.
func (s *Selector) find(id int) (models.Facility, bool) {
	if id <= 0 {
		return models.Facility{}, false
	}
	for _, f := range s.facilities {
		if f.IPALID == id {
			return f, true
		}
	}
	return models.Facility{}, false
}

func notify(listeners []func(models.Facility), f models.Facility) {
	for _, fn := range listeners {
		fn(f)
	}
}
