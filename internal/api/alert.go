package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"ipal-monitor/internal/models"

	"golang.org/x/sync/errgroup"
)

// bulkConcurrency bounds parallel status updates.
const bulkConcurrency = 4

// AlertFilter selects alerts from the backend.
type AlertFilter struct {
	IPALID     int
	Status     string
	Severity   string
	Parameter  string
	Location   string
	Limit      int
	StartAfter string // pagination cursor
}

func (f AlertFilter) params() map[string]string {
	p := map[string]string{}
	if f.IPALID > 0 {
		p["ipal_id"] = strconv.Itoa(f.IPALID)
	}
	if f.Status != "" {
		p["status"] = f.Status
	}
	if f.Severity != "" {
		p["severity"] = f.Severity
	}
	if f.Parameter != "" {
		p["parameter"] = f.Parameter
	}
	if f.Location != "" {
		p["location"] = f.Location
	}
	if f.Limit > 0 {
		p["limit"] = strconv.Itoa(f.Limit)
	}
	if f.StartAfter != "" {
		p["start_after"] = f.StartAfter
	}
	return p
}

// AlertList is a page of alerts.
type AlertList struct {
	Success    bool           `json:"success"`
	Count      int            `json:"count"`
	Data       []models.Alert `json:"data"`
	HasMore    bool           `json:"has_more,omitempty"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// AlertService manages alerts.
type AlertService struct {
	c *Client
}

// NewAlertService creates the service.
func NewAlertService(c *Client) *AlertService {
	return &AlertService{c: c}
}

// List returns the alerts matching f.
func (s *AlertService) List(ctx context.Context, f AlertFilter) (*AlertList, error) {
	var out AlertList
	if err := s.c.Get(ctx, "/api/alerts", f.params(), &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		out.Data = []models.Alert{}
	}
	return &out, nil
}

// Stats returns alert statistics, for one facility when ipalID > 0.
func (s *AlertService) Stats(ctx context.Context, ipalID int) (*models.AlertStats, error) {
	params := map[string]string{}
	if ipalID > 0 {
		params["ipal_id"] = strconv.Itoa(ipalID)
	}
	var stats models.AlertStats
	if _, err := s.c.getData(ctx, "/api/alerts/stats", params, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Acknowledge marks an alert acknowledged.
func (s *AlertService) Acknowledge(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, models.AlertStatusAcknowledged)
}

// Resolve marks an alert resolved.
func (s *AlertService) Resolve(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, models.AlertStatusResolved)
}

// AcknowledgeAll acknowledges ids in parallel and returns the first failure.
func (s *AlertService) AcknowledgeAll(ctx context.Context, ids []string) error {
	return s.setStatusAll(ctx, ids, models.AlertStatusAcknowledged)
}

// ResolveAll resolves ids in parallel and returns the first failure.
func (s *AlertService) ResolveAll(ctx context.Context, ids []string) error {
	return s.setStatusAll(ctx, ids, models.AlertStatusResolved)
}

func (s *AlertService) setStatus(ctx context.Context, id, status string) error {
	if id == "" {
		return fmt.Errorf("alert id is required")
	}
	body := map[string]string{"status": status}
	return s.c.Put(ctx, "/api/alerts/"+url.PathEscape(id)+"/status", body, nil)
}

func (s *AlertService) setStatusAll(ctx context.Context, ids []string, status string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			return s.setStatus(gctx, id, status)
		})
	}
	return g.Wait()
}
