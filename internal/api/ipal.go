package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"ipal-monitor/internal/models"
)

// IPALService manages facilities.
type IPALService struct {
	c *Client
}

// NewIPALService creates the service.
func NewIPALService(c *Client) *IPALService {
	return &IPALService{c: c}
}

// List returns facilities, filtered by status when non-empty.
func (s *IPALService) List(ctx context.Context, status string) ([]models.Facility, error) {
	params := map[string]string{}
	if status != "" {
		params["status"] = status
	}
	facilities := make([]models.Facility, 0)
	if _, err := s.c.getData(ctx, "/api/ipals", params, &facilities); err != nil {
		return nil, err
	}
	return facilities, nil
}

// Get returns one facility. Both a bare object and the {success, data}
// wrapper are accepted.
func (s *IPALService) Get(ctx context.Context, ipalID int) (*models.Facility, error) {
	path := "/api/ipals/" + strconv.Itoa(ipalID)

	var raw json.RawMessage
	if err := s.c.Get(ctx, path, nil, &raw); err != nil {
		return nil, err
	}

	var f models.Facility
	if err := json.Unmarshal(raw, &f); err == nil && f.IPALID != 0 {
		return &f, nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	if err := json.Unmarshal(env.Data, &f); err != nil || f.IPALID == 0 {
		return nil, fmt.Errorf("invalid %s response", path)
	}
	return &f, nil
}

// Stats returns facility statistics.
func (s *IPALService) Stats(ctx context.Context, ipalID int) (*models.FacilityStats, error) {
	var stats models.FacilityStats
	if _, err := s.c.getData(ctx, "/api/ipals/"+strconv.Itoa(ipalID)+"/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Create registers a facility.
func (s *IPALService) Create(ctx context.Context, f *models.Facility) (*models.Facility, error) {
	var env envelope
	if err := s.c.Post(ctx, "/api/ipals", f, &env); err != nil {
		return nil, err
	}
	return decodeFacility(env, f)
}

// Update changes a facility.
func (s *IPALService) Update(ctx context.Context, ipalID int, f *models.Facility) (*models.Facility, error) {
	var env envelope
	if err := s.c.Put(ctx, "/api/ipals/"+strconv.Itoa(ipalID), f, &env); err != nil {
		return nil, err
	}
	return decodeFacility(env, f)
}

// Delete removes a facility.
func (s *IPALService) Delete(ctx context.Context, ipalID int) error {
	return s.c.Delete(ctx, "/api/ipals/"+strconv.Itoa(ipalID), nil)
}

func decodeFacility(env envelope, fallback *models.Facility) (*models.Facility, error) {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fallback, nil
	}
	var f models.Facility
	if err := json.Unmarshal(env.Data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode facility: %w", err)
	}
	return &f, nil
}
