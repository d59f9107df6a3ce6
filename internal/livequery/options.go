package livequery

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"ipal-monitor/internal/models"
)

var (
	// ErrInvalidFacilityID is returned for a missing, non-numeric or non-positive facility id.
	ErrInvalidFacilityID = errors.New("invalid facility id")
	// ErrUnknownOption is returned by ParseOptions for an unrecognised key.
	ErrUnknownOption = errors.New("unknown filter option")
	// ErrInvalidOption is returned for a recognised key with a bad value.
	ErrInvalidOption = errors.New("invalid filter option")
)

// Status filters.
const (
	StatusActive       = models.AlertStatusActive
	StatusAcknowledged = models.AlertStatusAcknowledged
	StatusResolved     = models.AlertStatusResolved
	StatusAll          = "all"
)

// Result limits.
const (
	DefaultMaxResults = 10
	MaxResultsLimit   = 100
)

// Recognised option keys for ParseOptions.
const (
	OptionMaxResults     = "maxResults"
	OptionStatusFilter   = "statusFilter"
	OptionSeverityFilter = "severityFilter"
	OptionPriorityOnly   = "priorityOnly"
)

var validStatusFilters = map[string]bool{
	StatusActive:       true,
	StatusAcknowledged: true,
	StatusResolved:     true,
	StatusAll:          true,
}

var validSeverities = map[string]bool{
	models.SeverityCritical: true,
	models.SeverityHigh:     true,
	models.SeverityMedium:   true,
	models.SeverityLow:      true,
}

// PrioritySeverities is the severity set used when PriorityOnly is on.
var PrioritySeverities = []string{models.SeverityCritical, models.SeverityHigh}

// Options are the alert subscription options. The zero value is not valid;
// start from DefaultOptions.
type Options struct {
	MaxResults     int
	StatusFilter   string
	SeverityFilter string // "" means no explicit severity
	PriorityOnly   bool   // only critical+high when SeverityFilter is empty
}

// DefaultOptions returns the dashboard defaults: 10 active critical/high alerts.
func DefaultOptions() Options {
	return Options{
		MaxResults:   DefaultMaxResults,
		StatusFilter: StatusActive,
		PriorityOnly: true,
	}
}

// Validate checks every field against its enumeration or range.
func (o Options) Validate() error {
	if o.MaxResults < 0 || o.MaxResults > MaxResultsLimit {
		return fmt.Errorf("%w: %s must be between 0 (default) and %d, got %d", ErrInvalidOption, OptionMaxResults, MaxResultsLimit, o.MaxResults)
	}
	if !validStatusFilters[o.StatusFilter] {
		return fmt.Errorf("%w: %s %q", ErrInvalidOption, OptionStatusFilter, o.StatusFilter)
	}
	if o.SeverityFilter != "" && !validSeverities[o.SeverityFilter] {
		return fmt.Errorf("%w: %s %q", ErrInvalidOption, OptionSeverityFilter, o.SeverityFilter)
	}
	return nil
}

// ParseOptions builds Options from a loosely typed map (for example decoded
// JSON). Missing keys keep their defaults; unknown keys are rejected.
func ParseOptions(raw map[string]any) (Options, error) {
	opts := DefaultOptions()

	var unknown []string
	for key, value := range raw {
		switch key {
		case OptionMaxResults:
			n, ok := models.AsInt(value)
			if !ok {
				return Options{}, fmt.Errorf("%w: %s must be an integer, got %v", ErrInvalidOption, key, value)
			}
			opts.MaxResults = n
		case OptionStatusFilter:
			s, ok := value.(string)
			if !ok {
				return Options{}, fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidOption, key, value)
			}
			opts.StatusFilter = s
		case OptionSeverityFilter:
			if value == nil {
				opts.SeverityFilter = ""
				continue
			}
			s, ok := value.(string)
			if !ok {
				return Options{}, fmt.Errorf("%w: %s must be a string or null, got %T", ErrInvalidOption, key, value)
			}
			opts.SeverityFilter = s
		case OptionPriorityOnly:
			b, ok := value.(bool)
			if !ok {
				return Options{}, fmt.Errorf("%w: %s must be a boolean, got %T", ErrInvalidOption, key, value)
			}
			opts.PriorityOnly = b
		default:
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Options{}, fmt.Errorf("%w: %s", ErrUnknownOption, strings.Join(unknown, ", "))
	}

	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// ParseFacilityID coerces a caller supplied facility id. Integers, integral
// floats and numeric strings are accepted; everything else is an error.
func ParseFacilityID(v any) (int, error) {
	if v == nil {
		return 0, fmt.Errorf("%w: missing", ErrInvalidFacilityID)
	}
	if s, ok := v.(string); ok {
		v = strings.TrimSpace(s)
	}
	id, ok := models.AsInt(v)
	if !ok {
		return 0, fmt.Errorf("%w: %v is not an integer", ErrInvalidFacilityID, v)
	}
	if id <= 0 {
		return 0, fmt.Errorf("%w: %d is not positive", ErrInvalidFacilityID, id)
	}
	return id, nil
}
