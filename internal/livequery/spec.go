package livequery

import "ipal-monitor/internal/models"

// FilterSpec is an immutable description of the documents a subscription
// tracks. Two specs are interchangeable iff Equal reports true.
type FilterSpec struct {
	facilityID int
	status     string
	severity   string
	priority   bool
	limit      int
}

// NewFilterSpec validates facilityID and opts and freezes them into a spec.
// An explicit SeverityFilter wins over PriorityOnly.
func NewFilterSpec(facilityID any, opts Options) (FilterSpec, error) {
	id, err := ParseFacilityID(facilityID)
	if err != nil {
		return FilterSpec{}, err
	}
	if err := opts.Validate(); err != nil {
		return FilterSpec{}, err
	}

	spec := FilterSpec{
		facilityID: id,
		status:     opts.StatusFilter,
		limit:      opts.MaxResults,
	}
	if spec.limit == 0 {
		spec.limit = DefaultMaxResults
	}
	switch {
	case opts.SeverityFilter != "":
		spec.severity = opts.SeverityFilter
	case opts.PriorityOnly:
		spec.priority = true
	}
	return spec, nil
}

// LatestReadingSpec tracks the single newest reading of a facility.
func LatestReadingSpec(facilityID any) (FilterSpec, error) {
	id, err := ParseFacilityID(facilityID)
	if err != nil {
		return FilterSpec{}, err
	}
	return FilterSpec{facilityID: id, status: StatusAll, limit: 1}, nil
}

// FacilityID returns the facility the spec is bound to.
func (s FilterSpec) FacilityID() int { return s.facilityID }

// Status returns the status filter.
func (s FilterSpec) Status() string { return s.status }

// Limit returns the maximum number of documents.
func (s FilterSpec) Limit() int { return s.limit }

// Severities returns the severity restriction; nil means any severity.
func (s FilterSpec) Severities() []string {
	switch {
	case s.severity != "":
		return []string{s.severity}
	case s.priority:
		out := make([]string, len(PrioritySeverities))
		copy(out, PrioritySeverities)
		return out
	default:
		return nil
	}
}

// WithFacility returns a copy bound to another facility.
func (s FilterSpec) WithFacility(facilityID any) (FilterSpec, error) {
	id, err := ParseFacilityID(facilityID)
	if err != nil {
		return FilterSpec{}, err
	}
	s.facilityID = id
	return s, nil
}

// Equal reports whether every field matches.
func (s FilterSpec) Equal(other FilterSpec) bool {
	return s == other
}

// IsZero reports whether the spec was never built.
func (s FilterSpec) IsZero() bool {
	return s.facilityID == 0
}

// orderField is the descending ordering key for a collection.
func orderField(collection string) string {
	if collection == models.CollectionSensorReadings {
		return models.FieldTimestamp
	}
	return models.FieldCreatedAt
}
