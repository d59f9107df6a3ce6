package livequery

import (
	"fmt"
	"sort"
	"strings"

	"ipal-monitor/internal/models"
)

// Op is a predicate operator understood by every store.
type Op string

const (
	OpEqual Op = "=="
	OpIn    Op = "in"
)

// Predicate is a single field condition. Predicates of a query are ANDed.
type Predicate struct {
	Field string
	Op    Op
	Value any
}

// Query is a filtered, ordered, limited query against one collection.
// Queries are values; every builder method returns a copy.
type Query struct {
	Collection string
	Predicates []Predicate
	OrderBy    string
	Descending bool
	Limit      int // 0 means unlimited
}

// NewQuery starts a query on collection.
func NewQuery(collection string) Query {
	return Query{Collection: collection}
}

// Where appends a conjunctive predicate.
func (q Query) Where(field string, op Op, value any) Query {
	preds := make([]Predicate, len(q.Predicates), len(q.Predicates)+1)
	copy(preds, q.Predicates)
	q.Predicates = append(preds, Predicate{Field: field, Op: op, Value: value})
	return q
}

// OrderByDesc sets a descending order.
func (q Query) OrderByDesc(field string) Query {
	q.OrderBy = field
	q.Descending = true
	return q
}

// WithLimit caps the number of documents.
func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// Build turns spec into a live query on collection. The construction order is
// fixed: facility, status, severity, then ordering, then limit.
func Build(collection string, spec FilterSpec) (Query, error) {
	if collection == "" {
		return Query{}, fmt.Errorf("%w: empty collection", ErrInvalidOption)
	}
	if spec.IsZero() {
		return Query{}, fmt.Errorf("%w: spec has no facility", ErrInvalidFacilityID)
	}

	q := filtered(collection, spec)
	q = q.OrderByDesc(orderField(collection))
	q = q.WithLimit(spec.limit)
	return q, nil
}

// BuildCount returns the unordered, unlimited variant of Build for
// server-side counting.
func BuildCount(collection string, spec FilterSpec) (Query, error) {
	if spec.IsZero() {
		return Query{}, fmt.Errorf("%w: spec has no facility", ErrInvalidFacilityID)
	}
	return filtered(collection, spec), nil
}

func filtered(collection string, spec FilterSpec) Query {
	q := NewQuery(collection).Where(models.FieldFacilityID, OpEqual, spec.facilityID)
	if spec.status != StatusAll && spec.status != "" {
		q = q.Where(models.FieldStatus, OpEqual, spec.status)
	}
	switch sev := spec.Severities(); len(sev) {
	case 0:
	case 1:
		q = q.Where(models.FieldSeverity, OpEqual, sev[0])
	default:
		q = q.Where(models.FieldSeverity, OpIn, sev)
	}
	return q
}

// Key is a stable identity for the query, suitable for logging and maps.
func (q Query) Key() string {
	var b strings.Builder
	b.WriteString(q.Collection)
	for _, p := range q.Predicates {
		fmt.Fprintf(&b, "|%s%s%v", p.Field, p.Op, p.Value)
	}
	if q.OrderBy != "" {
		dir := "asc"
		if q.Descending {
			dir = "desc"
		}
		fmt.Fprintf(&b, "|order:%s:%s", q.OrderBy, dir)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, "|limit:%d", q.Limit)
	}
	return b.String()
}

// Matches evaluates the predicates against a document.
func (q Query) Matches(doc models.Document) bool {
	for _, p := range q.Predicates {
		v, ok := doc.Data[p.Field]
		if !ok {
			return false
		}
		switch p.Op {
		case OpEqual:
			if !valueEqual(v, p.Value) {
				return false
			}
		case OpIn:
			if !valueIn(v, p.Value) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Apply runs the query over docs in memory: filter, order, then limit.
// docs is not modified.
func (q Query) Apply(docs []models.Document) []models.Document {
	out := make([]models.Document, 0, len(docs))
	for _, d := range docs {
		if q.Matches(d) {
			out = append(out, d)
		}
	}
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i].Data[q.OrderBy], out[j].Data[q.OrderBy]
			if q.Descending {
				return orderLess(b, a)
			}
			return orderLess(a, b)
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	}
	return false
}

func valueEqual(a, b any) bool {
	if isNumber(a) && isNumber(b) {
		ai, aok := models.AsInt(a)
		bi, bok := models.AsInt(b)
		if aok && bok {
			return ai == bi
		}
		return fmt.Sprint(a) == fmt.Sprint(b)
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as == bs
	}
	return a == b
}

func valueIn(v, set any) bool {
	switch s := set.(type) {
	case []string:
		for _, item := range s {
			if valueEqual(v, item) {
				return true
			}
		}
	case []any:
		for _, item := range s {
			if valueEqual(v, item) {
				return true
			}
		}
	}
	return false
}

func orderLess(a, b any) bool {
	ta, tb := models.AsTime(a), models.AsTime(b)
	if !ta.IsZero() || !tb.IsZero() {
		return ta.Before(tb)
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}
