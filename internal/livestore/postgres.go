package livestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"ipal-monitor/internal/livequery"
	"ipal-monitor/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// ChangeChannel is the LISTEN/NOTIFY channel the schema triggers publish on.
const ChangeChannel = "ipal_changes"

// Schema creates the document tables and the change-notification trigger.
// Documents keep ipal_id as a column for indexing; every other field lives
// in the JSONB data column.
const Schema = `
CREATE TABLE IF NOT EXISTS alerts (
	id         TEXT PRIMARY KEY,
	ipal_id    INTEGER NOT NULL,
	data       JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS alerts_ipal_created_idx
	ON alerts (ipal_id, ((data->>'created_at')::timestamptz) DESC);

CREATE TABLE IF NOT EXISTS sensor_readings (
	id         TEXT PRIMARY KEY,
	ipal_id    INTEGER NOT NULL,
	data       JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS sensor_readings_ipal_ts_idx
	ON sensor_readings (ipal_id, ((data->>'timestamp')::timestamptz) DESC);

CREATE OR REPLACE FUNCTION notify_ipal_change() RETURNS trigger AS $$
BEGIN
	PERFORM pg_notify('ipal_changes', json_build_object(
		'collection', TG_TABLE_NAME,
		'ipal_id', COALESCE(NEW.ipal_id, OLD.ipal_id),
		'doc_id', COALESCE(NEW.id, OLD.id)
	)::text);
	RETURN NULL;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS alerts_notify ON alerts;
CREATE TRIGGER alerts_notify AFTER INSERT OR UPDATE OR DELETE ON alerts
	FOR EACH ROW EXECUTE FUNCTION notify_ipal_change();
DROP TRIGGER IF EXISTS sensor_readings_notify ON sensor_readings;
CREATE TRIGGER sensor_readings_notify AFTER INSERT OR UPDATE OR DELETE ON sensor_readings
	FOR EACH ROW EXECUTE FUNCTION notify_ipal_change();
`

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PostgresStore serves collections from PostgreSQL JSONB tables.
type PostgresStore struct {
	db     *sql.DB
	tables map[string]string
	logger *zap.Logger
}

// NewPostgresStore serves the alerts and sensor_readings collections from db.
func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		db: db,
		tables: map[string]string{
			models.CollectionAlerts:         "alerts",
			models.CollectionSensorReadings: "sensor_readings",
		},
		logger: logger,
	}
}

// EnsureSchema creates tables, indexes and triggers if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Run implements Store.
func (s *PostgresStore) Run(ctx context.Context, q livequery.Query) ([]models.Document, error) {
	query, args, err := s.compile(q, false)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Collection, err)
	}
	defer rows.Close()

	docs := make([]models.Document, 0)
	for rows.Next() {
		var (
			id     string
			ipalID int
			raw    []byte
		)
		if err := rows.Scan(&id, &ipalID, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", q.Collection, err)
		}
		data := make(map[string]any)
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to decode %s/%s: %w", q.Collection, id, err)
		}
		// the column is authoritative
		data[models.FieldFacilityID] = ipalID
		docs = append(docs, models.Document{ID: id, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", q.Collection, err)
	}

	s.logger.Debug("Live query executed",
		zap.String("query", q.Key()),
		zap.Int("doc_count", len(docs)),
	)
	return docs, nil
}

// Count implements Store with SELECT COUNT(*); no documents are transferred.
func (s *PostgresStore) Count(ctx context.Context, q livequery.Query) (int64, error) {
	query, args, err := s.compile(q, true)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", q.Collection, err)
	}
	return n, nil
}

// compile renders q as SQL. Field names are validated identifiers, values
// are always bound parameters.
func (s *PostgresStore) compile(q livequery.Query, count bool) (string, []any, error) {
	table, ok := s.tables[q.Collection]
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrUnknownCollection, q.Collection)
	}

	var b strings.Builder
	if count {
		b.WriteString("SELECT COUNT(*) FROM ")
	} else {
		b.WriteString("SELECT id, ipal_id, data FROM ")
	}
	b.WriteString(table)

	args := make([]any, 0, len(q.Predicates))
	for i, p := range q.Predicates {
		if !identPattern.MatchString(p.Field) {
			return "", nil, fmt.Errorf("invalid field name %q", p.Field)
		}
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}

		placeholder := "$" + strconv.Itoa(len(args)+1)
		switch p.Op {
		case livequery.OpEqual:
			if p.Field == models.FieldFacilityID {
				id, ok := models.AsInt(p.Value)
				if !ok {
					return "", nil, fmt.Errorf("invalid %s value %v", p.Field, p.Value)
				}
				b.WriteString("ipal_id = " + placeholder)
				args = append(args, id)
			} else {
				b.WriteString(jsonField(p.Field) + " = " + placeholder)
				args = append(args, fmt.Sprint(p.Value))
			}
		case livequery.OpIn:
			values, ok := p.Value.([]string)
			if !ok {
				return "", nil, fmt.Errorf("invalid %s set %v", p.Field, p.Value)
			}
			b.WriteString(jsonField(p.Field) + " = ANY(" + placeholder + ")")
			args = append(args, pq.Array(values))
		default:
			return "", nil, fmt.Errorf("unsupported operator %q", p.Op)
		}
	}

	if !count {
		if q.OrderBy != "" {
			if !identPattern.MatchString(q.OrderBy) {
				return "", nil, fmt.Errorf("invalid order field %q", q.OrderBy)
			}
			b.WriteString(" ORDER BY (" + jsonField(q.OrderBy) + ")::timestamptz")
			if q.Descending {
				b.WriteString(" DESC")
			}
		}
		if q.Limit > 0 {
			b.WriteString(" LIMIT " + strconv.Itoa(q.Limit))
		}
	}
	return b.String(), args, nil
}

func jsonField(field string) string {
	return "data->>'" + field + "'"
}
