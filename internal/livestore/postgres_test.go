package livestore

import (
	"context"
	"regexp"
	"testing"

	"ipal-monitor/internal/livequery"
	"ipal-monitor/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db, zap.NewNop()), mock
}

func TestPostgresStore_Compile(t *testing.T) {
	store, _ := newMockStore(t)

	query, args, err := store.compile(priorityQuery(t, 7), false)
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id, ipal_id, data FROM alerts WHERE ipal_id = $1 AND data->>'status' = $2 AND data->>'severity' = ANY($3)"+
			" ORDER BY (data->>'created_at')::timestamptz DESC LIMIT 10",
		query)
	require.Len(t, args, 3)
	assert.Equal(t, 7, args[0])
	assert.Equal(t, "active", args[1])
	assert.Equal(t, pq.Array([]string{"critical", "high"}), args[2])
}

func TestPostgresStore_CompileRejectsBadInput(t *testing.T) {
	store, _ := newMockStore(t)

	_, _, err := store.compile(livequery.NewQuery("users"), false)
	assert.ErrorIs(t, err, ErrUnknownCollection)

	q := livequery.NewQuery(models.CollectionAlerts).Where("status'; DROP TABLE alerts; --", livequery.OpEqual, "x")
	_, _, err = store.compile(q, false)
	assert.Error(t, err)
}

func TestPostgresStore_Run(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "ipal_id", "data"}).
		AddRow("a2", 7, []byte(`{"status":"active","severity":"critical"}`)).
		AddRow("a1", 7, []byte(`{"ipal_id":7,"status":"active","severity":"high"}`))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, ipal_id, data FROM alerts WHERE ipal_id = $1")).
		WithArgs(7, "active", pq.Array([]string{"critical", "high"})).
		WillReturnRows(rows)

	docs, err := store.Run(context.Background(), priorityQuery(t, 7))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a2", docs[0].ID)
	assert.Equal(t, "critical", docs[0].Data["severity"])
	assert.Equal(t, 7, docs[0].Data["ipal_id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Count(t *testing.T) {
	store, mock := newMockStore(t)

	spec, err := livequery.NewFilterSpec(7, livequery.Options{StatusFilter: "active"})
	require.NoError(t, err)
	q, err := livequery.BuildCount(models.CollectionAlerts, spec)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM alerts WHERE ipal_id = $1 AND data->>'status' = $2")).
		WithArgs(7, "active").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	n, err := store.Count(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_EnsureSchema(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS alerts")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
