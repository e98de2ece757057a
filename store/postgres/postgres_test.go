package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/multisearch/graph"
	"github.com/smallnest/multisearch/store"
)

func testRecord() *store.RunRecord {
	return &store.RunRecord{
		ID:     "run-1",
		Query:  "why is the sky blue",
		Answer: "rayleigh scattering",
		NodeStatus: map[string]graph.NodeStatus{
			"web":  graph.StatusSucceeded,
			"bing": graph.StatusFailed,
		},
		Failed:     false,
		Diagnostic: "bing: api down",
		Elapsed:    1200 * time.Millisecond,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestStore_Save(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewStoreWithPool(mock, "runs")
	rec := testRecord()
	statusJSON, _ := json.Marshal(rec.NodeStatus)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO runs")).
		WithArgs(
			rec.ID,
			rec.Query,
			rec.Answer,
			statusJSON,
			rec.Failed,
			rec.Diagnostic,
			int64(rec.Elapsed),
			rec.CreatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Save(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Load(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewStoreWithPool(mock, "runs")
	rec := testRecord()
	statusJSON, _ := json.Marshal(rec.NodeStatus)

	rows := pgxmock.NewRows([]string{"id", "query", "answer", "node_status", "failed", "diagnostic", "elapsed_ns", "created_at"}).
		AddRow(rec.ID, rec.Query, rec.Answer, statusJSON, rec.Failed, rec.Diagnostic, int64(rec.Elapsed), rec.CreatedAt)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, query, answer, node_status, failed, diagnostic, elapsed_ns, created_at FROM runs WHERE id = $1")).
		WithArgs(rec.ID).
		WillReturnRows(rows)

	got, err := s.Load(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Answer, got.Answer)
	assert.Equal(t, graph.StatusFailed, got.NodeStatus["bing"])
	assert.Equal(t, rec.Elapsed, got.Elapsed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_LoadNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewStoreWithPool(mock, "runs")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, query, answer, node_status, failed, diagnostic, elapsed_ns, created_at FROM runs WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"id", "query", "answer", "node_status", "failed", "diagnostic", "elapsed_ns", "created_at"}))

	_, err = s.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewStoreWithPool(mock, "runs")
	rec := testRecord()
	statusJSON, _ := json.Marshal(rec.NodeStatus)

	rows := pgxmock.NewRows([]string{"id", "query", "answer", "node_status", "failed", "diagnostic", "elapsed_ns", "created_at"}).
		AddRow("run-2", "q2", "a2", statusJSON, false, "", int64(0), rec.CreatedAt).
		AddRow("run-1", "q1", "a1", statusJSON, true, "all sources failed", int64(0), rec.CreatedAt.Add(-time.Hour))

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC LIMIT $1")).
		WithArgs(2).
		WillReturnRows(rows)

	got, err := s.List(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "run-2", got[0].ID)
	assert.True(t, got[1].Failed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Delete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewStoreWithPool(mock, "runs")

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM runs WHERE id = $1")).
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, s.Delete(context.Background(), "run-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SaveError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewStoreWithPool(mock, "runs")
	rec := testRecord()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO runs")).
		WillReturnError(errors.New("connection reset"))

	err = s.Save(context.Background(), rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}
