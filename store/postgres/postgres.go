// Package postgres persists run history in PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smallnest/multisearch/graph"
	"github.com/smallnest/multisearch/store"
)

// DBPool defines the interface for a database connection pool.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store implements store.RunStore using PostgreSQL.
type Store struct {
	pool      DBPool
	tableName string
}

// Options configures the Postgres connection.
type Options struct {
	ConnString string
	TableName  string // Default "runs"
}

// NewStore creates a connection pool for the configured database.
func NewStore(ctx context.Context, opts Options) (*Store, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "runs"
	}
	return &Store{pool: pool, tableName: tableName}, nil
}

// NewStoreWithPool creates a store with an existing pool. Useful for
// testing with mocks.
func NewStoreWithPool(pool DBPool, tableName string) *Store {
	if tableName == "" {
		tableName = "runs"
	}
	return &Store{pool: pool, tableName: tableName}
}

// InitSchema creates the necessary table if it doesn't exist.
func (s *Store) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			answer TEXT NOT NULL,
			node_status JSONB NOT NULL,
			failed BOOLEAN NOT NULL,
			diagnostic TEXT,
			elapsed_ns BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_created_at ON %s (created_at);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Save stores a record, replacing any record with the same ID.
func (s *Store) Save(ctx context.Context, record *store.RunRecord) error {
	statusJSON, err := json.Marshal(record.NodeStatus)
	if err != nil {
		return fmt.Errorf("failed to marshal node status: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, query, answer, node_status, failed, diagnostic, elapsed_ns, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			query = EXCLUDED.query,
			answer = EXCLUDED.answer,
			node_status = EXCLUDED.node_status,
			failed = EXCLUDED.failed,
			diagnostic = EXCLUDED.diagnostic,
			elapsed_ns = EXCLUDED.elapsed_ns,
			created_at = EXCLUDED.created_at
	`, s.tableName)

	_, err = s.pool.Exec(ctx, query,
		record.ID,
		record.Query,
		record.Answer,
		statusJSON,
		record.Failed,
		record.Diagnostic,
		int64(record.Elapsed),
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// Load retrieves a record by run ID.
func (s *Store) Load(ctx context.Context, id string) (*store.RunRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, query, answer, node_status, failed, diagnostic, elapsed_ns, created_at
		FROM %s
		WHERE id = $1
	`, s.tableName)

	rec, err := scanRecord(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	return rec, nil
}

// List returns records newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*store.RunRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, query, answer, node_status, failed, diagnostic, elapsed_ns, created_at
		FROM %s
		ORDER BY created_at DESC
	`, s.tableName)
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var records []*store.RunRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return records, nil
}

// Delete removes a record.
func (s *Store) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.tableName)
	if _, err := s.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

func scanRecord(row pgx.Row) (*store.RunRecord, error) {
	var rec store.RunRecord
	var statusJSON []byte
	var elapsedNS int64
	var createdAt time.Time

	err := row.Scan(
		&rec.ID,
		&rec.Query,
		&rec.Answer,
		&statusJSON,
		&rec.Failed,
		&rec.Diagnostic,
		&elapsedNS,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Elapsed = time.Duration(elapsedNS)
	rec.CreatedAt = createdAt
	rec.NodeStatus = map[string]graph.NodeStatus{}
	if err := json.Unmarshal(statusJSON, &rec.NodeStatus); err != nil {
		return nil, fmt.Errorf("failed to unmarshal node status: %w", err)
	}
	return &rec, nil
}
