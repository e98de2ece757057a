// Package sqlite persists run history in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/smallnest/multisearch/graph"
	"github.com/smallnest/multisearch/store"
)

// Store implements store.RunStore using SQLite.
type Store struct {
	db        *sql.DB
	tableName string
}

// Options configures the SQLite connection.
type Options struct {
	Path      string
	TableName string // Default "runs"
}

// NewStore opens the database and ensures the schema exists.
func NewStore(opts Options) (*Store, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "runs"
	}

	s := &Store{db: db, tableName: tableName}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			answer TEXT NOT NULL,
			node_status TEXT NOT NULL,
			failed INTEGER NOT NULL,
			diagnostic TEXT,
			elapsed_ns INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_created_at ON %s (created_at);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores a record, replacing any record with the same ID.
func (s *Store) Save(ctx context.Context, record *store.RunRecord) error {
	statusJSON, err := json.Marshal(record.NodeStatus)
	if err != nil {
		return fmt.Errorf("failed to marshal node status: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, query, answer, node_status, failed, diagnostic, elapsed_ns, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			query = excluded.query,
			answer = excluded.answer,
			node_status = excluded.node_status,
			failed = excluded.failed,
			diagnostic = excluded.diagnostic,
			elapsed_ns = excluded.elapsed_ns,
			created_at = excluded.created_at
	`, s.tableName)

	_, err = s.db.ExecContext(ctx, query,
		record.ID,
		record.Query,
		record.Answer,
		string(statusJSON),
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
		WHERE id = ?
	`, s.tableName)

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
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
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.tableName)
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*store.RunRecord, error) {
	var rec store.RunRecord
	var statusJSON string
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
	if err := json.Unmarshal([]byte(statusJSON), &rec.NodeStatus); err != nil {
		return nil, fmt.Errorf("failed to unmarshal node status: %w", err)
	}
	return &rec, nil
}
