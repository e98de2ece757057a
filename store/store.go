// Package store persists finished research runs. Backends exist for
// memory, SQLite, Postgres and Redis.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/smallnest/multisearch/graph"
)

// ErrNotFound is returned when a run record does not exist.
var ErrNotFound = errors.New("store: run not found")

// RunRecord is one finished run: the question, the answer, and how the
// pipeline got there.
type RunRecord struct {
	ID         string                      `json:"id"`
	Query      string                      `json:"query"`
	Answer     string                      `json:"answer"`
	NodeStatus map[string]graph.NodeStatus `json:"node_status"`
	Failed     bool                        `json:"failed"`
	Diagnostic string                      `json:"diagnostic,omitempty"`
	Elapsed    time.Duration               `json:"elapsed"`
	CreatedAt  time.Time                   `json:"created_at"`
}

// NewRecord builds a record from a finished run outcome.
func NewRecord(query, answer string, outcome *graph.RunOutcome) *RunRecord {
	return &RunRecord{
		ID:         outcome.RunID,
		Query:      query,
		Answer:     answer,
		NodeStatus: outcome.NodeStatus,
		Failed:     outcome.OverallFailed,
		Diagnostic: outcome.Diagnostic,
		Elapsed:    outcome.Elapsed,
		CreatedAt:  time.Now().UTC(),
	}
}

// RunStore is the persistence interface for run history.
type RunStore interface {
	// Save stores a record, replacing any record with the same ID.
	Save(ctx context.Context, record *RunRecord) error

	// Load retrieves a record by run ID. Returns ErrNotFound when absent.
	Load(ctx context.Context, id string) (*RunRecord, error)

	// List returns records newest first. limit <= 0 returns all.
	List(ctx context.Context, limit int) ([]*RunRecord, error)

	// Delete removes a record. Deleting an absent record is not an error.
	Delete(ctx context.Context, id string) error
}
