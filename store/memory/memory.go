// Package memory provides an in-memory run store, mainly for tests and
// one-off runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/smallnest/multisearch/store"
)

// Store keeps run records in memory. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records map[string]*store.RunRecord
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{records: make(map[string]*store.RunRecord)}
}

// Save stores a record, replacing any record with the same ID.
func (s *Store) Save(ctx context.Context, record *store.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *record
	s.records[record.ID] = &cp
	return nil
}

// Load retrieves a record by run ID.
func (s *Store) Load(ctx context.Context, id string) (*store.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// List returns records newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*store.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*store.RunRecord, 0, len(s.records))
	for _, rec := range s.records {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes a record.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}
