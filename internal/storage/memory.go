package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// InMemoryStore is a thread-safe store used when no durable backend is configured.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	now     func() time.Time
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]Record), now: time.Now}
}

// Insert adds a record. Inserting an existing job id is an error.
func (s *InMemoryStore) Insert(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.JobID == "" {
		return fmt.Errorf("storage: job id required")
	}
	if _, exists := s.records[rec.JobID]; exists {
		return fmt.Errorf("storage: job %s already exists", rec.JobID)
	}
	now := s.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	s.records[rec.JobID] = rec
	return nil
}

// Update applies the set fields to an existing record.
func (s *InMemoryStore) Update(_ context.Context, jobID string, u Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[jobID]
	if !ok {
		return ErrNotFound
	}
	u.Apply(&rec, s.now())
	s.records[jobID] = rec
	return nil
}

// Get returns a record by job id.
func (s *InMemoryStore) Get(_ context.Context, jobID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[jobID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// Close satisfies the Store interface.
func (s *InMemoryStore) Close() {}
