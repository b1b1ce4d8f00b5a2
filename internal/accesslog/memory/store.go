// Package memory keeps the most recent access records in process memory.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tjfontaine/edge-gateway/internal/accesslog"
)

// DefaultCapacity bounds the number of records kept by New(0).
const DefaultCapacity = 1000

// Store is a fixed-size ring of access records.
type Store struct {
	mu      sync.RWMutex
	records []*accesslog.Record
	next    int
	full    bool
}

var _ accesslog.Recorder = (*Store)(nil)

// New creates a store holding at most capacity records.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{records: make([]*accesslog.Record, capacity)}
}

func (s *Store) Record(ctx context.Context, rec *accesslog.Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	cp := *rec

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[s.next] = &cp
	s.next = (s.next + 1) % len(s.records)
	if s.next == 0 {
		s.full = true
	}
	return nil
}

func (s *Store) Recent(ctx context.Context, limit int) ([]*accesslog.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.next
	if s.full {
		n = len(s.records)
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]*accesslog.Record, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (s.next - i + len(s.records)) % len(s.records)
		cp := *s.records[idx]
		out = append(out, &cp)
	}
	return out, nil
}

// Len returns the number of records currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.full {
		return len(s.records)
	}
	return s.next
}

func (s *Store) Close() error { return nil }
