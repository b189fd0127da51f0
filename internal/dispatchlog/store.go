// Package dispatchlog keeps a bounded, in-memory history of forward attempts.
package dispatchlog

import (
	"sync"
	"time"

	"brewble/internal/model"
)

type Store struct {
	mu    sync.RWMutex
	buf   []model.DispatchRecord
	limit int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 1000
	}
	return &Store{limit: limit}
}

// Add appends rec, dropping the oldest record once the store is full.
func (s *Store) Add(rec model.DispatchRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) < s.limit {
		s.buf = append(s.buf, rec)
		return
	}
	copy(s.buf, s.buf[1:])
	s.buf[len(s.buf)-1] = rec
}

// List returns the newest limit records, oldest first. limit <= 0 means all.
func (s *Store) List(limit int) []model.DispatchRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.buf) {
		limit = len(s.buf)
	}
	out := make([]model.DispatchRecord, limit)
	copy(out, s.buf[len(s.buf)-limit:])
	return out
}

func (s *Store) Since(ts time.Time) []model.DispatchRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.DispatchRecord, 0)
	for _, rec := range s.buf {
		if !rec.Timestamp.Before(ts) {
			out = append(out, rec)
		}
	}
	return out
}

// Counts tallies records by status.
func (s *Store) Counts() map[model.DispatchStatus]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.DispatchStatus]int, 2)
	for _, rec := range s.buf {
		out[rec.Status]++
	}
	return out
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = nil
}
