package audit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
	now     func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.CreatedAt = s.now().UTC()
	s.records = append(s.records, rec)
	return rec, nil
}

// Records returns a copy of everything appended so far.
func (s *MemoryStore) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}
