package identity

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps patients in memory. Used for development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	patients map[string]Patient
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{patients: make(map[string]Patient)}
}

// Add inserts a patient, assigning an ID and creation time when missing.
// The national identifier is stored normalized.
func (s *MemoryStore) Add(p Patient) Patient {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.NationalID = NormalizeNationalID(p.NationalID)

	s.mu.Lock()
	s.patients[p.ID] = p
	s.mu.Unlock()
	return p
}

// Find implements Store.
func (s *MemoryStore) Find(_ context.Context, lookup Lookup, limit int) ([]Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []Patient
	for _, p := range s.patients {
		if p.NationalID != lookup.NationalID {
			continue
		}
		if lookup.BirthDate != "" && p.BirthDate != lookup.BirthDate {
			continue
		}
		matches = append(matches, p)
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[id]
	if !ok {
		return Patient{}, ErrNotFound
	}
	return p, nil
}
