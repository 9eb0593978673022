package conversation

import (
	"context"
	"sync"
	"time"
)

// Role is who authored a turn.
type Role string

const (
	RolePatient   Role = "patient"
	RoleAssistant Role = "assistant"
)

// Turn is one stored chat entry.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Fallback  bool      `json:"fallback,omitempty"`
}

// Participant identifies the resolved patient behind a session.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Session is the per-login chat state.
type Session struct {
	ID          string       `json:"id"`
	Participant *Participant `json:"participant,omitempty"`
	History     []Turn       `json:"history"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (s *Session) clone() *Session {
	out := *s
	if s.Participant != nil {
		p := *s.Participant
		out.Participant = &p
	}
	out.History = append([]Turn(nil), s.History...)
	return &out
}

// SessionStore persists sessions. Lock grants the single in-flight turn of
// a session; it fails with ErrTurnInProgress while another turn holds it.
type SessionStore interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Lock(ctx context.Context, id string) (unlock func(), err error)
}

// MemorySessionStore keeps sessions in process.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	locks    map[string]struct{}
}

// NewMemorySessionStore returns an empty store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*Session),
		locks:    make(map[string]struct{}),
	}
}

// Load implements SessionStore.
func (m *MemorySessionStore) Load(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.clone(), nil
}

// Save implements SessionStore.
func (m *MemorySessionStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.clone()
	return nil
}

// Lock implements SessionStore.
func (m *MemorySessionStore) Lock(_ context.Context, id string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.locks[id]; held {
		return nil, ErrTurnInProgress
	}
	m.locks[id] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.locks, id)
			m.mu.Unlock()
		})
	}, nil
}
