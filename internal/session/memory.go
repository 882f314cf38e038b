package session

import (
	"context"
	"sync"
	"time"

	"github.com/comigor/campbot/internal/chat"
)

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	opts     options
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		opts:     buildOptions(opts),
	}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &Session{
		ID:        s.ID,
		Turns:     append([]chat.Turn(nil), s.Turns...),
		CreatedAt: s.CreatedAt,
	}, nil
}

func (m *MemoryStore) Create(_ context.Context) (*Session, error) {
	s := &Session{ID: m.opts.newID(), CreatedAt: m.opts.clock()}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return &Session{ID: s.ID, CreatedAt: s.CreatedAt}, nil
}

func (m *MemoryStore) Append(_ context.Context, id string, turns ...chat.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.Turns = append(s.Turns, turns...)
	return nil
}

func (m *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if expired(s.CreatedAt, now, m.opts.ttl) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of live sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
