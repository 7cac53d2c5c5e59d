package repo

import (
	"context"
	"sync"

	"github.com/bookshelf-agent/server/internal/agent/model"
)

// ring is a fixed-capacity buffer that overwrites its oldest entry when full.
type ring struct {
	mu      sync.Mutex
	entries []model.ConversationEntry
	start   int
	size    int
}

func (r *ring) push(e model.ConversationEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	capacity := len(r.entries)
	if r.size < capacity {
		r.entries[(r.start+r.size)%capacity] = e
		r.size++
		return
	}
	r.entries[r.start] = e
	r.start = (r.start + 1) % capacity
}

func (r *ring) snapshot() []model.ConversationEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.ConversationEntry, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.entries[(r.start+i)%len(r.entries)]
	}
	return out
}

func (r *ring) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// MemorySessionRepository keeps sessions in process. Appends for one user are
// serialised; different users do not contend beyond the map lookup.
type MemorySessionRepository struct {
	mu         sync.RWMutex
	sessions   map[string]*ring
	maxEntries int
}

func NewMemorySessionRepository(maxEntries int) *MemorySessionRepository {
	if maxEntries <= 0 {
		maxEntries = model.DefaultMaxEntries
	}
	return &MemorySessionRepository{
		sessions:   map[string]*ring{},
		maxEntries: maxEntries,
	}
}

func (m *MemorySessionRepository) session(userID string, create bool) *ring {
	m.mu.RLock()
	r, ok := m.sessions[userID]
	m.mu.RUnlock()
	if ok || !create {
		return r
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok = m.sessions[userID]; ok {
		return r
	}
	r = &ring{entries: make([]model.ConversationEntry, m.maxEntries)}
	m.sessions[userID] = r
	return r
}

func (m *MemorySessionRepository) Append(_ context.Context, userID string, entry model.ConversationEntry) error {
	m.session(userID, true).push(entry)
	return nil
}

func (m *MemorySessionRepository) History(_ context.Context, userID string) ([]model.ConversationEntry, error) {
	r := m.session(userID, false)
	if r == nil {
		return []model.ConversationEntry{}, nil
	}
	return r.snapshot(), nil
}

func (m *MemorySessionRepository) Clear(_ context.Context, userID string) error {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
	return nil
}

func (m *MemorySessionRepository) Count(_ context.Context, userID string) (int, error) {
	r := m.session(userID, false)
	if r == nil {
		return 0, nil
	}
	return r.len(), nil
}

var _ model.SessionRepository = (*MemorySessionRepository)(nil)
