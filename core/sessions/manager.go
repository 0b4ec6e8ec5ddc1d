package sessions

import (
	"context"
	"sync"
)

// Manager fronts a Storage backend with the session lifecycle the
// orchestration layer needs: register on creation, look up by id, drop on
// teardown.
type Manager struct {
	// mu makes the check-then-register in Create atomic; the storage backend
	// only synchronizes individual calls.
	mu      sync.Mutex
	storage Storage
}

// ManagerOption customizes a manager at construction.
type ManagerOption func(*Manager)

// WithStorage swaps the storage backend. The default is an in-memory LRU
// store with the default capacity.
func WithStorage(storage Storage) ManagerOption {
	return func(m *Manager) {
		if storage != nil {
			m.storage = storage
		}
	}
}

func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{storage: NewMemoryStorage()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create registers the session context. Registering an id that already
// exists returns the existing context unchanged, so repeated creation is
// safe, including from concurrent callers.
func (m *Manager) Create(ctx context.Context, session *Context) *Context {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.storage.Get(session.SessionID()); ok {
		logger.InfoContext(ctx, "session already registered", "session_id", session.SessionID())
		return existing
	}

	m.storage.Set(session.SessionID(), session)
	logger.InfoContext(ctx, "session registered",
		"session_id", session.SessionID(), "tag_id", session.TagID(), "active_sessions", m.storage.Len())
	return session
}

// Get looks up a session context by id, promoting it in the underlying
// store.
func (m *Manager) Get(ctx context.Context, sessionID string) (*Context, bool) {
	session, ok := m.storage.Get(sessionID)
	if !ok {
		logger.WarnContext(ctx, "session not found", "session_id", sessionID)
		return nil, false
	}
	return session, true
}

// Delete removes a session context. Deleting an absent id is a no-op.
func (m *Manager) Delete(ctx context.Context, sessionID string) {
	m.storage.Delete(sessionID)
	logger.InfoContext(ctx, "session removed", "session_id", sessionID, "active_sessions", m.storage.Len())
}

// Len reports the number of registered sessions.
func (m *Manager) Len() int {
	return m.storage.Len()
}
