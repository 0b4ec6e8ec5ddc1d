package sessions

import (
	"container/list"
	"sync"
)

// Storage is the pluggable backend the session manager keeps contexts in.
type Storage interface {
	Get(sessionID string) (*Context, bool)
	Set(sessionID string, session *Context)
	Delete(sessionID string)
	Len() int
}

const defaultStorageCapacity = 1000

// MemoryStorage is a capacity-bounded in-process store with
// least-recently-used eviction. Both Get and Set count as use.
type MemoryStorage struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[string]*list.Element
}

type storageEntry struct {
	sessionID string
	session   *Context
}

// MemoryStorageOption customizes a memory storage at construction.
type MemoryStorageOption func(*MemoryStorage)

// WithCapacity bounds the store to at most capacity entries.
func WithCapacity(capacity int) MemoryStorageOption {
	return func(s *MemoryStorage) {
		if capacity > 0 {
			s.capacity = capacity
		}
	}
}

func NewMemoryStorage(opts ...MemoryStorageOption) *MemoryStorage {
	s := &MemoryStorage{
		capacity: defaultStorageCapacity,
		order:    list.New(),
		entries:  map[string]*list.Element{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the stored context and promotes it to most recently used.
func (s *MemoryStorage) Get(sessionID string) (*Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	element, ok := s.entries[sessionID]
	if !ok {
		return nil, false
	}

	s.order.MoveToFront(element)
	return element.Value.(*storageEntry).session, true
}

// Set inserts or overwrites the context and promotes it to most recently
// used, evicting the least recently used entry if the store is over
// capacity.
func (s *MemoryStorage) Set(sessionID string, session *Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if element, ok := s.entries[sessionID]; ok {
		element.Value.(*storageEntry).session = session
		s.order.MoveToFront(element)
		return
	}

	s.entries[sessionID] = s.order.PushFront(&storageEntry{sessionID: sessionID, session: session})

	if s.order.Len() > s.capacity {
		oldest := s.order.Back()
		if oldest != nil {
			s.order.Remove(oldest)
			delete(s.entries, oldest.Value.(*storageEntry).sessionID)
		}
	}
}

// Delete removes the entry for sessionID, if present.
func (s *MemoryStorage) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	element, ok := s.entries[sessionID]
	if !ok {
		return
	}

	s.order.Remove(element)
	delete(s.entries, sessionID)
}

// Len reports the number of stored sessions.
func (s *MemoryStorage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.order.Len()
}
