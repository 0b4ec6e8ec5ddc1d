package orchestration

import (
	"context"
	"sync"

	"github.com/voxloop/voxloop-core/core/sessions"
)

// Registry owns the map from session id to orchestrator: idempotent
// creation, lookup, and single or bulk destruction. It is the only
// cross-session shared structure besides the session store.
type Registry struct {
	mu            sync.RWMutex
	orchestrators map[string]*Orchestrator
	manager       *sessions.Manager

	orchestratorOpts []OrchestratorOption
}

// RegistryOption customizes a registry at construction.
type RegistryOption func(*Registry)

// WithManager sets the session manager backing the registry. The default
// manager uses an in-memory LRU store.
func WithManager(manager *sessions.Manager) RegistryOption {
	return func(r *Registry) {
		if manager != nil {
			r.manager = manager
		}
	}
}

// WithOrchestratorOptions sets options applied to every orchestrator the
// registry creates.
func WithOrchestratorOptions(opts ...OrchestratorOption) RegistryOption {
	return func(r *Registry) { r.orchestratorOpts = opts }
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		orchestrators: map[string]*Orchestrator{},
		manager:       sessions.NewManager(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create returns the orchestrator for sessionID, constructing and starting
// one if none exists. Repeated calls for the same id return the existing
// instance unchanged and do not re-run Start.
func (r *Registry) Create(ctx context.Context, session *sessions.Context, send SendCallback) *Orchestrator {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.orchestrators[session.SessionID()]; ok {
		logger.InfoContext(ctx, "orchestrator already exists", "session_id", session.SessionID())
		return existing
	}

	session = r.manager.Create(ctx, session)

	orchestrator := NewOrchestrator(session, send, r.orchestratorOpts...)
	orchestrator.Start(ctx)
	r.orchestrators[session.SessionID()] = orchestrator

	logger.InfoContext(ctx, "orchestrator created",
		"session_id", session.SessionID(), "active_sessions", len(r.orchestrators))
	return orchestrator
}

// Get returns the orchestrator for sessionID, if one exists.
func (r *Registry) Get(sessionID string) (*Orchestrator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orchestrator, ok := r.orchestrators[sessionID]
	return orchestrator, ok
}

// Len reports the number of live orchestrators.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.orchestrators)
}

// Destroy removes the session's orchestrator and stops it. Stopping happens
// outside the map lock so a slow drain never blocks other sessions.
// Destroying an absent session is a no-op.
func (r *Registry) Destroy(ctx context.Context, sessionID string) {
	r.mu.Lock()
	orchestrator, ok := r.orchestrators[sessionID]
	if ok {
		delete(r.orchestrators, sessionID)
	}
	r.mu.Unlock()

	if !ok {
		logger.InfoContext(ctx, "destroy of unknown session ignored", "session_id", sessionID)
		return
	}

	orchestrator.Stop(ctx)
	r.manager.Delete(ctx, sessionID)

	logger.InfoContext(ctx, "orchestrator destroyed", "session_id", sessionID)
}

// DestroyAll atomically clears the registry, then stops every orchestrator.
func (r *Registry) DestroyAll(ctx context.Context) {
	r.mu.Lock()
	removed := r.orchestrators
	r.orchestrators = map[string]*Orchestrator{}
	r.mu.Unlock()

	for sessionID, orchestrator := range removed {
		orchestrator.Stop(ctx)
		r.manager.Delete(ctx, sessionID)
	}

	logger.InfoContext(ctx, "all orchestrators destroyed", "count", len(removed))
}
