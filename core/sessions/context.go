// Package sessions holds per-session conversation state: the session
// context (identity, dialogue history, config, capability overrides), a
// bounded least-recently-used store, and the manager that fronts it.
package sessions

import (
	"sync"
	"time"

	"github.com/jinzhu/copier"
	"github.com/voxloop/voxloop-core/core/capabilities"
)

// Dialogue is one entry of a session's conversation history.
type Dialogue struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// Context carries the state of one logical conversation. It is created once
// per session and owned by that session's orchestrator; only the owning
// orchestrator appends to the dialogue history.
type Context struct {
	sessionID string
	tagID     string

	mu        sync.RWMutex
	dialogues []Dialogue
	config    map[string]any
	custom    map[string]any
	provider  capabilities.Provider
}

// ContextOption customizes a session context at construction.
type ContextOption func(*Context)

// WithConfig sets the session configuration map.
func WithConfig(config map[string]any) ContextOption {
	return func(c *Context) { c.config = config }
}

// WithProvider sets the fallback capability resolver, normally the
// process-wide table.
func WithProvider(provider capabilities.Provider) ContextOption {
	return func(c *Context) { c.provider = provider }
}

// WithCapability registers a session-scoped capability override.
func WithCapability(name string, capability any) ContextOption {
	return func(c *Context) { c.custom[name] = capability }
}

func NewContext(sessionID, tagID string, opts ...ContextOption) *Context {
	c := &Context{
		sessionID: sessionID,
		tagID:     tagID,
		config:    map[string]any{},
		custom:    map[string]any{},
		provider:  capabilities.DefaultProvider(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Context) SessionID() string { return c.sessionID }
func (c *Context) TagID() string     { return c.tagID }

// Capability resolves a capability by name: session overrides first, then
// the fallback provider. Absence is reported with false.
func (c *Context) Capability(name string) (any, bool) {
	c.mu.RLock()
	capability, ok := c.custom[name]
	provider := c.provider
	c.mu.RUnlock()

	if ok {
		return capability, true
	}
	if provider != nil {
		return provider(name)
	}
	return nil, false
}

// SetCapability installs or replaces a session-scoped capability override.
func (c *Context) SetCapability(name string, capability any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.custom[name] = capability
}

// AppendDialogue records a history entry. A zero timestamp is filled in.
func (c *Context) AppendDialogue(dialogue Dialogue) {
	if dialogue.Timestamp.IsZero() {
		dialogue.Timestamp = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.dialogues = append(c.dialogues, dialogue)
}

// Dialogues returns a copy of the dialogue history in append order.
func (c *Context) Dialogues() []Dialogue {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dialogues := make([]Dialogue, len(c.dialogues))
	copy(dialogues, c.dialogues)
	return dialogues
}

// Config returns a deep copy of the session configuration so callers cannot
// mutate shared state through nested maps.
func (c *Context) Config() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	config := map[string]any{}
	if err := copier.CopyWithOption(&config, c.config, copier.Option{DeepCopy: true}); err != nil {
		logger.Warn("config snapshot failed, returning partial copy",
			"session_id", c.sessionID, "error", err)
	}
	return config
}

// ConfigValue looks up a single configuration key.
func (c *Context) ConfigValue(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, ok := c.config[key]
	return value, ok
}
