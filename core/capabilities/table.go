package capabilities

import (
	"slices"
	"sync"
)

// Table is a named set of capabilities. The zero value is not usable; use
// NewTable.
type Table struct {
	mu      sync.RWMutex
	entries map[string]any
}

func NewTable() *Table {
	return &Table{entries: map[string]any{}}
}

// Set registers a capability under the given name, replacing any previous
// registration.
func (t *Table) Set(name string, capability any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries[name] = capability
}

// Get returns the capability registered under name, if any.
func (t *Table) Get(name string) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	capability, ok := t.entries[name]
	return capability, ok
}

// Delete removes the capability registered under name. Removing an absent
// name is a no-op.
func (t *Table) Delete(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.entries, name)
}

// Clear removes every registration.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = map[string]any{}
}

// Names returns the registered capability names in sorted order.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Provider returns a resolver backed by this table.
func (t *Table) Provider() Provider {
	return t.Get
}

// defaultTable is the process-wide capability table. It is explicit state
// with an explicit contract: populated once at startup via SetDefault and
// torn down via ClearDefault, never mutated from arbitrary code paths.
var defaultTable = NewTable()

// SetDefault registers a capability in the process-wide table.
func SetDefault(name string, capability any) {
	defaultTable.Set(name, capability)
}

// Default returns a capability from the process-wide table.
func Default(name string) (any, bool) {
	return defaultTable.Get(name)
}

// DeleteDefault removes a capability from the process-wide table.
func DeleteDefault(name string) {
	defaultTable.Delete(name)
}

// ClearDefault empties the process-wide table.
func ClearDefault() {
	defaultTable.Clear()
}

// DefaultProvider resolves against the process-wide table.
func DefaultProvider() Provider {
	return defaultTable.Get
}
