package orchestration

import "sync"

// interruptTracker records barge-in state for one session. The live flag
// marks the in-flight turn as interrupted; the sticky flag survives a Reset
// so the next finalized utterance can be joined with the interrupted one.
//
// Invariant: a set live flag implies a set sticky flag.
type interruptTracker struct {
	mu             sync.Mutex
	isInterrupted  bool
	wasInterrupted bool
}

// Set marks the turn interrupted. Idempotent; always raises both flags.
func (t *interruptTracker) Set() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.isInterrupted = true
	t.wasInterrupted = true
}

// Reset clears the live flag only, leaving interruption history intact.
func (t *interruptTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.isInterrupted = false
}

// ResetHistory clears the sticky flag only.
func (t *interruptTracker) ResetHistory() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.wasInterrupted = false
}

func (t *interruptTracker) IsInterrupted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.isInterrupted
}

func (t *interruptTracker) WasInterrupted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.wasInterrupted
}
