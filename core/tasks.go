package orchestration

import (
	"context"
	"sync"
)

// taskGroup tracks in-flight background tasks so they are never silently
// discarded. Each task removes itself from the set on completion; Stop
// cancels whatever is still running and waits for it to finish.
type taskGroup struct {
	mu    sync.Mutex
	next  int
	tasks map[int]*task
}

type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func newTaskGroup() *taskGroup {
	return &taskGroup{tasks: map[int]*task{}}
}

// Go runs fn on its own goroutine under a context derived from ctx, tracked
// until fn returns.
func (g *taskGroup) Go(ctx context.Context, fn func(ctx context.Context)) {
	taskCtx, cancel := context.WithCancel(ctx)
	t := &task{cancel: cancel, done: make(chan struct{})}

	g.mu.Lock()
	id := g.next
	g.next++
	g.tasks[id] = t
	g.mu.Unlock()

	go func() {
		defer func() {
			cancel()

			g.mu.Lock()
			delete(g.tasks, id)
			g.mu.Unlock()

			close(t.done)
		}()

		fn(taskCtx)
	}()
}

// Len reports the number of tasks still in flight.
func (g *taskGroup) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.tasks)
}

// Stop cancels every tracked task and waits for all of them to finish. Safe
// to call with zero tasks in flight, and safe to call more than once.
func (g *taskGroup) Stop() {
	g.mu.Lock()
	pending := make([]*task, 0, len(g.tasks))
	for _, t := range g.tasks {
		pending = append(pending, t)
	}
	g.mu.Unlock()

	for _, t := range pending {
		t.cancel()
	}
	for _, t := range pending {
		<-t.done
	}
}
