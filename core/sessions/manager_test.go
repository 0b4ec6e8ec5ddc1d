package sessions

import (
	"context"
	"sync"
	"testing"
)

func TestManagerCreateAndGet(t *testing.T) {
	manager := NewManager()
	ctx := context.Background()

	created := manager.Create(ctx, NewContext("s1", "u1"))
	if created.SessionID() != "s1" {
		t.Fatalf("expected created session s1, got %q", created.SessionID())
	}

	got, ok := manager.Get(ctx, "s1")
	if !ok {
		t.Fatalf("expected registered session to be found")
	}
	if got != created {
		t.Fatalf("expected the same context instance back")
	}
}

func TestManagerCreateIsIdempotent(t *testing.T) {
	manager := NewManager()
	ctx := context.Background()

	first := manager.Create(ctx, NewContext("s1", "u1"))
	second := manager.Create(ctx, NewContext("s1", "u1"))

	if first != second {
		t.Fatalf("expected repeated create to return the existing context")
	}
	if manager.Len() != 1 {
		t.Fatalf("expected a single registered session, got %d", manager.Len())
	}
}

func TestManagerCreateConcurrent(t *testing.T) {
	manager := NewManager()
	ctx := context.Background()

	const callers = 16
	results := make([]*Context, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = manager.Create(ctx, NewContext("s1", "u1"))
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if results[i] != results[0] {
			t.Fatalf("expected every caller to get the same context instance")
		}
	}
	if manager.Len() != 1 {
		t.Fatalf("expected a single registered session, got %d", manager.Len())
	}
}

func TestManagerGetNonexistent(t *testing.T) {
	manager := NewManager()
	if _, ok := manager.Get(context.Background(), "nonexistent"); ok {
		t.Fatalf("expected lookup of an absent session to fail")
	}
}

func TestManagerDelete(t *testing.T) {
	manager := NewManager()
	ctx := context.Background()

	manager.Create(ctx, NewContext("s1", "u1"))
	manager.Delete(ctx, "s1")

	if _, ok := manager.Get(ctx, "s1"); ok {
		t.Fatalf("expected deleted session to be gone")
	}

	// Deleting an absent session must not panic.
	manager.Delete(ctx, "nonexistent")
}

func TestManagerCustomStorage(t *testing.T) {
	storage := NewMemoryStorage(WithCapacity(1))
	manager := NewManager(WithStorage(storage))
	ctx := context.Background()

	manager.Create(ctx, NewContext("s1", "u1"))
	manager.Create(ctx, NewContext("s2", "u2"))

	if _, ok := manager.Get(ctx, "s1"); ok {
		t.Fatalf("expected s1 to be evicted by the bounded backend")
	}
	if _, ok := manager.Get(ctx, "s2"); !ok {
		t.Fatalf("expected s2 to be present")
	}
}
