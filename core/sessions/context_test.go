package sessions

import (
	"testing"
	"time"

	"github.com/voxloop/voxloop-core/core/capabilities"
)

type namedCapability struct{ name string }

func TestCapabilityPrefersSessionOverride(t *testing.T) {
	provider := func(name string) (any, bool) {
		if name == capabilities.NameGeneration {
			return &namedCapability{name: "global"}, true
		}
		return nil, false
	}

	session := NewContext("s1", "u1",
		WithProvider(provider),
		WithCapability(capabilities.NameGeneration, &namedCapability{name: "session"}),
	)

	got, ok := session.Capability(capabilities.NameGeneration)
	if !ok {
		t.Fatalf("expected capability to resolve")
	}
	if got.(*namedCapability).name != "session" {
		t.Fatalf("expected session override to win, got %q", got.(*namedCapability).name)
	}
}

func TestCapabilityFallsBackToProvider(t *testing.T) {
	provider := func(name string) (any, bool) {
		if name == capabilities.NameSynthesis {
			return &namedCapability{name: "global"}, true
		}
		return nil, false
	}

	session := NewContext("s1", "u1", WithProvider(provider))

	got, ok := session.Capability(capabilities.NameSynthesis)
	if !ok {
		t.Fatalf("expected fallback resolution to succeed")
	}
	if got.(*namedCapability).name != "global" {
		t.Fatalf("expected process-wide capability, got %q", got.(*namedCapability).name)
	}

	if _, ok := session.Capability(capabilities.NameRecognition); ok {
		t.Fatalf("expected unknown capability to be absent")
	}
}

func TestCapabilityAbsentWithoutProvider(t *testing.T) {
	session := NewContext("s1", "u1", WithProvider(nil))
	if _, ok := session.Capability(capabilities.NameGeneration); ok {
		t.Fatalf("expected resolution to fail with no provider and no override")
	}
}

func TestDialoguesReturnsSnapshot(t *testing.T) {
	session := NewContext("s1", "u1")
	session.AppendDialogue(Dialogue{Role: "user", Content: "hello"})
	session.AppendDialogue(Dialogue{Role: "assistant", Content: "hi there"})

	dialogues := session.Dialogues()
	if len(dialogues) != 2 {
		t.Fatalf("expected 2 dialogue entries, got %d", len(dialogues))
	}
	if dialogues[0].Content != "hello" || dialogues[1].Content != "hi there" {
		t.Fatalf("expected history in append order, got %+v", dialogues)
	}
	if dialogues[0].Timestamp.IsZero() {
		t.Fatalf("expected append to fill in a timestamp")
	}

	// Mutating the snapshot must not leak back into the session.
	dialogues[0].Content = "mutated"
	if session.Dialogues()[0].Content != "hello" {
		t.Fatalf("expected session history to be isolated from snapshots")
	}
}

func TestConfigDeepCopy(t *testing.T) {
	session := NewContext("s1", "u1", WithConfig(map[string]any{
		"generation": map[string]any{"model": "gpt-4o-mini"},
	}))

	config := session.Config()
	nested := config["generation"].(map[string]any)
	nested["model"] = "mutated"

	fresh := session.Config()
	if fresh["generation"].(map[string]any)["model"] != "gpt-4o-mini" {
		t.Fatalf("expected config copies to be isolated, got %+v", fresh)
	}

	value, ok := session.ConfigValue("generation")
	if !ok || value == nil {
		t.Fatalf("expected config value lookup to succeed")
	}
}

func TestAppendDialogueKeepsExplicitTimestamp(t *testing.T) {
	session := NewContext("s1", "u1")
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	session.AppendDialogue(Dialogue{Role: "user", Content: "hi", Timestamp: at})

	if got := session.Dialogues()[0].Timestamp; !got.Equal(at) {
		t.Fatalf("expected explicit timestamp to be kept, got %s", got)
	}
}
