package orchestration

import (
	"context"
	"sync"

	"github.com/voxloop/voxloop-core/core/capabilities"
	"github.com/voxloop/voxloop-core/core/events"
)

// fakeDetector reports speech whenever the chunk's first byte is non-zero.
type fakeDetector struct{}

func (fakeDetector) Detect(ctx context.Context, chunk []byte) (bool, error) {
	return len(chunk) > 0 && chunk[0] != 0, nil
}

// fakeRecognizer returns queued transcripts in order and records the
// segments it was handed.
type fakeRecognizer struct {
	mu          sync.Mutex
	transcripts []string
	segments    [][]byte
}

func (r *fakeRecognizer) Recognize(ctx context.Context, audio events.Audio) (events.Text, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.segments = append(r.segments, audio.Data)
	text := ""
	if len(r.transcripts) > 0 {
		text = r.transcripts[0]
		r.transcripts = r.transcripts[1:]
	}
	return events.NewFinalText(text), nil
}

func (r *fakeRecognizer) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.segments)
}

type fakeGenerationStream struct {
	chunks []events.Text
	err    error
	// onChunk runs before each chunk is yielded; tests use it to flag an
	// interruption mid-stream.
	onChunk func(i int)
}

func (s *fakeGenerationStream) Chunks(ctx context.Context) func(func(events.Text, error) bool) {
	return func(yield func(events.Text, error) bool) {
		for i, chunk := range s.chunks {
			if s.onChunk != nil {
				s.onChunk(i)
			}
			if !yield(chunk, nil) {
				return
			}
		}
		if s.err != nil {
			yield(events.Text{}, s.err)
		}
	}
}

type fakeGenerator struct {
	mu     sync.Mutex
	inputs []string

	chunks  []events.Text
	err     error
	onChunk func(i int)
}

func (g *fakeGenerator) Generate(ctx context.Context, input events.Text, sessionID string) (capabilities.GenerationStream, error) {
	g.mu.Lock()
	g.inputs = append(g.inputs, input.Text)
	g.mu.Unlock()

	if g.err != nil {
		return nil, g.err
	}
	return &fakeGenerationStream{chunks: g.chunks, onChunk: g.onChunk}, nil
}

func (g *fakeGenerator) lastInput() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.inputs) == 0 {
		return ""
	}
	return g.inputs[len(g.inputs)-1]
}

func textChunks(parts ...string) []events.Text {
	chunks := make([]events.Text, 0, len(parts))
	for _, part := range parts {
		chunks = append(chunks, events.NewText(part))
	}
	return chunks
}

type fakeSynthesisStream struct {
	chunks []events.Audio
	// block keeps the stream open after the first chunk until the context
	// is cancelled.
	block bool
}

func (s *fakeSynthesisStream) Chunks(ctx context.Context) func(func(events.Audio, error) bool) {
	return func(yield func(events.Audio, error) bool) {
		for i, chunk := range s.chunks {
			if !yield(chunk, nil) {
				return
			}
			if s.block && i == 0 {
				<-ctx.Done()
				return
			}
		}
	}
}

type fakeSynthesizer struct {
	mu        sync.Mutex
	sentences []string
	block     bool
}

func (s *fakeSynthesizer) Synthesize(ctx context.Context, input events.Text) (capabilities.SynthesisStream, error) {
	s.mu.Lock()
	s.sentences = append(s.sentences, input.Text)
	s.mu.Unlock()

	return &fakeSynthesisStream{
		chunks: []events.Audio{events.NewAudio([]byte(input.Text))},
		block:  s.block,
	}, nil
}

// eventCollector is a SendCallback capturing delivered events.
type eventCollector struct {
	mu     sync.Mutex
	events []events.StreamEvent
}

func (c *eventCollector) send(ctx context.Context, event events.StreamEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = append(c.events, event)
	return nil
}

func (c *eventCollector) snapshot() []events.StreamEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := make([]events.StreamEvent, len(c.events))
	copy(snapshot, c.events)
	return snapshot
}

func (c *eventCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.events)
}

// resultCapture collects recognition results from input handlers.
type resultCapture struct {
	mu      sync.Mutex
	results []events.Text
}

func (c *resultCapture) callback(ctx context.Context, result events.Text) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.results = append(c.results, result)
}

func (c *resultCapture) snapshot() []events.Text {
	c.mu.Lock()
	defer c.mu.Unlock()

	results := make([]events.Text, len(c.results))
	copy(results, c.results)
	return results
}

func (c *resultCapture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.results)
}
