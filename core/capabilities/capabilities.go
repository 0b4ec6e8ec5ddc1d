// Package capabilities defines the abstract operations the orchestration
// core depends on (recognition, generation, synthesis, voice-activity
// detection) and the process-wide table they are resolved from. Concrete
// implementations live in the adapter packages.
package capabilities

import (
	"context"

	"github.com/voxloop/voxloop-core/core/events"
)

// Well-known capability names. A deployment resolves capabilities by name,
// per session first, then process-wide.
const (
	NameDetection   = "vad"
	NameRecognition = "asr"
	NameGeneration  = "llm"
	NameSynthesis   = "tts"
)

// Provider resolves a capability by name, reporting absence with false.
type Provider func(name string) (any, bool)

// Detector decides whether an audio chunk contains speech.
type Detector interface {
	Detect(ctx context.Context, chunk []byte) (bool, error)
}

// Recognizer transcribes a finalized audio segment.
type Recognizer interface {
	Recognize(ctx context.Context, audio events.Audio) (events.Text, error)
}

// Generator produces a streamed text response for a user utterance.
type Generator interface {
	Generate(ctx context.Context, input events.Text, sessionID string) (GenerationStream, error)
}

// GenerationStream yields incremental text fragments until the response is
// exhausted. The iterator stops early when the yield function returns false
// or the context is cancelled.
type GenerationStream interface {
	Chunks(ctx context.Context) func(func(events.Text, error) bool)
}

// Synthesizer converts a sentence of text into a stream of audio fragments.
type Synthesizer interface {
	Synthesize(ctx context.Context, input events.Text) (SynthesisStream, error)
}

// SynthesisStream yields audio fragments until synthesis of the requested
// text is complete.
type SynthesisStream interface {
	Chunks(ctx context.Context) func(func(events.Audio, error) bool)
}
