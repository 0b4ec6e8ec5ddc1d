// Package events defines the stream event envelope exchanged between the
// orchestration core and the transport layer, along with its text and audio
// payload types.
package events

import (
	"fmt"
	"time"
)

// Kind identifies the type of a stream event.
type Kind string

const (
	// Client-originated events.
	KindClientTextInput    Kind = "CLIENT_TEXT_INPUT"
	KindClientSessionStart Kind = "SYSTEM_CLIENT_SESSION_START"
	KindClientSpeechEnd    Kind = "CLIENT_SPEECH_END"
	KindStreamEnd          Kind = "STREAM_END"

	// Server-originated events.
	KindTextResponse       Kind = "SERVER_TEXT_RESPONSE"
	KindAudioResponse      Kind = "SERVER_AUDIO_RESPONSE"
	KindSystemMessage      Kind = "SERVER_SYSTEM_MESSAGE"
	KindServerSessionStart Kind = "SYSTEM_SERVER_SESSION_START"

	// Recognition events.
	KindRecognitionUpdate Kind = "ASR_UPDATE"
	KindRecognitionResult Kind = "asr_result"

	// Generation events.
	KindGenerationStart    Kind = "llm_start"
	KindGenerationResponse Kind = "llm_response"

	KindError Kind = "error"
)

// State describes where in the turn lifecycle a stream currently is.
type State string

const (
	StateListening  State = "listening"
	StateProcessing State = "processing"
	StateSpeaking   State = "speaking"
	StateIdle       State = "idle"
)

// Payload is implemented by the concrete payload types carried inside a
// stream event.
type Payload interface {
	isPayload()
}

type payloadClass int

const (
	payloadText payloadClass = iota
	payloadAudio
)

// payloadClasses fixes which payload type each kind carries. Kinds absent
// from the table carry no payload.
var payloadClasses = map[Kind]payloadClass{
	KindClientTextInput:    payloadText,
	KindTextResponse:       payloadText,
	KindRecognitionUpdate:  payloadText,
	KindRecognitionResult:  payloadText,
	KindGenerationResponse: payloadText,
	KindError:              payloadText,
	KindAudioResponse:      payloadAudio,
}

// StreamEvent is the envelope passed between pipeline stages and handed to
// the transport send callback.
type StreamEvent struct {
	Kind      Kind
	Payload   Payload
	SessionID string
	TagID     string
	Timestamp time.Time
	State     State
	Metadata  map[string]any
}

// Option customizes a stream event at construction.
type Option func(*StreamEvent)

func WithSessionID(sessionID string) Option {
	return func(e *StreamEvent) { e.SessionID = sessionID }
}

func WithTagID(tagID string) Option {
	return func(e *StreamEvent) { e.TagID = tagID }
}

func WithState(state State) Option {
	return func(e *StreamEvent) { e.State = state }
}

func WithMetadata(metadata map[string]any) Option {
	return func(e *StreamEvent) { e.Metadata = metadata }
}

// New constructs a stream event, rejecting payloads whose concrete type does
// not match the type dictated by the kind. Malformed envelopes are refused
// here rather than surfacing later in the pipeline.
func New(kind Kind, payload Payload, opts ...Option) (StreamEvent, error) {
	if err := validatePayload(kind, payload); err != nil {
		return StreamEvent{}, err
	}

	event := StreamEvent{
		Kind:      kind,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(&event)
	}
	return event, nil
}

func validatePayload(kind Kind, payload Payload) error {
	// A missing payload is allowed for every kind: some events are
	// envelope-only markers.
	if payload == nil {
		return nil
	}

	class, wantsPayload := payloadClasses[kind]
	if !wantsPayload {
		return fmt.Errorf("event kind %q does not carry a payload", kind)
	}

	switch p := payload.(type) {
	case Text:
		if class != payloadText {
			return fmt.Errorf("event kind %q requires an audio payload, got text", kind)
		}
		if p.Text == "" && !p.IsFinal {
			return fmt.Errorf("empty text payload is only valid as a final end-of-stream marker")
		}
	case Audio:
		if class != payloadAudio {
			return fmt.Errorf("event kind %q requires a text payload, got audio", kind)
		}
	default:
		return fmt.Errorf("unsupported payload type %T", payload)
	}

	return nil
}

// Text returns the event's text payload, if it carries one.
func (e StreamEvent) Text() (Text, bool) {
	text, ok := e.Payload.(Text)
	return text, ok
}

// Audio returns the event's audio payload, if it carries one.
func (e StreamEvent) Audio() (Audio, bool) {
	audio, ok := e.Payload.(Audio)
	return audio, ok
}
