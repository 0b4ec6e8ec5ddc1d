// Package orchestration coordinates live conversational turns: it consumes
// audio and text input for a session, tracks barge-in interruption, drives
// recognition, generation, and synthesis capabilities, and streams partial
// results back to the transport layer through a send callback.
package orchestration

import (
	"context"
	"strings"
	"sync"

	"github.com/voxloop/voxloop-core/core/capabilities"
	"github.com/voxloop/voxloop-core/core/events"
	"github.com/voxloop/voxloop-core/core/sessions"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SendCallback delivers a stream event to the transport layer. It is
// supplied by the caller and must be safe for concurrent use: sentence
// tasks run in parallel and each sends through it.
type SendCallback func(ctx context.Context, event events.StreamEvent) error

// Orchestrator runs the turn state machine for one session. Input handling
// calls must be invoked serially by the caller; turn processing triggered by
// finalized input is serialized internally. Stop is safe to call while input
// handlers are still running.
type Orchestrator struct {
	session *sessions.Context
	send    SendCallback

	interrupts interruptTracker
	splitter   *sentenceSplitter
	tasks      *taskGroup

	// turnMu serializes turn processing from finalized input onward.
	turnMu sync.Mutex

	// stateMu guards the input collaborators and the turn context; Stop may
	// run concurrently with the input handlers.
	stateMu      sync.Mutex
	audioIn      *audioInputHandler
	textIn       *textInputHandler
	lastUserText string

	baseCtx    context.Context
	cancelBase context.CancelFunc

	startOnce sync.Once
	stopOnce  sync.Once
}

// OrchestratorOption customizes an orchestrator at construction.
type OrchestratorOption func(*Orchestrator)

// WithBaseContext sets the context background tasks are derived from.
// Cancelling it cancels every in-flight sentence task.
func WithBaseContext(ctx context.Context) OrchestratorOption {
	return func(o *Orchestrator) { o.baseCtx = ctx }
}

func NewOrchestrator(session *sessions.Context, send SendCallback, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		session:  session,
		send:     send,
		splitter: newSentenceSplitter(),
		tasks:    newTaskGroup(),
		baseCtx:  context.Background(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.baseCtx, o.cancelBase = context.WithCancel(o.baseCtx)
	return o
}

// SessionID returns the id of the session this orchestrator serves.
func (o *Orchestrator) SessionID() string { return o.session.SessionID() }

// Session returns the session context owned by this orchestrator.
func (o *Orchestrator) Session() *sessions.Context { return o.session }

// Start creates the input collaborators and launches the audio monitor.
// Subsequent calls are no-ops.
func (o *Orchestrator) Start(ctx context.Context) {
	o.startOnce.Do(func() {
		audioIn := newAudioInputHandler(o.session, o.handleRecognition)
		audioIn.Start(ctx)

		o.stateMu.Lock()
		o.audioIn = audioIn
		o.textIn = newTextInputHandler(o.session, o.handleRecognition)
		o.stateMu.Unlock()

		logger.InfoContext(ctx, "orchestrator started", "session_id", o.SessionID())
	})
}

// Stop cancels every tracked background task, waits for them to finish,
// releases the input collaborators, and clears the turn context. Safe to
// call with nothing in flight; subsequent calls are no-ops. The orchestrator
// must not be reused afterward.
func (o *Orchestrator) Stop(ctx context.Context) {
	o.stopOnce.Do(func() {
		o.cancelBase()
		o.tasks.Stop()

		o.stateMu.Lock()
		audioIn := o.audioIn
		o.audioIn = nil
		o.textIn = nil
		o.lastUserText = ""
		o.stateMu.Unlock()

		if audioIn != nil {
			audioIn.Stop()
		}

		logger.InfoContext(ctx, "orchestrator stopped", "session_id", o.SessionID())
	})
}

// HandleAudio treats incoming audio as a potential barge-in signal and
// forwards it to the audio input collaborator.
func (o *Orchestrator) HandleAudio(ctx context.Context, chunk []byte) {
	if !o.interrupts.IsInterrupted() {
		o.interrupts.Set()
	}

	o.stateMu.Lock()
	audioIn := o.audioIn
	o.stateMu.Unlock()

	if audioIn != nil {
		audioIn.ProcessChunk(ctx, chunk)
	}
}

// HandleSpeechEnd forwards the client's end-of-speech declaration.
func (o *Orchestrator) HandleSpeechEnd(ctx context.Context) {
	o.stateMu.Lock()
	audioIn := o.audioIn
	o.stateMu.Unlock()

	if audioIn != nil {
		audioIn.SignalSpeechEnd()
	}
}

// HandleTextInput forwards typed input. Typed input never barges in, so the
// interrupt flag is left untouched.
func (o *Orchestrator) HandleTextInput(ctx context.Context, text string) {
	o.stateMu.Lock()
	textIn := o.textIn
	o.stateMu.Unlock()

	if textIn != nil {
		textIn.ProcessText(ctx, text)
	}
}

// handleRecognition receives finalized input results from the audio and
// text collaborators and advances the turn.
func (o *Orchestrator) handleRecognition(ctx context.Context, result events.Text) {
	if !result.IsFinal {
		return
	}

	// An empty recognition is not reliable evidence that the user finished
	// speaking; the turn does not advance and no flags are reset, so the
	// interruption history stays sticky until a non-empty result arrives.
	if result.Text == "" {
		logger.InfoContext(ctx, "empty input result, turn not advanced", "session_id", o.SessionID())
		return
	}

	o.turnMu.Lock()
	defer o.turnMu.Unlock()

	userText := result.Text
	if o.interrupts.WasInterrupted() {
		o.stateMu.Lock()
		userText = strings.TrimSpace(o.lastUserText + " " + result.Text)
		o.stateMu.Unlock()
		logger.InfoContext(ctx, "joined interrupted utterance",
			"session_id", o.SessionID(), "text", userText)
	}

	o.stateMu.Lock()
	o.lastUserText = userText
	o.stateMu.Unlock()

	// Clear both flags so the fresh turn starts uninterrupted.
	o.interrupts.ResetHistory()
	o.interrupts.Reset()

	o.runTurn(ctx, userText)
}

// runTurn resolves the generation and synthesis capabilities and streams a
// response. Capabilities are re-fetched every turn since they may be
// session-custom and replaced between turns.
func (o *Orchestrator) runTurn(ctx context.Context, userText string) {
	ctx, span := tracer.Start(ctx, "orchestration.turn",
		trace.WithAttributes(attribute.String("session.id", o.SessionID())))
	defer span.End()

	raw, _ := o.session.Capability(capabilities.NameGeneration)
	generator, ok := raw.(capabilities.Generator)
	if !ok {
		// No user-visible event on purpose: emitting a partial or garbled
		// response is worse than emitting nothing.
		logger.ErrorContext(ctx, "generation capability missing, turn dropped",
			"session_id", o.SessionID())
		span.SetStatus(codes.Error, "generation capability missing")
		return
	}

	rawSynth, _ := o.session.Capability(capabilities.NameSynthesis)
	synthesizer, ok := rawSynth.(capabilities.Synthesizer)
	if !ok {
		logger.InfoContext(ctx, "synthesis capability missing, text-only mode",
			"session_id", o.SessionID())
		synthesizer = nil
	}

	o.session.AppendDialogue(sessions.Dialogue{Role: "user", Content: userText})

	input := events.NewFinalText(userText)
	if synthesizer != nil {
		o.streamWithSynthesis(ctx, span, input, generator, synthesizer)
	} else {
		o.streamTextOnly(ctx, span, input, generator)
	}
}

// streamWithSynthesis consumes the generation stream, splits it into
// sentences, and dispatches each sentence as an independent background task
// that emits the text event followed by its synthesized audio chunks.
func (o *Orchestrator) streamWithSynthesis(
	ctx context.Context,
	span trace.Span,
	input events.Text,
	generator capabilities.Generator,
	synthesizer capabilities.Synthesizer,
) {
	o.splitter.Reset()

	stream, err := generator.Generate(ctx, input, o.SessionID())
	if err != nil {
		logger.ErrorContext(ctx, "generation failed",
			"session_id", o.SessionID(), "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return
	}

	var response strings.Builder
	interrupted := false
	for chunk, err := range stream.Chunks(ctx) {
		if err != nil {
			logger.ErrorContext(ctx, "generation stream failed",
				"session_id", o.SessionID(), "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "generation stream failed")
			return
		}

		// Stop consuming immediately on interruption; the stream is not
		// drained and no final marker is emitted.
		if o.interrupts.IsInterrupted() {
			logger.InfoContext(ctx, "turn interrupted", "session_id", o.SessionID())
			interrupted = true
			break
		}

		o.splitter.Append(chunk.Text)
		response.WriteString(chunk.Text)

		for {
			sentence, ok := o.splitter.Next()
			if !ok {
				break
			}
			o.dispatchSentence(sentence, synthesizer, false)
		}
	}

	remaining := o.splitter.Drain()
	if remaining != "" && !o.interrupts.IsInterrupted() {
		o.dispatchSentence(remaining, synthesizer, true)
	}

	if !interrupted {
		o.session.AppendDialogue(sessions.Dialogue{Role: "assistant", Content: response.String()})
	}
}

// streamTextOnly consumes the generation stream without synthesis: each
// delta is emitted directly as a non-final text response, and an empty final
// marker closes the turn unless it was interrupted.
func (o *Orchestrator) streamTextOnly(
	ctx context.Context,
	span trace.Span,
	input events.Text,
	generator capabilities.Generator,
) {
	stream, err := generator.Generate(ctx, input, o.SessionID())
	if err != nil {
		logger.ErrorContext(ctx, "generation failed",
			"session_id", o.SessionID(), "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return
	}

	var response strings.Builder
	for chunk, err := range stream.Chunks(ctx) {
		if err != nil {
			logger.ErrorContext(ctx, "generation stream failed",
				"session_id", o.SessionID(), "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "generation stream failed")
			return
		}

		if o.interrupts.IsInterrupted() {
			logger.InfoContext(ctx, "turn interrupted", "session_id", o.SessionID())
			break
		}

		if chunk.Text == "" {
			continue
		}
		response.WriteString(chunk.Text)
		o.emit(ctx, events.KindTextResponse, events.NewText(chunk.Text))
	}

	if o.interrupts.IsInterrupted() {
		return
	}

	o.emit(ctx, events.KindTextResponse, events.NewFinalText(""))
	o.session.AppendDialogue(sessions.Dialogue{Role: "assistant", Content: response.String()})
}

// dispatchSentence runs one sentence as a tracked background task: the text
// response event is always emitted before that sentence's audio events, and
// the interrupt flag is checked before every emission. Delivery order
// across different sentences is not guaranteed.
func (o *Orchestrator) dispatchSentence(sentence string, synthesizer capabilities.Synthesizer, final bool) {
	o.tasks.Go(o.baseCtx, func(ctx context.Context) {
		if o.interrupts.IsInterrupted() {
			return
		}

		o.emit(ctx, events.KindTextResponse, events.Text{Text: sentence, IsFinal: final})

		stream, err := synthesizer.Synthesize(ctx, events.NewText(sentence))
		if err != nil {
			// The text event already went out; losing audio degrades the
			// sentence rather than aborting the turn.
			logger.ErrorContext(ctx, "synthesis failed",
				"session_id", o.SessionID(), "error", err)
			return
		}

		for chunk, err := range stream.Chunks(ctx) {
			if err != nil {
				logger.ErrorContext(ctx, "synthesis stream failed",
					"session_id", o.SessionID(), "error", err)
				return
			}
			if o.interrupts.IsInterrupted() {
				return
			}
			if len(chunk.Data) == 0 {
				continue
			}
			o.emit(ctx, events.KindAudioResponse, chunk)
		}
	})
}

func (o *Orchestrator) emit(ctx context.Context, kind events.Kind, payload events.Payload) {
	event, err := events.New(kind, payload,
		events.WithSessionID(o.SessionID()),
		events.WithTagID(o.session.TagID()),
		events.WithState(events.StateSpeaking),
	)
	if err != nil {
		logger.ErrorContext(ctx, "event construction failed",
			"session_id", o.SessionID(), "kind", string(kind), "error", err)
		return
	}

	if err := o.send(ctx, event); err != nil {
		logger.ErrorContext(ctx, "event delivery failed",
			"session_id", o.SessionID(), "kind", string(kind), "error", err)
	}
}
