package orchestration

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/voxloop/voxloop-core/core/capabilities"
	"github.com/voxloop/voxloop-core/core/events"
	"github.com/voxloop/voxloop-core/core/sessions"
)

const (
	defaultSilenceTimeout     = time.Second
	defaultMaxBufferDuration  = 5 * time.Second
	defaultMinSegmentDuration = 300 * time.Millisecond
	monitorInterval           = 200 * time.Millisecond

	// 16 kHz, mono, 16-bit PCM.
	bytesPerSecond = 32000
	maxBufferBytes = 10 * 1024 * 1024
)

// specialTokens matches recognizer control tokens such as <|endoftext|>
// that must not leak into the transcript.
var specialTokens = regexp.MustCompile(`<\|.*?\|>`)

// recognitionCallback receives finalized (or partial) input text from the
// audio and text input collaborators.
type recognitionCallback func(ctx context.Context, result events.Text)

// audioInputHandler accumulates voice-gated audio for one session and
// decides when a buffered segment is ready for recognition: on a client
// end-of-speech signal, after a silence timeout, or when the buffer exceeds
// the maximum segment duration. Recognized segment texts accumulate until a
// finalizing trigger joins them into a single result.
type audioInputHandler struct {
	session  *sessions.Context
	onResult recognitionCallback

	silenceTimeout     time.Duration
	maxBufferDuration  time.Duration
	minSegmentDuration time.Duration

	mu           sync.Mutex
	buffer       []byte
	lastSpeechAt time.Time
	segments     []string
	processing   bool
	running      bool

	speechEnd chan struct{}
	cancel    context.CancelFunc
	done      chan struct{}
}

type audioInputOption func(*audioInputHandler)

func withSilenceTimeout(d time.Duration) audioInputOption {
	return func(h *audioInputHandler) { h.silenceTimeout = d }
}

func withMaxBufferDuration(d time.Duration) audioInputOption {
	return func(h *audioInputHandler) { h.maxBufferDuration = d }
}

func withMinSegmentDuration(d time.Duration) audioInputOption {
	return func(h *audioInputHandler) { h.minSegmentDuration = d }
}

func newAudioInputHandler(session *sessions.Context, onResult recognitionCallback, opts ...audioInputOption) *audioInputHandler {
	h := &audioInputHandler{
		session:  session,
		onResult: onResult,

		silenceTimeout:     defaultSilenceTimeout,
		maxBufferDuration:  defaultMaxBufferDuration,
		minSegmentDuration: defaultMinSegmentDuration,

		speechEnd: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start launches the monitor loop. Starting an already running handler is a
// no-op.
func (h *audioInputHandler) Start(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return
	}
	h.running = true

	monitorCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h.cancel = cancel
	h.done = make(chan struct{})
	go h.monitor(monitorCtx)

	logger.InfoContext(ctx, "audio input started", "session_id", h.session.SessionID())
}

// Stop cancels the monitor loop and waits for it to exit. Safe to call on a
// handler that was never started, and safe to call repeatedly.
func (h *audioInputHandler) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	cancel, done := h.cancel, h.done
	h.mu.Unlock()

	cancel()
	<-done
}

// ProcessChunk runs voice-activity detection on the chunk and buffers it if
// it carries speech. Without a detection capability every chunk is treated
// as speech.
func (h *audioInputHandler) ProcessChunk(ctx context.Context, chunk []byte) {
	if len(chunk) == 0 {
		return
	}

	if raw, ok := h.session.Capability(capabilities.NameDetection); ok {
		detector, ok := raw.(capabilities.Detector)
		if ok {
			voice, err := detector.Detect(ctx, chunk)
			if err != nil {
				logger.ErrorContext(ctx, "voice activity detection failed",
					"session_id", h.session.SessionID(), "error", err)
				return
			}
			if !voice {
				return
			}
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.buffer)+len(chunk) > maxBufferBytes {
		logger.WarnContext(ctx, "audio buffer overflow, clearing",
			"session_id", h.session.SessionID(), "size", len(h.buffer))
		h.buffer = nil
	}
	h.buffer = append(h.buffer, chunk...)
	h.lastSpeechAt = time.Now()
}

// SignalSpeechEnd records the client's declaration that the utterance is
// complete. The monitor loop picks it up on its next pass.
func (h *audioInputHandler) SignalSpeechEnd() {
	select {
	case h.speechEnd <- struct{}{}:
	default:
	}
}

func (h *audioInputHandler) monitor(ctx context.Context) {
	defer close(h.done)

	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "audio input monitor stopped", "session_id", h.session.SessionID())
			return
		case <-ticker.C:
			h.checkAndProcess(ctx, false)
		case <-h.speechEnd:
			h.checkAndProcess(ctx, true)
		}
	}
}

// checkAndProcess decides whether the buffered audio should be sent to
// recognition and whether the trigger finalizes the utterance.
func (h *audioInputHandler) checkAndProcess(ctx context.Context, clientEnded bool) {
	h.mu.Lock()
	if h.processing || len(h.buffer) == 0 {
		h.mu.Unlock()
		return
	}

	bufferDuration := time.Duration(len(h.buffer)) * time.Second / bytesPerSecond

	var final bool
	var reason string
	switch {
	case clientEnded:
		final, reason = true, "client_signal"
	case !h.lastSpeechAt.IsZero() &&
		time.Since(h.lastSpeechAt) >= h.silenceTimeout &&
		bufferDuration >= h.minSegmentDuration:
		final, reason = true, "silence_timeout"
	case bufferDuration >= h.maxBufferDuration:
		final, reason = false, "max_buffer"
	default:
		h.mu.Unlock()
		return
	}

	audio := h.buffer
	h.buffer = nil
	h.lastSpeechAt = time.Time{}
	h.processing = true
	h.mu.Unlock()

	logger.InfoContext(ctx, "processing audio segment",
		"session_id", h.session.SessionID(), "reason", reason, "final", final,
		"bytes", len(audio))

	h.processSegment(ctx, audio, final)

	h.mu.Lock()
	h.processing = false
	h.mu.Unlock()
}

func (h *audioInputHandler) processSegment(ctx context.Context, audio []byte, final bool) {
	raw, ok := h.session.Capability(capabilities.NameRecognition)
	recognizer, _ := raw.(capabilities.Recognizer)
	if !ok || recognizer == nil {
		logger.ErrorContext(ctx, "recognition capability missing", "session_id", h.session.SessionID())
		if final {
			h.sendFinalResult(ctx)
		}
		return
	}

	result, err := recognizer.Recognize(ctx, events.NewAudio(audio))
	if err != nil {
		logger.ErrorContext(ctx, "recognition failed",
			"session_id", h.session.SessionID(), "error", err)
		if final {
			h.sendFinalResult(ctx)
		}
		return
	}

	if cleaned := cleanTranscript(result.Text); cleaned != "" {
		logger.InfoContext(ctx, "recognized segment",
			"session_id", h.session.SessionID(), "text", cleaned)
		h.mu.Lock()
		h.segments = append(h.segments, cleaned)
		h.mu.Unlock()
	}

	if final {
		h.sendFinalResult(ctx)
	}
}

// sendFinalResult joins the accumulated segment texts into one finalized
// utterance and hands it to the result callback. The joined text may be
// empty; the orchestrator decides what an empty recognition means.
func (h *audioInputHandler) sendFinalResult(ctx context.Context) {
	h.mu.Lock()
	finalText := strings.TrimSpace(strings.Join(h.segments, " "))
	h.segments = nil
	h.mu.Unlock()

	logger.InfoContext(ctx, "final transcript",
		"session_id", h.session.SessionID(), "text", finalText)

	h.onResult(ctx, events.Text{
		Text:      finalText,
		MessageID: uuid.NewString(),
		IsFinal:   true,
	})
}

func cleanTranscript(text string) string {
	if text == "" {
		return ""
	}
	return strings.TrimSpace(specialTokens.ReplaceAllString(text, ""))
}
