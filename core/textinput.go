package orchestration

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/voxloop/voxloop-core/core/events"
	"github.com/voxloop/voxloop-core/core/sessions"
)

// textInputHandler is the typed-input counterpart of the audio input
// handler: it validates the text and emits it as a finalized recognition
// result through the same callback.
type textInputHandler struct {
	session  *sessions.Context
	onResult recognitionCallback
}

func newTextInputHandler(session *sessions.Context, onResult recognitionCallback) *textInputHandler {
	return &textInputHandler{session: session, onResult: onResult}
}

// ProcessText trims and forwards typed input. Input that is empty after
// trimming is dropped.
func (h *textInputHandler) ProcessText(ctx context.Context, text string) {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		logger.WarnContext(ctx, "empty text input dropped", "session_id", h.session.SessionID())
		return
	}

	logger.InfoContext(ctx, "processing text input",
		"session_id", h.session.SessionID(), "text", cleaned)

	h.onResult(ctx, events.Text{
		Text:      cleaned,
		MessageID: uuid.NewString(),
		IsFinal:   true,
	})
}
