package events

// Text is an incremental or final fragment of text moving through the
// pipeline: recognized speech, typed input, or a generated response chunk.
type Text struct {
	Text      string
	MessageID string
	ChunkID   string
	// Language is a BCP-47-ish code such as "en" or "zh-CN".
	Language string
	IsFinal  bool
	Metadata map[string]any
}

func (Text) isPayload() {}

// NewText returns a non-final text fragment.
func NewText(text string) Text {
	return Text{Text: text}
}

// NewFinalText returns a finalized text fragment. An empty final fragment
// doubles as the end-of-stream marker.
func NewFinalText(text string) Text {
	return Text{Text: text, IsFinal: true}
}
