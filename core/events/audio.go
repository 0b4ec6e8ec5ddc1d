package events

import "time"

// Format names the container/encoding of an audio fragment.
type Format string

const (
	FormatPCM  Format = "pcm"
	FormatWAV  Format = "wav"
	FormatMP3  Format = "mp3"
	FormatOgg  Format = "ogg"
	FormatFLAC Format = "flac"
	FormatOpus Format = "opus"
)

// Audio is a fragment of audio produced by synthesis or received from the
// client. It is an immutable value: construct a new fragment instead of
// mutating one that is already in flight.
type Audio struct {
	MessageID string
	Data      []byte
	Format    Format
	// Channels is the channel count; speech pipelines are mono.
	Channels int
	// SampleRate in Hz.
	SampleRate int
	// SampleWidth in bytes per sample (2 = 16 bit).
	SampleWidth int
	// Duration of the fragment, zero when unknown.
	Duration  time.Duration
	IsFinal   bool
	Timestamp time.Time
	Metadata  map[string]any
}

func (Audio) isPayload() {}

// NewAudio returns a PCM audio fragment with speech-pipeline defaults
// (mono, 16 kHz, 16 bit).
func NewAudio(data []byte) Audio {
	return Audio{
		Data:        data,
		Format:      FormatPCM,
		Channels:    1,
		SampleRate:  16000,
		SampleWidth: 2,
		Timestamp:   time.Now(),
	}
}
