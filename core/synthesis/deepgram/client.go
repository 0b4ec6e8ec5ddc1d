// Package deepgram implements the synthesis capability over the Deepgram
// speak websocket. Every sentence opens a one-shot stream: the text is
// spoken, flushed, and the produced audio chunks are yielded until the
// server confirms the flush.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/voxloop/voxloop-core/core/capabilities"
	"github.com/voxloop/voxloop-core/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultVoice      = "aura-2-thalia-en"
	defaultSampleRate = 16000
)

type websocketMessage struct {
	Type string `json:"type"`
}

var (
	flushMsg = websocketMessage{Type: "Flush"}
	closeMsg = websocketMessage{Type: "Close"}
)

// Synthesizer converts sentences into streamed PCM audio.
type Synthesizer struct {
	voice      string
	sampleRate int
}

// Option customizes a synthesizer at construction.
type Option func(*Synthesizer)

// WithVoice overrides the synthesis voice model.
func WithVoice(voice string) Option {
	return func(s *Synthesizer) { s.voice = voice }
}

// WithSampleRate overrides the output sample rate.
func WithSampleRate(sampleRate int) Option {
	return func(s *Synthesizer) { s.sampleRate = sampleRate }
}

func NewSynthesizer(opts ...Option) *Synthesizer {
	s := &Synthesizer{voice: defaultVoice, sampleRate: defaultSampleRate}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize opens a speak stream for the sentence and sends the text. The
// audio arrives through the returned stream's chunks.
func (s *Synthesizer) Synthesize(ctx context.Context, input events.Text) (capabilities.SynthesisStream, error) {
	if input.Text == "" {
		return nil, fmt.Errorf("empty synthesis input")
	}

	conn, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	if err := conn.WriteJSON(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{Type: "Speak", Text: input.Text}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send text to deepgram through websocket: %w", err)
	}
	if err := conn.WriteJSON(flushMsg); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to flush deepgram buffer through websocket: %w", err)
	}

	return &synthesisStream{
		conn:       conn,
		text:       input.Text,
		sampleRate: s.sampleRate,
	}, nil
}

func (s *Synthesizer) connect(ctx context.Context) (*websocket.Conn, error) {
	apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
	if !ok {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	urlValues := url.Values{}
	urlValues.Set("encoding", "linear16")
	urlValues.Set("sample_rate", strconv.Itoa(s.sampleRate))
	urlValues.Set("model", s.voice)
	urlValues.Set("container", "none")

	conn, _, err := websocket.DefaultDialer.DialContext(ctx,
		(&url.URL{
			Scheme: "wss",
			Host:   "api.deepgram.com", Path: "/v1/speak",
			RawQuery: urlValues.Encode(),
		}).String(),
		http.Header{"Authorization": {"token " + apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}
	return conn, nil
}

type synthesisStream struct {
	conn       *websocket.Conn
	text       string
	sampleRate int
}

// Chunks yields the synthesized audio for the requested sentence. The
// stream ends when the server confirms the flush; cancelling the context
// tears the connection down.
func (st *synthesisStream) Chunks(ctx context.Context) func(func(events.Audio, error) bool) {
	return func(yield func(events.Audio, error) bool) {
		ctx, span := tracer.Start(ctx, "deepgram.speak",
			trace.WithAttributes(attribute.Int("text.length", len(st.text))))
		defer span.End()
		defer st.conn.Close()

		watchDone := make(chan struct{})
		defer close(watchDone)
		go func() {
			select {
			case <-ctx.Done():
				st.conn.Close()
			case <-watchDone:
			}
		}()

		for {
			msgType, msg, err := st.conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) || ctx.Err() != nil {
					return
				}
				span.RecordError(err)
				span.SetStatus(codes.Error, "read failed")
				yield(events.Audio{}, fmt.Errorf("failed to read deepgram websocket message: %w", err))
				return
			}

			switch msgType {
			case websocket.BinaryMessage:
				if len(msg) == 0 {
					continue
				}
				chunk := events.NewAudio(msg)
				chunk.SampleRate = st.sampleRate
				if !yield(chunk, nil) {
					return
				}
			case websocket.TextMessage:
				var parsedMsg websocketMessage
				if err := json.Unmarshal(msg, &parsedMsg); err != nil {
					logger.WarnContext(ctx, "failed to unmarshal deepgram message", "error", err)
					continue
				}
				if parsedMsg.Type == "Flushed" {
					if err := st.conn.WriteJSON(closeMsg); err != nil {
						logger.WarnContext(ctx, "failed to close deepgram stream", "error", err)
					}
					return
				}
			}
		}
	}
}
