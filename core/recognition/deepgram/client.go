// Package deepgram implements the recognition capability over the Deepgram
// live transcription websocket. Each buffered audio segment is transcribed
// in a one-shot request: the segment is streamed up, the stream is closed,
// and the finalized transcripts are joined into a single result.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/voxloop/voxloop-core/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultModel    = "nova-3"
	defaultLanguage = "en-US"

	// Deepgram expects live audio in bounded frames.
	uploadChunkBytes = 8192
)

// Recognizer transcribes finalized audio segments.
type Recognizer struct {
	model    string
	language string
}

// Option customizes a recognizer at construction.
type Option func(*Recognizer)

// WithModel overrides the transcription model.
func WithModel(model string) Option {
	return func(r *Recognizer) { r.model = model }
}

// WithLanguage overrides the transcription language.
func WithLanguage(language string) Option {
	return func(r *Recognizer) { r.language = language }
}

func NewRecognizer(opts ...Option) *Recognizer {
	r := &Recognizer{model: defaultModel, language: defaultLanguage}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recognize uploads the segment and returns the joined finalized transcript.
// An empty transcript is a valid result, not an error.
func (r *Recognizer) Recognize(ctx context.Context, audio events.Audio) (events.Text, error) {
	ctx, span := tracer.Start(ctx, "deepgram.transcribe",
		trace.WithAttributes(attribute.Int("audio.bytes", len(audio.Data))))
	defer span.End()

	conn, err := r.connect(ctx, audio.SampleRate)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "connect failed")
		return events.Text{}, err
	}
	defer conn.Close()

	// Unblock the blocking reads below if the caller gives up.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watchDone:
		}
	}()

	if err := r.upload(conn, audio.Data); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		return events.Text{}, err
	}

	transcript, err := r.collectTranscript(ctx, conn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return events.Text{}, err
	}

	logger.InfoContext(ctx, "segment transcribed", "bytes", len(audio.Data), "text", transcript)
	return events.NewFinalText(transcript), nil
}

func (r *Recognizer) connect(ctx context.Context, sampleRate int) (*websocket.Conn, error) {
	apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
	if !ok {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	if sampleRate == 0 {
		sampleRate = 16000
	}

	listenURL, _ := url.Parse("wss://api.deepgram.com/v1/listen")
	queryParams := listenURL.Query()
	queryParams.Set("encoding", "linear16")
	queryParams.Set("sample_rate", strconv.Itoa(sampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", r.model)
	queryParams.Set("language", r.language)
	queryParams.Set("smart_format", "true")
	listenURL.RawQuery = queryParams.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, listenURL.String(),
		http.Header{"Authorization": {"Token " + apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}
	return conn, nil
}

func (r *Recognizer) upload(conn *websocket.Conn, data []byte) error {
	for offset := 0; offset < len(data); offset += uploadChunkBytes {
		end := min(offset+uploadChunkBytes, len(data))
		if err := conn.WriteMessage(websocket.BinaryMessage, data[offset:end]); err != nil {
			return fmt.Errorf("failed to write to deepgram client: %w", err)
		}
	}

	if err := conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		return fmt.Errorf("failed to close deepgram stream: %w", err)
	}
	return nil
}

// collectTranscript accumulates finalized message responses until the
// server closes the stream.
func (r *Recognizer) collectTranscript(ctx context.Context, conn *websocket.Conn) (string, error) {
	var parts []string
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return strings.TrimSpace(strings.Join(parts, " ")), nil
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", fmt.Errorf("failed to read deepgram websocket message: %w", err)
		}
		if msgType == websocket.BinaryMessage {
			continue
		}

		var parsedMsg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &parsedMsg); err != nil {
			logger.WarnContext(ctx, "failed to unmarshal deepgram message", "error", err)
			continue
		}

		switch api.TypeResponse(parsedMsg.Type) {
		case api.TypeMessageResponse:
			var msgResp api.MessageResponse
			if err := json.Unmarshal(msg, &msgResp); err != nil {
				logger.WarnContext(ctx, "failed to unmarshal deepgram message", "error", err)
				continue
			}
			if !msgResp.IsFinal || len(msgResp.Channel.Alternatives) == 0 {
				continue
			}
			if transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript); transcript != "" {
				parts = append(parts, transcript)
			}
		case api.TypeCloseStreamResponse:
			return strings.TrimSpace(strings.Join(parts, " ")), nil
		}
	}
}
