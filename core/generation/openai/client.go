// Package openai implements the generation capability on top of the OpenAI
// chat completions streaming API.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/ssestream"
	"github.com/voxloop/voxloop-core/core/capabilities"
	"github.com/voxloop/voxloop-core/core/events"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultModel = openai.ChatModelGPT4oMini

// Generator streams chat completions, keeping a per-session message history
// so consecutive turns of the same session share context.
type Generator struct {
	client openai.Client
	model  openai.ChatModel
	prompt string

	mu        sync.Mutex
	histories map[string][]openai.ChatCompletionMessageParamUnion
}

// Option customizes a generator at construction.
type Option func(*Generator)

// WithModel overrides the completion model.
func WithModel(model openai.ChatModel) Option {
	return func(g *Generator) { g.model = model }
}

// WithSystemPrompt prepends a system message to every completion request.
func WithSystemPrompt(prompt string) Option {
	return func(g *Generator) { g.prompt = prompt }
}

// NewGenerator builds a generator using the OPENAI_API_KEY environment
// variable for authentication.
func NewGenerator(opts ...Option) (*Generator, error) {
	apiKey, ok := os.LookupEnv("OPENAI_API_KEY")
	if !ok {
		return nil, fmt.Errorf("openai api key not found")
	}

	g := &Generator{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithHTTPClient(&http.Client{
				Transport: otelhttp.NewTransport(http.DefaultTransport),
			}),
		),
		model:     defaultModel,
		histories: map[string][]openai.ChatCompletionMessageParamUnion{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate starts a streamed completion for the utterance. The user message
// is committed to the session history immediately; the assistant response is
// committed once the stream is exhausted.
func (g *Generator) Generate(ctx context.Context, input events.Text, sessionID string) (capabilities.GenerationStream, error) {
	if input.Text == "" {
		return nil, fmt.Errorf("empty generation input")
	}

	g.mu.Lock()
	history := g.histories[sessionID]

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	if g.prompt != "" {
		messages = append(messages, openai.SystemMessage(g.prompt))
	}
	messages = append(messages, history...)
	messages = append(messages, openai.UserMessage(input.Text))

	g.histories[sessionID] = append(history, openai.UserMessage(input.Text))
	g.mu.Unlock()

	stream := g.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:    g.model,
		Messages: messages,
	})

	return &generationStream{
		generator: g,
		sessionID: sessionID,
		stream:    stream,
	}, nil
}

// ClearHistory drops the stored message history for a session.
func (g *Generator) ClearHistory(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.histories, sessionID)
}

type generationStream struct {
	generator *Generator
	sessionID string
	stream    *ssestream.Stream[openai.ChatCompletionChunk]
}

func (s *generationStream) Chunks(ctx context.Context) func(func(events.Text, error) bool) {
	return func(yield func(events.Text, error) bool) {
		ctx, span := tracer.Start(ctx, "openai.completion",
			trace.WithAttributes(attribute.String("session.id", s.sessionID)))
		defer span.End()
		defer s.stream.Close()

		var response strings.Builder
		for s.stream.Next() {
			if ctx.Err() != nil {
				return
			}

			chunk := s.stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}

			response.WriteString(delta)
			if !yield(events.NewText(delta), nil) {
				return
			}
		}

		if err := s.stream.Err(); err != nil {
			logger.ErrorContext(ctx, "completion stream failed",
				"session_id", s.sessionID, "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "completion stream failed")
			yield(events.Text{}, fmt.Errorf("completion stream: %w", err))
			return
		}

		s.generator.commitResponse(s.sessionID, response.String())
	}
}

func (g *Generator) commitResponse(sessionID, response string) {
	if response == "" {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.histories[sessionID] = append(g.histories[sessionID], openai.AssistantMessage(response))
}
