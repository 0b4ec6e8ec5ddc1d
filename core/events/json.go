package events

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Wire shape mirrors the envelope the transport layer speaks:
// audio payload bytes are base64 encoded, timestamps are float seconds.

type wireEvent struct {
	EventType Kind            `json:"event_type"`
	EventData json.RawMessage `json:"event_data,omitempty"`
	TagID     string          `json:"tag_id,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Timestamp float64         `json:"timestamp"`
	State     State           `json:"state,omitempty"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
}

type wireText struct {
	Text      string         `json:"text"`
	MessageID string         `json:"message_id,omitempty"`
	ChunkID   string         `json:"chunk_id,omitempty"`
	Language  string         `json:"language,omitempty"`
	IsFinal   bool           `json:"is_final"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type wireAudio struct {
	MessageID   string         `json:"message_id,omitempty"`
	Data        string         `json:"data"`
	Format      Format         `json:"format"`
	Channels    int            `json:"channels"`
	SampleRate  int            `json:"sample_rate"`
	SampleWidth int            `json:"sample_width"`
	Duration    float64        `json:"duration,omitempty"`
	IsFinal     bool           `json:"is_final"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func (e StreamEvent) MarshalJSON() ([]byte, error) {
	wire := wireEvent{
		EventType: e.Kind,
		TagID:     e.TagID,
		SessionID: e.SessionID,
		Timestamp: float64(e.Timestamp.UnixNano()) / float64(time.Second),
		State:     e.State,
		Metadata:  e.Metadata,
	}

	switch p := e.Payload.(type) {
	case nil:
	case Text:
		data, err := json.Marshal(wireText{
			Text:      p.Text,
			MessageID: p.MessageID,
			ChunkID:   p.ChunkID,
			Language:  p.Language,
			IsFinal:   p.IsFinal,
			Metadata:  p.Metadata,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal text payload: %w", err)
		}
		wire.EventData = data
	case Audio:
		data, err := json.Marshal(wireAudio{
			MessageID:   p.MessageID,
			Data:        base64.StdEncoding.EncodeToString(p.Data),
			Format:      p.Format,
			Channels:    p.Channels,
			SampleRate:  p.SampleRate,
			SampleWidth: p.SampleWidth,
			Duration:    p.Duration.Seconds(),
			IsFinal:     p.IsFinal,
			Metadata:    p.Metadata,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal audio payload: %w", err)
		}
		wire.EventData = data
	default:
		return nil, fmt.Errorf("unsupported payload type %T", e.Payload)
	}

	return json.Marshal(wire)
}

func (e *StreamEvent) UnmarshalJSON(data []byte) error {
	var wire wireEvent
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("failed to unmarshal stream event: %w", err)
	}

	event := StreamEvent{
		Kind:      wire.EventType,
		TagID:     wire.TagID,
		SessionID: wire.SessionID,
		State:     wire.State,
		Metadata:  wire.Metadata,
	}
	if wire.Timestamp > 0 {
		seconds, fraction := math.Modf(wire.Timestamp)
		event.Timestamp = time.Unix(int64(seconds), int64(fraction*float64(time.Second)))
	}

	if len(wire.EventData) > 0 {
		payload, err := unmarshalPayload(wire.EventType, wire.EventData)
		if err != nil {
			return err
		}
		event.Payload = payload
	}

	if err := validatePayload(event.Kind, event.Payload); err != nil {
		return err
	}

	*e = event
	return nil
}

func unmarshalPayload(kind Kind, data json.RawMessage) (Payload, error) {
	class, ok := payloadClasses[kind]
	if !ok {
		return nil, fmt.Errorf("event kind %q does not carry a payload", kind)
	}

	switch class {
	case payloadText:
		var wire wireText
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, fmt.Errorf("failed to unmarshal text payload: %w", err)
		}
		return Text{
			Text:      wire.Text,
			MessageID: wire.MessageID,
			ChunkID:   wire.ChunkID,
			Language:  wire.Language,
			IsFinal:   wire.IsFinal,
			Metadata:  wire.Metadata,
		}, nil

	case payloadAudio:
		var wire wireAudio
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audio payload: %w", err)
		}
		raw, err := base64.StdEncoding.DecodeString(wire.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode audio payload data: %w", err)
		}
		return Audio{
			MessageID:   wire.MessageID,
			Data:        raw,
			Format:      wire.Format,
			Channels:    wire.Channels,
			SampleRate:  wire.SampleRate,
			SampleWidth: wire.SampleWidth,
			Duration:    time.Duration(wire.Duration * float64(time.Second)),
			IsFinal:     wire.IsFinal,
			Metadata:    wire.Metadata,
		}, nil
	}

	return nil, fmt.Errorf("unknown payload class for event kind %q", kind)
}
