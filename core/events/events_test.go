package events

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestNewRejectsMismatchedPayload(t *testing.T) {
	if _, err := New(KindTextResponse, NewAudio([]byte{1, 2})); err == nil {
		t.Fatalf("expected audio payload on a text kind to be rejected")
	}

	if _, err := New(KindAudioResponse, NewFinalText("hi")); err == nil {
		t.Fatalf("expected text payload on an audio kind to be rejected")
	}

	if _, err := New(KindClientSpeechEnd, NewFinalText("hi")); err == nil {
		t.Fatalf("expected payload on a payload-less kind to be rejected")
	}
}

func TestNewRejectsEmptyNonFinalText(t *testing.T) {
	if _, err := New(KindTextResponse, NewText("")); err == nil {
		t.Fatalf("expected empty non-final text to be rejected")
	}

	if _, err := New(KindTextResponse, NewFinalText("")); err != nil {
		t.Fatalf("expected empty final text marker to be accepted, got %v", err)
	}
}

func TestNewAllowsEnvelopeOnlyEvents(t *testing.T) {
	event, err := New(KindClientSpeechEnd, nil, WithSessionID("s1"))
	if err != nil {
		t.Fatalf("expected envelope-only event to be accepted, got %v", err)
	}
	if event.SessionID != "s1" {
		t.Fatalf("expected session id s1, got %q", event.SessionID)
	}
	if event.Timestamp.IsZero() {
		t.Fatalf("expected a construction timestamp")
	}
}

func TestTextEventJSONRoundTrip(t *testing.T) {
	event, err := New(KindTextResponse, Text{Text: "你好，世界", Language: "zh", IsFinal: true},
		WithSessionID("s1"), WithTagID("u1"), WithState(StateSpeaking))
	if err != nil {
		t.Fatalf("failed to construct event: %v", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}

	var decoded StreamEvent
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal event: %v", err)
	}

	text, ok := decoded.Text()
	if !ok {
		t.Fatalf("expected a text payload after round trip")
	}
	if text.Text != "你好，世界" || !text.IsFinal || text.Language != "zh" {
		t.Fatalf("unexpected text payload after round trip: %+v", text)
	}
	if decoded.SessionID != "s1" || decoded.TagID != "u1" || decoded.State != StateSpeaking {
		t.Fatalf("unexpected envelope after round trip: %+v", decoded)
	}
	if drift := decoded.Timestamp.Sub(event.Timestamp); drift > time.Millisecond || drift < -time.Millisecond {
		t.Fatalf("expected timestamp to survive round trip, got %s vs %s", decoded.Timestamp, event.Timestamp)
	}
}

func TestAudioEventJSONRoundTrip(t *testing.T) {
	audio := NewAudio([]byte{0x00, 0x01, 0xfe, 0xff})
	audio.Duration = 250 * time.Millisecond
	event, err := New(KindAudioResponse, audio, WithSessionID("s1"))
	if err != nil {
		t.Fatalf("failed to construct event: %v", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}

	var decoded StreamEvent
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal event: %v", err)
	}

	got, ok := decoded.Audio()
	if !ok {
		t.Fatalf("expected an audio payload after round trip")
	}
	if !bytes.Equal(got.Data, audio.Data) {
		t.Fatalf("expected audio bytes %v, got %v", audio.Data, got.Data)
	}
	if got.Format != FormatPCM || got.SampleRate != 16000 || got.Channels != 1 {
		t.Fatalf("unexpected audio encoding after round trip: %+v", got)
	}
	if got.Duration != 250*time.Millisecond {
		t.Fatalf("expected duration 250ms, got %s", got.Duration)
	}
}

func TestUnmarshalRejectsMalformedEnvelope(t *testing.T) {
	payload := `{"event_type":"SERVER_TEXT_RESPONSE","event_data":{"text":"","is_final":false}}`
	var decoded StreamEvent
	if err := json.Unmarshal([]byte(payload), &decoded); err == nil {
		t.Fatalf("expected malformed envelope to be rejected at decode time")
	}
}
