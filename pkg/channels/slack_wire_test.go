package channels

import (
	"testing"
)

const helloFrame = `{
	"type": "hello",
	"num_connections": 1,
	"debug_info": {"host": "applink-1", "build_number": 99},
	"connection_info": {"app_id": "A0XXX"}
}`

const mentionFrame = `{
	"type": "events_api",
	"envelope_id": "env-1",
	"accepts_response_payload": false,
	"retry_attempt": 0,
	"retry_reason": "",
	"payload": {
		"type": "event_callback",
		"event_id": "Ev001",
		"event_time": 1700000000,
		"event": {
			"client_msg_id": "cm-1",
			"type": "app_mention",
			"text": "<@U0BOT> run it",
			"user": "U0USER",
			"ts": "1700000000.000100",
			"team": "T0TEAM",
			"channel": "C0CHAN",
			"event_ts": "1700000000.000100",
			"unknown_future_field": {"keep": true}
		}
	}
}`

// TestDecodeFrame_Hello verifies handshake notices decode with their type
func TestDecodeFrame_Hello(t *testing.T) {
	frame, err := decodeFrame([]byte(helloFrame))
	if err != nil {
		t.Fatalf("decodeFrame failed: %v", err)
	}
	if frame.Type != frameHello {
		t.Errorf("Expected hello type, got %q", frame.Type)
	}
	if frame.NumConnections != 1 {
		t.Errorf("Expected num_connections 1, got %d", frame.NumConnections)
	}
}

// TestDecodeFrame_Envelope verifies an events_api frame carries its
// envelope ID and payload through to the event
func TestDecodeFrame_Envelope(t *testing.T) {
	frame, err := decodeFrame([]byte(mentionFrame))
	if err != nil {
		t.Fatalf("decodeFrame failed: %v", err)
	}
	if frame.Type != frameEventsAPI || frame.EnvelopeID != "env-1" {
		t.Errorf("Unexpected frame: type=%q envelope=%q", frame.Type, frame.EnvelopeID)
	}

	payload, err := frame.eventsPayload()
	if err != nil {
		t.Fatalf("eventsPayload failed: %v", err)
	}
	if payload.EventID != "Ev001" {
		t.Errorf("Expected event_id Ev001, got %q", payload.EventID)
	}

	event, err := decodeChatEvent(payload.Event)
	if err != nil {
		t.Fatalf("decodeChatEvent failed: %v", err)
	}
	if event.kind() != eventMention {
		t.Errorf("Expected mention, got %v", event.kind())
	}
	if event.Text != "<@U0BOT> run it" || event.Channel != "C0CHAN" {
		t.Errorf("Unexpected event fields: %+v", event)
	}
}

// TestDecodeChatEvent_RawPreserved verifies unrecognized event fields
// survive in the raw bytes
func TestDecodeChatEvent_RawPreserved(t *testing.T) {
	frame, _ := decodeFrame([]byte(mentionFrame))
	payload, _ := frame.eventsPayload()

	event, err := decodeChatEvent(payload.Event)
	if err != nil {
		t.Fatalf("decodeChatEvent failed: %v", err)
	}
	if len(event.Raw) == 0 {
		t.Fatal("Raw event bytes should be retained")
	}
	if string(event.Raw) != string(payload.Event) {
		t.Error("Raw should hold the exact event bytes")
	}
}

// TestChatEvent_Kind verifies classification over the closed variant set
func TestChatEvent_Kind(t *testing.T) {
	cases := []struct {
		name  string
		event chatEvent
		want  eventKind
	}{
		{"mention", chatEvent{Type: "app_mention"}, eventMention},
		{"channel message", chatEvent{Type: "message", Ts: "2.0"}, eventChannelMessage},
		{"deleted", chatEvent{Type: "message", Subtype: "message_deleted", Hidden: true}, eventMessageDeleted},
		{"thread reply", chatEvent{Type: "message", Ts: "2.0", ThreadTS: "1.0"}, eventThreadReply},
		{"thread root", chatEvent{Type: "message", Ts: "1.0", ThreadTS: "1.0"}, eventChannelMessage},
		{"bot message", chatEvent{Type: "message", Ts: "2.0", BotID: "B01"}, eventThreadReply},
		{"reaction added", chatEvent{Type: "reaction_added", Reaction: "+1"}, eventReactionUpdated},
		{"reaction removed", chatEvent{Type: "reaction_removed"}, eventReactionUpdated},
		{"channel join", chatEvent{Type: "message", Subtype: "channel_join"}, eventUnknown},
		{"unknown type", chatEvent{Type: "pin_added"}, eventUnknown},
	}

	for _, tc := range cases {
		if got := tc.event.kind(); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

// TestDecodeFrame_Malformed verifies garbage fails decoding rather than panicking
func TestDecodeFrame_Malformed(t *testing.T) {
	if _, err := decodeFrame([]byte("not json at all")); err == nil {
		t.Error("Expected error for non-JSON frame")
	}
	if _, err := decodeFrame([]byte(`{"envelope_id": "env-9"}`)); err == nil {
		t.Error("Expected error for frame without type")
	}
}
