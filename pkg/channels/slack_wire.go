package channels

import (
	"encoding/json"
	"fmt"
)

// Slack socket-mode wire shapes. Field names mirror the JSON Slack
// sends; decoding tolerates extra fields, and the raw event bytes are
// retained so open-ended fields survive without loss.

const (
	frameHello      = "hello"
	frameEventsAPI  = "events_api"
	frameDisconnect = "disconnect"
)

// socketFrame is one message off the socket-mode websocket: either a
// handshake notice ("hello"), an enveloped event ("events_api") or a
// server-initiated disconnect warning.
type socketFrame struct {
	Type                   string          `json:"type"`
	EnvelopeID             string          `json:"envelope_id,omitempty"`
	Payload                json.RawMessage `json:"payload,omitempty"`
	AcceptsResponsePayload bool            `json:"accepts_response_payload,omitempty"`
	RetryAttempt           int             `json:"retry_attempt,omitempty"`
	RetryReason            string          `json:"retry_reason,omitempty"`

	// hello
	NumConnections int               `json:"num_connections,omitempty"`
	ConnectionInfo map[string]string `json:"connection_info,omitempty"`

	// disconnect
	Reason string `json:"reason,omitempty"`
}

// ackFrame confirms receipt of one envelope. Sent as a single text
// frame back over the same transport.
type ackFrame struct {
	EnvelopeID string `json:"envelope_id"`
}

// eventsPayload is the body of an events_api envelope.
type eventsPayload struct {
	Type      string          `json:"type"`
	EventID   string          `json:"event_id"`
	EventTime int64           `json:"event_time"`
	Event     json.RawMessage `json:"event"`
}

type reactionItem struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	Ts      string `json:"ts"`
}

// chatEvent is the union of the event shapes this bot reacts to. The
// superset of fields across app_mention, message and reaction_* events
// lives in one struct; classification happens in kind(). Raw holds the
// undecoded event so nothing is dropped if the event is forwarded.
type chatEvent struct {
	Type         string        `json:"type"`
	Subtype      string        `json:"subtype,omitempty"`
	ClientMsgID  string        `json:"client_msg_id,omitempty"`
	Text         string        `json:"text,omitempty"`
	User         string        `json:"user,omitempty"`
	BotID        string        `json:"bot_id,omitempty"`
	Team         string        `json:"team,omitempty"`
	Ts           string        `json:"ts,omitempty"`
	ThreadTS     string        `json:"thread_ts,omitempty"`
	ParentUserID string        `json:"parent_user_id,omitempty"`
	Channel      string        `json:"channel,omitempty"`
	ChannelType  string        `json:"channel_type,omitempty"`
	EventTS      string        `json:"event_ts,omitempty"`
	Hidden       bool          `json:"hidden,omitempty"`
	DeletedTS    string        `json:"deleted_ts,omitempty"`
	Reaction     string        `json:"reaction,omitempty"`
	Item         *reactionItem `json:"item,omitempty"`
	ItemUser     string        `json:"item_user,omitempty"`

	Raw json.RawMessage `json:"-"`
}

type eventKind int

const (
	eventUnknown eventKind = iota
	eventMention
	eventChannelMessage
	eventMessageDeleted
	eventReactionUpdated
	eventThreadReply
)

func (k eventKind) String() string {
	switch k {
	case eventMention:
		return "mention"
	case eventChannelMessage:
		return "channel_message"
	case eventMessageDeleted:
		return "message_deleted"
	case eventReactionUpdated:
		return "reaction_updated"
	case eventThreadReply:
		return "thread_reply"
	default:
		return "unknown"
	}
}

func decodeFrame(data []byte) (*socketFrame, error) {
	var frame socketFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("undecodable frame: %w", err)
	}
	if frame.Type == "" {
		return nil, fmt.Errorf("frame has no type field")
	}
	return &frame, nil
}

func (f *socketFrame) eventsPayload() (*eventsPayload, error) {
	if len(f.Payload) == 0 {
		return nil, fmt.Errorf("events_api frame has no payload")
	}
	var payload eventsPayload
	if err := json.Unmarshal(f.Payload, &payload); err != nil {
		return nil, fmt.Errorf("undecodable events payload: %w", err)
	}
	return &payload, nil
}

func decodeChatEvent(data []byte) (*chatEvent, error) {
	var event chatEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("undecodable event: %w", err)
	}
	event.Raw = data
	return &event, nil
}

// kind classifies a decoded event into the closed set of variants the
// dispatcher handles. Anything not in the set maps to eventUnknown and
// is acked without action, never treated as fatal.
func (e *chatEvent) kind() eventKind {
	switch e.Type {
	case "app_mention":
		return eventMention
	case "message":
		switch {
		case e.Subtype == "message_deleted":
			return eventMessageDeleted
		// Bot-authored and in-thread messages are ack-only so the
		// bot's own replies never re-trigger execution.
		case e.BotID != "" || e.Subtype == "bot_message":
			return eventThreadReply
		case e.ThreadTS != "" && e.ThreadTS != e.Ts:
			return eventThreadReply
		case e.Subtype == "":
			return eventChannelMessage
		default:
			return eventUnknown
		}
	case "reaction_added", "reaction_removed":
		return eventReactionUpdated
	default:
		return eventUnknown
	}
}
