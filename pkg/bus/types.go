package bus

// InboundMessage is a chat message that survived dispatcher-level
// filtering and is waiting to be parsed and executed.
type InboundMessage struct {
	Channel       string            `json:"channel"`
	SenderID      string            `json:"sender_id"`
	ChatID        string            `json:"chat_id"`
	Content       string            `json:"content"`
	ThreadTS      string            `json:"thread_ts,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
}

// OutboundMessage is a reply headed back to the chat platform.
type OutboundMessage struct {
	Channel  string `json:"channel"`
	ChatID   string `json:"chat_id"`
	Content  string `json:"content"`
	ThreadTS string `json:"thread_ts,omitempty"`
}
