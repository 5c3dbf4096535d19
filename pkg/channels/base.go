package channels

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/pocketops/chatexec/pkg/bus"
	"github.com/pocketops/chatexec/pkg/logger"
)

// Channel is the common surface every chat channel implements.
type Channel interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
	Name() string
	IsRunning() bool
}

// BaseChannel carries the plumbing shared by channel implementations:
// bus publishing, the sender allowlist and the running flag.
type BaseChannel struct {
	name      string
	bus       *bus.MessageBus
	allowFrom []string
	running   atomic.Bool
}

func NewBaseChannel(name string, messageBus *bus.MessageBus, allowFrom []string) *BaseChannel {
	return &BaseChannel{
		name:      name,
		bus:       messageBus,
		allowFrom: allowFrom,
	}
}

func (c *BaseChannel) Name() string {
	return c.name
}

func (c *BaseChannel) IsRunning() bool {
	return c.running.Load()
}

func (c *BaseChannel) setRunning(v bool) {
	c.running.Store(v)
}

// IsAllowed reports whether a sender may trigger execution. An empty
// allowlist allows everyone.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowFrom) == 0 {
		return true
	}
	for _, allowed := range c.allowFrom {
		if allowed == senderID {
			return true
		}
	}
	return false
}

// HandleMessage publishes an accepted chat message onto the bus with a
// fresh correlation ID for request tracing.
func (c *BaseChannel) HandleMessage(senderID, chatID, content, threadTS string, metadata map[string]string) {
	msg := bus.InboundMessage{
		Channel:       c.name,
		SenderID:      senderID,
		ChatID:        chatID,
		Content:       content,
		ThreadTS:      threadTS,
		Metadata:      metadata,
		CorrelationID: uuid.NewString(),
	}

	logger.DebugCF(c.name, "Forwarding message to bus", map[string]interface{}{
		"sender":         senderID,
		"chat_id":        chatID,
		"correlation_id": msg.CorrelationID,
	})

	c.bus.PublishInbound(msg)
}
