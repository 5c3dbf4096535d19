package bus

import "context"

// MessageBus decouples the connection read loop from command execution
// and reply delivery. Inbound flows dispatcher -> runner, outbound flows
// runner -> channel sender.
type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage
}

func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:  make(chan InboundMessage, 64),
		outbound: make(chan OutboundMessage, 64),
	}
}

func (b *MessageBus) PublishInbound(msg InboundMessage) {
	b.inbound <- msg
}

// PublishOutbound enqueues a reply for the sender goroutine. It returns
// false without enqueueing when ctx is cancelled, so producers that
// outlive the sender (draining workers at shutdown) never block on a
// full buffer.
func (b *MessageBus) PublishOutbound(ctx context.Context, msg OutboundMessage) bool {
	select {
	case <-ctx.Done():
		return false
	case b.outbound <- msg:
		return true
	}
}

// ConsumeInbound blocks until a message arrives or ctx is cancelled.
// The second return value is false on cancellation.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case <-ctx.Done():
		return InboundMessage{}, false
	case msg := <-b.inbound:
		return msg, true
	}
}

func (b *MessageBus) ConsumeOutbound(ctx context.Context) (OutboundMessage, bool) {
	select {
	case <-ctx.Done():
		return OutboundMessage{}, false
	case msg := <-b.outbound:
		return msg, true
	}
}
