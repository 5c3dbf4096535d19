package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/slack-go/slack"
	"github.com/tidwall/gjson"

	"github.com/pocketops/chatexec/pkg/bus"
	"github.com/pocketops/chatexec/pkg/config"
	"github.com/pocketops/chatexec/pkg/logger"
)

// ConnectionProvider obtains a fresh streaming endpoint for one
// socket-mode connection.
type ConnectionProvider interface {
	Open(ctx context.Context) (string, error)
}

// ChatPoster posts a text reply into a channel, optionally in a thread.
type ChatPoster interface {
	Post(ctx context.Context, channel, text, threadTS string) error
}

// wsConn is the slice of *websocket.Conn the dispatcher uses; tests
// substitute a fake.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// SlackAPI backs both collaborators with the Slack Web API.
type SlackAPI struct {
	client *slack.Client
}

func NewSlackAPI(botToken, appToken string) *SlackAPI {
	return &SlackAPI{
		client: slack.New(botToken, slack.OptionAppLevelToken(appToken)),
	}
}

// Open calls apps.connections.open and returns the wss:// URL to dial.
func (a *SlackAPI) Open(ctx context.Context) (string, error) {
	_, url, err := a.client.StartSocketModeContext(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to open socket mode connection: %w", err)
	}
	return url, nil
}

func (a *SlackAPI) Post(ctx context.Context, channel, text, threadTS string) error {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	_, _, err := a.client.PostMessageContext(ctx, channel, opts...)
	return err
}

var mentionPattern = regexp.MustCompile(`<@[A-Z0-9]+>`)

// SlackChannel owns one socket-mode connection: it dials the endpoint
// from the ConnectionProvider, classifies incoming frames, acks every
// envelope exactly once and forwards executable messages onto the bus.
// All transport writes happen from the read loop goroutine, so there is
// a single writer per connection.
type SlackChannel struct {
	*BaseChannel
	config   config.SlackConfig
	provider ConnectionProvider
	poster   ChatPoster
	dial     func(ctx context.Context, url string) (wsConn, *http.Response, error)
	conn     wsConn
	cancel   context.CancelFunc
}

func NewSlackChannel(cfg config.SlackConfig, messageBus *bus.MessageBus) (*SlackChannel, error) {
	api := NewSlackAPI(cfg.BotToken, cfg.AppToken)

	return &SlackChannel{
		BaseChannel: NewBaseChannel("slack", messageBus, cfg.AllowFrom),
		config:      cfg,
		provider:    api,
		poster:      api,
		dial: func(ctx context.Context, url string) (wsConn, *http.Response, error) {
			return websocket.DefaultDialer.DialContext(ctx, url, nil)
		},
	}, nil
}

func (c *SlackChannel) Start(ctx context.Context) error {
	if c.config.AppToken == "" || c.config.BotToken == "" {
		return fmt.Errorf("slack app_token and bot_token not configured")
	}

	logger.InfoC("slack", "Starting Slack connection (socket mode)")

	url, err := c.provider.Open(ctx)
	if err != nil {
		return err
	}

	conn, resp, err := c.dial(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to dial socket mode endpoint: %w", err)
	}
	c.conn = conn

	if resp != nil {
		logger.InfoCF("slack", "Connected to socket mode endpoint", map[string]interface{}{
			"status": resp.StatusCode,
		})
		for header := range resp.Header {
			logger.DebugC("slack", "Handshake header: "+header)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.setRunning(true)

	go c.readLoop(runCtx)

	return nil
}

func (c *SlackChannel) Stop(ctx context.Context) error {
	logger.InfoC("slack", "Stopping Slack connection")
	c.setRunning(false)

	if c.cancel != nil {
		c.cancel()
	}
	if c.conn != nil {
		c.conn.Close()
	}

	return nil
}

// Send posts a reply through the Web API; it never touches the
// websocket, so replies and acks cannot interleave on the transport.
func (c *SlackChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if err := c.poster.Post(ctx, msg.ChatID, msg.Content, msg.ThreadTS); err != nil {
		logger.ErrorCF("slack", "Failed to post message", map[string]interface{}{
			"chat_id": msg.ChatID,
			"error":   err.Error(),
		})
		return err
	}
	return nil
}

// readLoop reads frames one at a time until the transport fails or the
// context is cancelled. One malformed frame never terminates the loop;
// a hard read error does, and the channel stays down until the process
// is restarted by external supervision.
func (c *SlackChannel) readLoop(ctx context.Context) {
	defer c.setRunning(false)

	for {
		// Ping control frames are answered by the websocket library's
		// default pong handler and never surface here.
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				logger.InfoC("slack", "Read loop stopped")
				return
			}
			logger.ErrorCF("slack", "Hard read error, closing connection", map[string]interface{}{
				"error": err.Error(),
			})
			return
		}

		if err := c.handleFrame(data); err != nil {
			// Only an ack write failure escapes handleFrame; the
			// transport is unusable for acks, so the session ends.
			logger.ErrorCF("slack", "Failed to write acknowledgement", map[string]interface{}{
				"error": err.Error(),
			})
			return
		}
	}
}

// handleFrame classifies one frame. Every enveloped frame is acked
// exactly once, before any processing, so acks go out in receipt order
// and are independent of downstream success.
func (c *SlackChannel) handleFrame(data []byte) error {
	frame, err := decodeFrame(data)
	if err != nil {
		// Best-effort fallback: dig the envelope_id out of the raw
		// bytes so the platform does not redeliver the event forever.
		if id := gjson.GetBytes(data, "envelope_id").String(); id != "" {
			logger.WarnCF("slack", "Acking malformed frame", map[string]interface{}{
				"envelope_id": id,
				"error":       err.Error(),
			})
			return c.ack(id)
		}
		logger.WarnCF("slack", "Dropping malformed frame without envelope_id", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}

	switch frame.Type {
	case frameHello:
		logger.InfoCF("slack", "Received hello", map[string]interface{}{
			"num_connections": frame.NumConnections,
		})
		return nil
	case frameDisconnect:
		logger.WarnCF("slack", "Server requested disconnect", map[string]interface{}{
			"reason": frame.Reason,
		})
		return nil
	case frameEventsAPI:
		return c.handleEnvelope(frame)
	default:
		logger.WarnCF("slack", "Unhandled frame type", map[string]interface{}{
			"type": frame.Type,
		})
		if frame.EnvelopeID != "" {
			return c.ack(frame.EnvelopeID)
		}
		return nil
	}
}

func (c *SlackChannel) handleEnvelope(frame *socketFrame) error {
	if frame.EnvelopeID != "" {
		if err := c.ack(frame.EnvelopeID); err != nil {
			return err
		}
	}

	payload, err := frame.eventsPayload()
	if err != nil {
		logger.WarnCF("slack", "Envelope with undecodable payload", map[string]interface{}{
			"envelope_id": frame.EnvelopeID,
			"error":       err.Error(),
		})
		return nil
	}

	event, err := decodeChatEvent(payload.Event)
	if err != nil {
		logger.WarnCF("slack", "Envelope with undecodable event", map[string]interface{}{
			"envelope_id": frame.EnvelopeID,
			"event_id":    payload.EventID,
			"error":       err.Error(),
		})
		return nil
	}

	switch event.kind() {
	case eventMention, eventChannelMessage:
		c.handleChatMessage(frame.EnvelopeID, payload, event)
	case eventReactionUpdated:
		logger.InfoCF("slack", "Received reaction update", map[string]interface{}{
			"envelope_id": frame.EnvelopeID,
			"reaction":    event.Reaction,
		})
	case eventThreadReply:
		logger.DebugCF("slack", "Ignoring thread reply", map[string]interface{}{
			"envelope_id": frame.EnvelopeID,
		})
	case eventMessageDeleted:
		logger.DebugCF("slack", "Ignoring message deletion", map[string]interface{}{
			"envelope_id": frame.EnvelopeID,
		})
	default:
		logger.WarnCF("slack", "Unhandled event shape", map[string]interface{}{
			"envelope_id": frame.EnvelopeID,
			"event_type":  event.Type,
			"subtype":     event.Subtype,
		})
	}

	return nil
}

func (c *SlackChannel) handleChatMessage(envelopeID string, payload *eventsPayload, event *chatEvent) {
	logger.InfoCF("slack", "Received channel message", map[string]interface{}{
		"envelope_id": envelopeID,
		"sender":      event.User,
		"length":      len(event.Text),
	})

	if !c.IsAllowed(event.User) {
		logger.WarnCF("slack", "Sender not in allowlist, dropping", map[string]interface{}{
			"sender": event.User,
		})
		return
	}

	content := strings.TrimSpace(mentionPattern.ReplaceAllString(event.Text, ""))

	// Replies land in the message's thread; a top-level message roots
	// a new thread at its own ts.
	threadTS := event.ThreadTS
	if threadTS == "" {
		threadTS = event.Ts
	}

	metadata := map[string]string{
		"event_id":     payload.EventID,
		"event_type":   event.Type,
		"envelope_id":  envelopeID,
		"ts":           event.Ts,
		"channel_type": event.ChannelType,
	}

	c.HandleMessage(event.User, event.Channel, content, threadTS, metadata)
}

// ack echoes the envelope ID back over the transport. Acking the same
// envelope twice is harmless; no delivery state is tracked here.
func (c *SlackChannel) ack(envelopeID string) error {
	data, err := json.Marshal(ackFrame{EnvelopeID: envelopeID})
	if err != nil {
		return err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	logger.InfoCF("slack", "Acked message", map[string]interface{}{
		"envelope_id": envelopeID,
	})
	return nil
}
