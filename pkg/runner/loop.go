package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/gammazero/workerpool"

	"github.com/pocketops/chatexec/pkg/bus"
	"github.com/pocketops/chatexec/pkg/executor"
	"github.com/pocketops/chatexec/pkg/logger"
)

// Loop consumes chat messages from the bus, parses their command
// directive and executes the resolved command on a bounded worker pool.
// Parsing happens on the loop goroutine; only the blocking subprocess
// work goes to the pool, so a hung command never stalls message intake.
type Loop struct {
	bus      *bus.MessageBus
	engine   *executor.Engine
	registry *executor.Registry
	pool     *workerpool.WorkerPool
	running  atomic.Bool
}

func NewLoop(messageBus *bus.MessageBus, registry *executor.Registry, workers int) *Loop {
	if workers <= 0 {
		workers = 1
	}
	return &Loop{
		bus:      messageBus,
		engine:   executor.NewEngine(registry),
		registry: registry,
		pool:     workerpool.New(workers),
	}
}

func (l *Loop) Run(ctx context.Context) error {
	l.running.Store(true)

	for l.running.Load() {
		select {
		case <-ctx.Done():
			return nil
		default:
			msg, ok := l.bus.ConsumeInbound(ctx)
			if !ok {
				continue
			}
			l.dispatch(ctx, msg)
		}
	}

	return nil
}

// Stop ends message intake and waits for queued executions to settle.
// Commands run under the context passed to Run; cancelling it kills
// anything still executing, so StopWait returns promptly at shutdown.
func (l *Loop) Stop() {
	l.running.Store(false)
	l.pool.StopWait()
}

func (l *Loop) dispatch(ctx context.Context, msg bus.InboundMessage) {
	req, err := executor.ExtractRequest(msg.Content)
	if err != nil {
		if errors.Is(err, executor.ErrNoCodeBlock) {
			// Ordinary chatter. Only a direct mention deserves a
			// hint; replying to every channel message would be noise.
			if msg.Metadata["event_type"] == "app_mention" {
				l.reply(ctx, msg, "No command found. Wrap it in a fenced block with an `# executor: <name>` directive.")
			} else {
				logger.DebugCF("runner", "Message without code block, ignoring", map[string]interface{}{
					"correlation_id": msg.CorrelationID,
				})
			}
			return
		}

		logger.WarnCF("runner", "Failed to parse command", map[string]interface{}{
			"correlation_id": msg.CorrelationID,
			"error":          err.Error(),
		})
		l.reply(ctx, msg, fmt.Sprintf("Could not parse command: %v", err))
		return
	}

	l.pool.Submit(func() {
		l.execute(ctx, msg, req)
	})
}

func (l *Loop) execute(ctx context.Context, msg bus.InboundMessage, req executor.Request) {
	logger.InfoCF("runner", "Executing command", map[string]interface{}{
		"executor":       req.Name,
		"sender":         msg.SenderID,
		"correlation_id": msg.CorrelationID,
	})

	result, err := l.engine.Run(ctx, req)
	if err != nil {
		logger.WarnCF("runner", "Command did not run", map[string]interface{}{
			"executor":       req.Name,
			"correlation_id": msg.CorrelationID,
			"error":          err.Error(),
		})

		var unknown *executor.UnknownExecutorError
		switch {
		case errors.Is(err, executor.ErrNoExecutors):
			l.reply(ctx, msg, "No executors are configured.")
		case errors.As(err, &unknown):
			l.reply(ctx, msg, fmt.Sprintf("Unknown executor %q. Available: %s",
				unknown.Name, strings.Join(l.registry.Names(), ", ")))
		default:
			l.reply(ctx, msg, fmt.Sprintf("Command failed to start: %v", err))
		}
		return
	}

	logger.InfoCF("runner", "Command finished", map[string]interface{}{
		"executor":       req.Name,
		"exit_status":    result.ExitStatus,
		"correlation_id": msg.CorrelationID,
	})

	l.reply(ctx, msg, formatResult(result))
}

func (l *Loop) reply(ctx context.Context, msg bus.InboundMessage, content string) {
	ok := l.bus.PublishOutbound(ctx, bus.OutboundMessage{
		Channel:  msg.Channel,
		ChatID:   msg.ChatID,
		Content:  content,
		ThreadTS: msg.ThreadTS,
	})
	if !ok {
		logger.DebugCF("runner", "Dropped reply, shutting down", map[string]interface{}{
			"correlation_id": msg.CorrelationID,
		})
	}
}

func formatResult(result executor.Result) string {
	if result.Err != nil {
		detail := strings.TrimSpace(result.Stderr)
		if detail == "" {
			detail = strings.TrimSpace(result.Stdout)
		}
		out := fmt.Sprintf("Command failed (exit %d)", result.ExitStatus)
		if detail != "" {
			out += fmt.Sprintf("\n```\n%s\n```", detail)
		}
		return out
	}

	if strings.TrimSpace(result.Stdout) == "" {
		return "Command completed with no output."
	}
	return fmt.Sprintf("```\n%s\n```", strings.TrimRight(result.Stdout, "\n"))
}
