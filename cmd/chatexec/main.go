package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pocketops/chatexec/pkg/bus"
	"github.com/pocketops/chatexec/pkg/channels"
	"github.com/pocketops/chatexec/pkg/config"
	"github.com/pocketops/chatexec/pkg/executor"
	"github.com/pocketops/chatexec/pkg/logger"
	"github.com/pocketops/chatexec/pkg/runner"
)

func main() {
	configPath := flag.String("config", "~/.chatexec/config.json", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *debug {
		logger.SetLevel(logger.DEBUG)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if cfg.Logging.FileEnabled {
		if err := logger.EnableFileLogging(
			cfg.LogFilePath(),
			cfg.Logging.RotationEnabled,
			cfg.Logging.MaxSizeMB,
			cfg.Logging.MaxAgeDays,
		); err != nil {
			logger.WarnCF("main", "File logging unavailable", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	registry := executor.NewRegistry(cfg.Executors)
	if registry.Len() == 0 {
		logger.WarnC("main", "No executors configured; every command request will fail")
	} else {
		logger.InfoCF("main", "Loaded executors", map[string]interface{}{
			"count": registry.Len(),
		})
	}

	messageBus := bus.NewMessageBus()

	channel, err := channels.NewSlackChannel(cfg.Slack, messageBus)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating slack channel: %v\n", err)
		os.Exit(1)
	}

	loop := runner.NewLoop(messageBus, registry, cfg.Runner.Workers)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := channel.Start(ctx); err != nil {
		logger.FatalCF("main", "Failed to start slack channel", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Single sender goroutine: all replies for the channel funnel
	// through here.
	go func() {
		for {
			msg, ok := messageBus.ConsumeOutbound(ctx)
			if !ok {
				return
			}
			// Posting errors are logged in Send and deliberately not
			// retried; the originating frame was already acked.
			channel.Send(ctx, msg)
		}
	}()

	go loop.Run(ctx)

	// No reconnect policy: when the transport dies the process exits
	// and external supervision (systemd, a container runtime) restarts
	// it with a fresh connection.
	watchdog := time.NewTicker(time.Second)
	defer watchdog.Stop()

	running := true
	for running {
		select {
		case <-ctx.Done():
			running = false
		case <-watchdog.C:
			if !channel.IsRunning() {
				logger.ErrorC("main", "Slack connection lost, exiting for supervised restart")
				running = false
			}
		}
	}

	logger.InfoC("main", "Shutting down")
	channel.Stop(context.Background())
	loop.Stop()
	logger.DisableFileLogging()
}
