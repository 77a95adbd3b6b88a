// Copyright 2026 The Ember Authors
// SPDX-License-Identifier: Apache-2.0

// Ember-bot is a minimal Matrix bot built on the ember connector. It
// joins the configured rooms, streams incoming events, and echoes
// text messages back to their room. It is the reference wiring for
// embedding the connector in a real bot.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/emberworks/ember/connector"
	"github.com/emberworks/ember/events"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		logLevel   string
	)
	flag.StringVar(&configPath, "config", "ember.yaml", "path to the YAML config file")
	flag.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	config, err := connector.LoadConfig(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := connector.NewConnector(config, connector.Options{Logger: logger})
	if err != nil {
		return err
	}
	if err := conn.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		// The parent ctx is likely cancelled by the time we get
		// here; log out on a fresh context.
		if err := conn.Disconnect(context.Background()); err != nil {
			logger.Warn("logout failed", "error", err)
		}
	}()
	logger.Info("connected", "user_id", conn.UserID())

	err = conn.Listen(ctx, func(ctx context.Context, event events.Event) {
		message, ok := event.(*events.Message)
		if !ok {
			return
		}
		logger.Info("message received",
			"from", message.User,
			"room", message.Target,
			"text", message.Text,
		)
		reply := &events.Message{
			Base: events.Base{Target: message.Target},
			Text: fmt.Sprintf("%s said: %s", message.User, message.Text),
		}
		if err := conn.Send(ctx, reply); err != nil {
			logger.Error("failed to send reply", "error", err)
		}
	})
	if ctx.Err() != nil {
		logger.Info("shutting down")
		return nil
	}
	return err
}
