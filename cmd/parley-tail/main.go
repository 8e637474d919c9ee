// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// parley-tail streams a conversation to stdout: it loads the newest
// history page, then prints messages as they arrive over the push
// channel. Useful for watching a channel from a terminal and as a
// smoke test of the whole client stack against a live server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/parley-chat/parley/api"
	"github.com/parley-chat/parley/cache"
	"github.com/parley-chat/parley/lib/config"
	"github.com/parley-chat/parley/lib/ref"
	"github.com/parley-chat/parley/message"
	"github.com/parley-chat/parley/messenger"
	"github.com/parley-chat/parley/push"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A .env file is a development convenience; absence is fine.
	godotenv.Load()

	var (
		configPath   string
		conversation string
		verbose      bool
	)
	flags := pflag.NewFlagSet("parley-tail", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "path to parley.yaml (default: $PARLEY_CONFIG)")
	flags.StringVar(&conversation, "conversation", "", "conversation to tail, as kind/id (e.g. channel/general)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}
	if conversation == "" {
		return fmt.Errorf("--conversation is required")
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	token, err := cfg.Token()
	if err != nil {
		return err
	}

	target, err := ref.ParseConversation(conversation)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := api.NewClient(api.ClientConfig{
		BaseURL: cfg.Server.BaseURL,
		Token:   token,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	identity, err := client.Me(ctx)
	if err != nil {
		return err
	}
	logger.Info("authenticated", "user", identity.Username)

	store, err := cache.NewStore(cache.StoreConfig{SelfID: identity.ID, Logger: logger})
	if err != nil {
		return err
	}
	if cfg.Cache.SnapshotPath != "" {
		if err := store.LoadSnapshot(cfg.Cache.SnapshotPath); err != nil {
			logger.Warn("ignoring unusable cache snapshot", "error", err)
		}
	}

	channel, err := push.DialWebSocket(ctx, push.WebSocketConfig{
		URL:    cfg.Server.ResolvedPushURL(),
		Token:  token,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer channel.Close()

	m, err := messenger.New(messenger.Config{
		Store:      store,
		Channel:    channel,
		History:    client,
		Logger:     logger,
		AckTimeout: cfg.Send.AckTimeout,
		PageSize:   cfg.Cache.PageSize,
	})
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Open(ctx, target); err != nil {
		return err
	}

	// Print the loaded page oldest-first, then follow the live feed.
	loaded := store.Messages(target)
	printed := make(map[ref.MessageID]bool, len(loaded))
	for i := len(loaded) - 1; i >= 0; i-- {
		printMessage(&loaded[i])
		printed[loaded[i].ID] = true
	}

	// The store has no change notification; poll it. Half a second is
	// plenty for a terminal feed.
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if cfg.Cache.SnapshotPath != "" {
				if err := store.SaveSnapshot(cfg.Cache.SnapshotPath); err != nil {
					logger.Warn("saving cache snapshot failed", "error", err)
				}
			}
			return nil
		case <-ticker.C:
			current := store.Messages(target)
			for i := len(current) - 1; i >= 0; i-- {
				if printed[current[i].ID] {
					continue
				}
				printMessage(&current[i])
				printed[current[i].ID] = true
			}
		}
	}
}

func printMessage(msg *message.Message) {
	fmt.Printf("%s  %-16s  %s\n",
		msg.SentAt.Local().Format("15:04:05"), msg.AuthorID, msg.Text())
}
