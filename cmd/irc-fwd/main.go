// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command irc-fwd relays channel messages from one IRC server to another
// over TLS, throttled to one message per interval, with an admin user on
// the destination server controlling it through !commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aiku/irc-fwd/pkg/relay"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	configPath string
	adminNick  string
	nick       string
	verbose    bool
)

func newLogger(cfg *relay.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}

	var log zerolog.Logger
	if cfg.LogFormat == "json" {
		log = zerolog.New(os.Stderr)
	} else {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "20060102 150405"})
	}
	return log.Level(level).With().Timestamp().Logger()
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := relay.LoadConfig(configPath)
	if err != nil {
		return err
	}
	cfg.SourceHost = args[0]
	cfg.DestinationHost = args[1]
	cfg.Channels = args[2:]
	if adminNick != "" {
		cfg.AdminNick = adminNick
	}
	if nick != "" {
		cfg.Nick = nick
	}
	if err := cfg.PostProcess(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log := newLogger(cfg)
	log.Info().
		Str("version", Tag).
		Str("commit", Commit).
		Str("from", cfg.SourceHost).
		Str("to", cfg.DestinationHost).
		Str("admin", cfg.AdminNick).
		Msg("Starting irc-fwd")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := relay.New(cfg, relay.WithLogger(log))
	if err := r.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Relay stopped")
		return err
	}
	log.Info().Msg("Relay stopped")
	return nil
}

func main() {
	root := &cobra.Command{
		Use:           "irc-fwd [flags] <fromhost> <tohost> [channel ...]",
		Short:         "Relay IRC channel messages between two servers",
		Args:          cobra.MinimumNArgs(2),
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Tag, Commit, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	root.Flags().StringVar(&adminNick, "admin", "", "nick allowed to send !commands on the destination")
	root.Flags().StringVar(&nick, "nick", "", "nick used on both servers (default <admin>_proxy)")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "log every protocol line")

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "irc-fwd:", err)
		os.Exit(1)
	}
}
