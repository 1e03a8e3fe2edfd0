// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"
	"strings"
	"unicode"
)

// commandArgs describes what may follow an admin command name.
type commandArgs int

const (
	// argsNone: the text is exactly the command name.
	argsNone commandArgs = iota
	// argsWord: one space, then a single token with no whitespace.
	argsWord
	// argsText: one space, then the non-empty rest of the line.
	argsText
)

type adminCommand struct {
	Name string
	Args commandArgs
	Run  func(r *Relay, ctx context.Context, arg string)
}

// newAdminCommands returns the closed command table in match order.
func newAdminCommands() []adminCommand {
	return []adminCommand{
		{"!reconnect", argsNone, (*Relay).cmdReconnect},
		{"!clear", argsNone, (*Relay).cmdClear},
		{"!join", argsWord, (*Relay).cmdJoin},
		{"!part", argsWord, (*Relay).cmdPart},
		{"!quit", argsNone, (*Relay).cmdQuit},
		{"!nick", argsWord, (*Relay).cmdNick},
		{"!info", argsNone, (*Relay).cmdInfo},
		{"!rawf", argsText, (*Relay).cmdRawSource},
		{"!rawt", argsText, (*Relay).cmdRawDestination},
	}
}

// match reports whether text invokes c and returns the argument.
func (c adminCommand) match(text string) (string, bool) {
	if c.Args == argsNone {
		return "", text == c.Name
	}
	arg, ok := strings.CutPrefix(text, c.Name+" ")
	if !ok || arg == "" {
		return "", false
	}
	if c.Args == argsWord && strings.IndexFunc(arg, unicode.IsSpace) >= 0 {
		return "", false
	}
	return arg, true
}

// matchAdminCommand finds the first table entry text invokes.
func (r *Relay) matchAdminCommand(text string) (*adminCommand, string, bool) {
	for i := range r.commands {
		if arg, ok := r.commands[i].match(text); ok {
			return &r.commands[i], arg, true
		}
	}
	return nil, "", false
}

// runAdminCommand executes text if it is an admin command. Anything else is
// ignored silently.
func (r *Relay) runAdminCommand(ctx context.Context, text string) bool {
	cmd, arg, ok := r.matchAdminCommand(text)
	if !ok {
		return false
	}
	r.log.Info().Str("command", cmd.Name).Str("arg", arg).Msg("Admin command")
	adminCommands.WithLabelValues(cmd.Name).Inc()
	cmd.Run(r, ctx, arg)
	return true
}

func (r *Relay) cmdReconnect(ctx context.Context, _ string) {
	if err := r.reconnect(ctx); err != nil {
		r.log.Warn().Err(err).Msg("Reconnect incomplete, failed endpoints will retry")
	}
}

func (r *Relay) cmdClear(_ context.Context, _ string) {
	n := r.queue.Clear()
	r.log.Info().Int("dropped", n).Msg("Queue cleared")
}

func (r *Relay) cmdJoin(_ context.Context, channel string) {
	r.channels.Add(channel)
	r.sendAll("JOIN", channel)
}

func (r *Relay) cmdPart(_ context.Context, channel string) {
	r.channels.Remove(channel)
	r.sendAll("PART", channel)
}

func (r *Relay) cmdQuit(_ context.Context, _ string) {
	r.quit()
}

// cmdNick changes the logical nick and both endpoints' nicks. Collisions are
// resolved per endpoint when the 433 arrives.
func (r *Relay) cmdNick(_ context.Context, nick string) {
	r.setNick(nick)
	for _, e := range r.endpoints() {
		e.setNick(nick)
		r.send(e, "NICK", nick)
	}
}

func (r *Relay) cmdInfo(_ context.Context, _ string) {
	r.send(r.dst, "PRIVMSG", r.Config.AdminNick, ":"+formatInfo(r.channels.List(), r.queue.Len()))
}

// cmdRawSource writes text verbatim to the source. The admin is trusted with
// arbitrary protocol lines.
func (r *Relay) cmdRawSource(_ context.Context, text string) {
	r.send(r.src, text)
}

func (r *Relay) cmdRawDestination(_ context.Context, text string) {
	r.send(r.dst, text)
}
