// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"

	"github.com/aiku/irc-fwd/pkg/relay/ircmsg"
)

// handleSource dispatches one line read from the source endpoint.
func (r *Relay) handleSource(_ context.Context, msg ircmsg.Message) {
	switch msg.Command {
	case "376", "422":
		r.registered(r.src)
	case "433":
		r.nickInUse(r.src)
	case "PRIVMSG":
		r.enqueueChannelMessage(msg)
	case "PING":
		r.send(r.src, "PONG", ":"+msg.Param(0))
	}
}

// enqueueChannelMessage queues a source channel message for relaying when
// its target is a joined channel. Private messages are ignored.
func (r *Relay) enqueueChannelMessage(msg ircmsg.Message) {
	if len(msg.Params) < 2 {
		return
	}
	channel := msg.Param(0)
	if !r.channels.Contains(channel) {
		return
	}
	r.queue.Push(QueueEntry{
		Channel: channel,
		Text:    formatRelayed(msg.Nick(), msg.Last()),
	})
	r.log.Debug().
		Str("channel", channel).
		Str("sender", msg.Nick()).
		Int("queue", r.queue.Len()).
		Msg("Queued channel message")
}
