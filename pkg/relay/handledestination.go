// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"

	"github.com/aiku/irc-fwd/pkg/relay/ircmsg"
)

// handleDestination dispatches one line read from the destination endpoint.
// Admin commands are only accepted here.
func (r *Relay) handleDestination(ctx context.Context, msg ircmsg.Message) {
	switch msg.Command {
	case "376", "422":
		r.registered(r.dst)
	case "433":
		r.nickInUse(r.dst)
	case "PRIVMSG":
		if len(msg.Params) < 2 || !ircmsg.IsFrom(msg.Prefix, r.Config.AdminNick) {
			return
		}
		r.runAdminCommand(ctx, msg.Last())
	case "PING":
		r.send(r.dst, "PONG", ":"+msg.Param(0))
	}
}
