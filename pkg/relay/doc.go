// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package relay forwards channel messages from one IRC server (the source)
// to another (the destination) over TLS.
//
// Messages posted in a joined channel on the source are queued as
// "<nick> text" and delivered to the same channel on the destination no
// faster than one per throttle_interval, in arrival order. The configured
// admin nick controls the relay from the destination with a closed set of
// !commands: !reconnect, !clear, !join, !part, !quit, !nick, !info, !rawf
// and !rawt.
//
// # Core Types
//
// [Relay] owns both endpoints, the [Queue], the [ChannelSet] and the
// [Limiter], and runs the single-threaded main loop in [Relay.Run].
//
// [Endpoint] is one server connection. A reader goroutine per connection
// splits the stream into lines; the main loop consumes them, always
// reading the destination before the source so admin commands take
// effect first.
//
// # Failure Handling
//
// An I/O failure on one endpoint drops and reconnects only that endpoint
// after reconnect_delay. Queued messages stay queued until the destination
// has registered again. Unexpected errors inside one loop iteration are
// logged and the loop continues after error_pause.
//
// # Sub-packages
//
//   - ircmsg tokenizes and renders protocol lines.
package relay
