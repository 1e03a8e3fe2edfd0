// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/aiku/irc-fwd/pkg/relay/ircmsg"
)

// Relay owns both endpoints, the outbound queue and the channel set, and
// runs the single-threaded main loop. Only the status API reads its state
// from another goroutine.
type Relay struct {
	Config *Config

	log      zerolog.Logger
	clock    clock.Clock
	timing   Timing
	dialer   Dialer
	commands []adminCommand

	src *Endpoint
	dst *Endpoint

	channels   *ChannelSet
	queue      *Queue
	limiter    *Limiter
	nickSuffix nickSuffixFunc

	nickMu sync.RWMutex
	nick   string

	quitting bool
}

// Option customizes a Relay.
type Option func(*Relay)

// WithDialer replaces the TLS dialer.
func WithDialer(d Dialer) Option {
	return func(r *Relay) { r.dialer = d }
}

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(r *Relay) { r.clock = c }
}

// WithLogger sets the parent logger.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Relay) { r.log = log }
}

// New builds a Relay from a config that has been through PostProcess.
func New(cfg *Config, opts ...Option) *Relay {
	r := &Relay{
		Config:     cfg,
		log:        zerolog.Nop(),
		clock:      clock.New(),
		timing:     cfg.Timing(),
		channels:   NewChannelSet(cfg.Channels...),
		queue:      &Queue{},
		nickSuffix: defaultNickSuffix,
		nick:       cfg.Nick,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.dialer == nil {
		r.dialer = NewTLSDialer(cfg.TLSInsecureSkipVerify)
	}
	r.log = r.log.With().Str("component", "relay").Logger()
	r.limiter = NewLimiter(r.clock, r.timing)
	r.commands = newAdminCommands()
	r.src = newEndpoint(RoleSource, cfg.SourceHost, cfg.SourcePort, cfg.Nick, r.dialer, r.timing.WriteTimeout, r.log)
	r.dst = newEndpoint(RoleDestination, cfg.DestinationHost, cfg.DestinationPort, cfg.Nick, r.dialer, r.timing.WriteTimeout, r.log)
	return r
}

// Source returns the endpoint messages are read from.
func (r *Relay) Source() *Endpoint { return r.src }

// Destination returns the endpoint messages are relayed to.
func (r *Relay) Destination() *Endpoint { return r.dst }

// Channels returns the joined channel set.
func (r *Relay) Channels() *ChannelSet { return r.channels }

// Queue returns the outbound queue.
func (r *Relay) Queue() *Queue { return r.queue }

// Nick returns the relay's logical nick.
func (r *Relay) Nick() string {
	r.nickMu.RLock()
	defer r.nickMu.RUnlock()
	return r.nick
}

func (r *Relay) setNick(nick string) {
	r.nickMu.Lock()
	r.nick = nick
	r.nickMu.Unlock()
}

func (r *Relay) endpoints() []*Endpoint {
	return []*Endpoint{r.src, r.dst}
}

// Run connects both endpoints and runs the main loop until !quit or ctx is
// cancelled. It returns an error only if the initial connect fails.
func (r *Relay) Run(ctx context.Context) error {
	if r.Config.AdminAPIAddr != "" {
		srv := r.startAdminAPI()
		defer r.stopAdminAPI(srv)
	}

	if err := r.reconnect(ctx); err != nil {
		for _, e := range r.endpoints() {
			e.disconnect()
		}
		return fmt.Errorf("initial connect failed: %w", err)
	}
	r.log.Info().Strs("channels", r.channels.List()).Msg("Relay started")

	for !r.quitting {
		if ctx.Err() != nil {
			r.log.Info().Msg("Shutting down")
			r.quit()
			break
		}
		r.safeIterate(ctx)
	}
	return nil
}

// safeIterate runs one loop iteration. Anything that escapes it is logged
// and followed by a short pause; the loop itself never stops on an error.
func (r *Relay) safeIterate(ctx context.Context) {
	defer func() {
		if p := recover(); p != nil {
			loopErrors.Inc()
			r.log.Error().
				Interface("panic", p).
				Str("stack", string(debug.Stack())).
				Msg("Unexpected error in main loop")
			r.pause(ctx, r.timing.ErrorPause)
		}
	}()
	r.iterate(ctx)
}

func (r *Relay) iterate(ctx context.Context) {
	r.reconnectDue(ctx)

	dstReady, srcReady := r.wait(ctx, r.waitTimeout())
	if dstReady {
		r.readFrom(ctx, r.dst, r.handleDestination)
	}
	if r.quitting {
		return
	}
	if srcReady {
		r.readFrom(ctx, r.src, r.handleSource)
	}
	r.service()
}

func (r *Relay) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-r.clock.After(d):
	case <-ctx.Done():
	}
}

// waitTimeout is the limiter's timeout, shortened so a scheduled reconnect
// is not delayed by an idle wait. Queued entries only shorten the wait while
// the destination can take them.
func (r *Relay) waitTimeout() time.Duration {
	idle := r.queue.Len() == 0 || r.dst.State() != StateRegistered
	timeout := r.limiter.Timeout(idle)
	now := r.clock.Now()
	for _, e := range r.endpoints() {
		if e.Connected() || e.retryAt.IsZero() {
			continue
		}
		timeout = min(timeout, max(e.retryAt.Sub(now), r.timing.MinWait))
	}
	return timeout
}

// wait reports which endpoints have input. Locally buffered lines are
// preferred; otherwise both endpoints are waited on up to timeout.
func (r *Relay) wait(ctx context.Context, timeout time.Duration) (dstReady, srcReady bool) {
	if r.dst.Readable() || r.src.Readable() {
		return r.dst.Readable(), r.src.Readable()
	}

	timer := r.clock.Timer(timeout)
	defer timer.Stop()

	select {
	case res := <-r.dst.incoming():
		r.dst.hold(res)
	case res := <-r.src.incoming():
		r.src.hold(res)
	case <-timer.C:
	case <-ctx.Done():
	}
	return r.dst.Readable(), r.src.Readable()
}

func (r *Relay) readFrom(ctx context.Context, e *Endpoint, handle func(context.Context, ircmsg.Message)) {
	line, ok, err := e.ReadLine()
	if err != nil {
		r.endpointFailed(e, err)
		return
	}
	if !ok {
		return
	}
	handle(ctx, ircmsg.Parse(line))
}

// service sends the head of the queue when its slot has come, or does
// keepalive duty when the queue is empty.
func (r *Relay) service() {
	if entry, ok := r.queue.Peek(); ok {
		if r.dst.State() != StateRegistered || !r.limiter.Allow() {
			return
		}
		if !r.send(r.dst, "PRIVMSG", entry.Channel, ":"+entry.Text) {
			return
		}
		r.queue.Pop()
		messagesRelayed.Inc()
		return
	}

	for _, e := range []*Endpoint{r.dst, r.src} {
		if e.State() == StateRegistered && r.limiter.KeepaliveDue(e.Role) {
			r.limiter.MarkPing(e.Role)
			r.send(e, "PING", ":timeout")
		}
	}
}

// send writes one line and turns a failure into a reconnect of e.
func (r *Relay) send(e *Endpoint, tokens ...string) bool {
	if err := e.WriteLine(tokens...); err != nil {
		r.endpointFailed(e, err)
		return false
	}
	return true
}

func (r *Relay) sendAll(tokens ...string) {
	for _, e := range r.endpoints() {
		r.send(e, tokens...)
	}
}

// endpointFailed drops e's transport and schedules a reconnect of e alone.
func (r *Relay) endpointFailed(e *Endpoint, err error) {
	if errors.Is(err, ErrNotConnected) {
		e.log.Debug().Err(err).Msg("Dropped line for disconnected endpoint")
		return
	}
	e.disconnect()
	if r.quitting {
		return
	}
	e.retryAt = r.clock.Now().Add(r.timing.ReconnectDelay)
	e.log.Error().Err(err).
		Dur("retry_in", r.timing.ReconnectDelay).
		Msg("Connection failed, reconnecting")
}

// reconnectDue reconnects endpoints whose retry delay has passed.
func (r *Relay) reconnectDue(ctx context.Context) {
	now := r.clock.Now()
	for _, e := range r.endpoints() {
		if e.Connected() || e.retryAt.IsZero() || now.Before(e.retryAt) {
			continue
		}
		e.retryAt = time.Time{}
		reconnects.WithLabelValues(string(e.Role)).Inc()
		if err := e.connect(ctx); err != nil {
			r.endpointFailed(e, err)
		}
	}
}

// reconnect quits and reconnects both endpoints, source first. Endpoints
// that fail to connect are scheduled for retry and their errors returned.
func (r *Relay) reconnect(ctx context.Context) error {
	for _, e := range r.endpoints() {
		r.quitEndpoint(e)
	}
	var errs []error
	for _, e := range r.endpoints() {
		e.retryAt = time.Time{}
		if err := e.connect(ctx); err != nil {
			r.endpointFailed(e, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// quitEndpoint sends QUIT if e is connected and closes its transport.
func (r *Relay) quitEndpoint(e *Endpoint) {
	if !e.Connected() {
		return
	}
	if err := e.WriteLine("QUIT", ":"+r.Config.QuitMessage); err != nil {
		e.log.Debug().Err(err).Msg("Failed to send QUIT")
	}
	e.disconnect()
}

// quit sends QUIT on both endpoints and stops the main loop. Pending queue
// entries are not drained.
func (r *Relay) quit() {
	r.quitting = true
	for _, e := range r.endpoints() {
		r.quitEndpoint(e)
		e.retryAt = time.Time{}
	}
}

// registered marks e registered and replays the channel joins on it.
func (r *Relay) registered(e *Endpoint) {
	e.setState(StateRegistered)
	channels := r.channels.List()
	e.log.Info().Str("nick", e.Nick()).Strs("channels", channels).Msg("Registered")
	for _, ch := range channels {
		if !r.send(e, "JOIN", ch) {
			return
		}
	}
}

// nickInUse picks a new nick for e after ERR_NICKNAMEINUSE.
func (r *Relay) nickInUse(e *Endpoint) {
	nick := collisionNick(r.Nick(), e.Nick(), r.nickSuffix)
	e.log.Warn().Str("old_nick", e.Nick()).Str("new_nick", nick).Msg("Nick in use")
	e.setNick(nick)
	r.send(e, "NICK", nick)
}
