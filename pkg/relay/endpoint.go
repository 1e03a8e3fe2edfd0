// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrNotConnected is returned when writing to an endpoint with no open transport.
var ErrNotConnected = errors.New("endpoint is not connected")

// TransportError is an I/O failure on one endpoint's connection.
type TransportError struct {
	Role Role
	Op   string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Role, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Dialer opens the encrypted stream to one server. *tls.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewTLSDialer returns the production dialer.
func NewTLSDialer(insecureSkipVerify bool) *tls.Dialer {
	return &tls.Dialer{
		NetDialer: &net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 10 * time.Second,
		},
		Config: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: insecureSkipVerify, //nolint:gosec // opt-in via config
		},
	}
}

// readResult is one line, or the error that ended the connection.
type readResult struct {
	line string
	err  error
}

// lineConn wraps one live connection. A reader goroutine splits the stream
// into lines; lines it has already read but the relay has not consumed
// count as locally buffered input.
type lineConn struct {
	conn     net.Conn
	incoming chan readResult
	held     *readResult
	done     chan struct{}
	stopOnce sync.Once
}

func newLineConn(conn net.Conn) *lineConn {
	lc := &lineConn{
		conn:     conn,
		incoming: make(chan readResult, 64),
		done:     make(chan struct{}),
	}
	go lc.readLoop()
	return lc
}

func (lc *lineConn) readLoop() {
	r := bufio.NewReader(lc.conn)
	for {
		line, err := r.ReadString('\n')
		var res readResult
		if err != nil {
			// A partial line before EOF is never delivered.
			res.err = err
		} else {
			line = strings.TrimSuffix(line, "\n")
			res.line = strings.TrimSuffix(line, "\r")
		}
		select {
		case lc.incoming <- res:
		case <-lc.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// buffered reports whether a line or read error is waiting locally.
func (lc *lineConn) buffered() bool {
	return lc.held != nil || len(lc.incoming) > 0
}

// hold stores a result taken out of incoming by the multiplexed wait.
func (lc *lineConn) hold(res readResult) {
	lc.held = &res
}

// next returns a waiting result without blocking.
func (lc *lineConn) next() (readResult, bool) {
	if lc.held != nil {
		res := *lc.held
		lc.held = nil
		return res, true
	}
	select {
	case res := <-lc.incoming:
		return res, true
	default:
		return readResult{}, false
	}
}

func (lc *lineConn) close() error {
	lc.stopOnce.Do(func() {
		close(lc.done)
	})
	return lc.conn.Close()
}

// Endpoint is one side of the relay. Only the Relay replaces its connection.
type Endpoint struct {
	Role Role
	Host string
	Port int

	dialer       Dialer
	writeTimeout time.Duration
	log          zerolog.Logger

	conn    *lineConn
	retryAt time.Time

	mu    sync.RWMutex
	nick  string
	state ConnState
}

func newEndpoint(role Role, host string, port int, nick string, dialer Dialer, writeTimeout time.Duration, log zerolog.Logger) *Endpoint {
	return &Endpoint{
		Role:         role,
		Host:         host,
		Port:         port,
		dialer:       dialer,
		writeTimeout: writeTimeout,
		log:          log.With().Str("endpoint", string(role)).Logger(),
		nick:         nick,
	}
}

// Addr returns host:port.
func (e *Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Nick returns the nick currently registered (or being registered).
func (e *Endpoint) Nick() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.nick
}

func (e *Endpoint) setNick(nick string) {
	e.mu.Lock()
	e.nick = nick
	e.mu.Unlock()
}

// State returns the registration state.
func (e *Endpoint) State() ConnState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Endpoint) setState(state ConnState) {
	e.mu.Lock()
	e.state = state
	e.mu.Unlock()
}

// Connected reports whether a transport is currently open.
func (e *Endpoint) Connected() bool {
	return e.conn != nil
}

// connect dials the server and sends USER/NICK registration.
func (e *Endpoint) connect(ctx context.Context) error {
	e.setState(StateConnecting)
	conn, err := e.dialer.DialContext(ctx, "tcp", e.Addr())
	if err != nil {
		e.setState(StateDisconnected)
		return &TransportError{Role: e.Role, Op: "dial", Err: err}
	}
	e.conn = newLineConn(conn)
	e.log.Info().Str("addr", e.Addr()).Msg("Connected")

	nick := e.Nick()
	if err := e.WriteLine("USER", nick, nick, nick, nick); err != nil {
		return err
	}
	return e.WriteLine("NICK", nick)
}

// disconnect drops the transport without sending anything.
func (e *Endpoint) disconnect() {
	if e.conn != nil {
		if err := e.conn.close(); err != nil {
			e.log.Debug().Err(err).Msg("Error closing connection")
		}
		e.conn = nil
	}
	e.setState(StateDisconnected)
}

// Readable reports whether ReadLine has input available without waiting.
func (e *Endpoint) Readable() bool {
	return e.conn != nil && e.conn.buffered()
}

// ReadLine returns the next complete line, or ok=false when none has been
// received yet. A read error ends the connection and is returned once.
func (e *Endpoint) ReadLine() (line string, ok bool, err error) {
	if e.conn == nil {
		return "", false, nil
	}
	res, ok := e.conn.next()
	if !ok {
		return "", false, nil
	}
	if res.err != nil {
		return "", false, &TransportError{Role: e.Role, Op: "read", Err: res.err}
	}
	e.log.Debug().Msgf("%s < %s", e.Role.short(), res.line)
	linesReceived.WithLabelValues(string(e.Role)).Inc()
	return res.line, true, nil
}

// WriteLine joins tokens with single spaces and sends them CRLF-terminated.
// Tokens that may contain spaces must already carry their ':' marker.
func (e *Endpoint) WriteLine(tokens ...string) error {
	line := strings.Join(tokens, " ")
	e.log.Debug().Msgf("%s > %s", e.Role.short(), line)
	if e.conn == nil {
		return &TransportError{Role: e.Role, Op: "write", Err: ErrNotConnected}
	}
	if e.writeTimeout > 0 {
		_ = e.conn.conn.SetWriteDeadline(time.Now().Add(e.writeTimeout))
	}
	if _, err := e.conn.conn.Write([]byte(line + "\r\n")); err != nil {
		return &TransportError{Role: e.Role, Op: "write", Err: err}
	}
	linesSent.WithLabelValues(string(e.Role)).Inc()
	return nil
}

// incoming exposes the channel for the multiplexed wait. A nil channel
// blocks forever, which is what a disconnected endpoint should do.
func (e *Endpoint) incoming() <-chan readResult {
	if e.conn == nil {
		return nil
	}
	return e.conn.incoming
}

func (e *Endpoint) hold(res readResult) {
	if e.conn != nil {
		e.conn.hold(res)
	}
}
