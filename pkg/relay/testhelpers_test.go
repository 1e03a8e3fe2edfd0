// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package relay

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aiku/irc-fwd/pkg/relay/ircmsg"
)

const (
	srcAddr = "from.example.net:6697"
	dstAddr = "to.example.net:6697"

	testTimeout = 2 * time.Second
)

// fakeServer is the server side of one net.Pipe connection. It records
// every line the relay writes.
type fakeServer struct {
	conn  net.Conn
	lines chan string
}

func newFakeServer(conn net.Conn) *fakeServer {
	s := &fakeServer{conn: conn, lines: make(chan string, 256)}
	go func() {
		defer close(s.lines)
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			s.lines <- strings.TrimSuffix(sc.Text(), "\r")
		}
	}()
	return s
}

// send delivers one line to the relay.
func (s *fakeServer) send(t *testing.T, line string) {
	t.Helper()
	if _, err := io.WriteString(s.conn, line+"\r\n"); err != nil {
		t.Fatalf("server write %q: %v", line, err)
	}
}

func (s *fakeServer) next(t *testing.T) string {
	t.Helper()
	select {
	case line, ok := <-s.lines:
		if !ok {
			t.Fatal("connection closed while waiting for a line")
		}
		return line
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for a line")
		return ""
	}
}

func (s *fakeServer) expect(t *testing.T, want string) {
	t.Helper()
	if got := s.next(t); got != want {
		t.Fatalf("got line %q, want %q", got, want)
	}
}

// expectSkipping reads until want arrives, ignoring keepalive PINGs.
func (s *fakeServer) expectSkipping(t *testing.T, want string) {
	t.Helper()
	for {
		got := s.next(t)
		if got == "PING :timeout" && want != got {
			continue
		}
		if got != want {
			t.Fatalf("got line %q, want %q", got, want)
		}
		return
	}
}

// expectNone fails if the relay writes anything within d.
func (s *fakeServer) expectNone(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case line, ok := <-s.lines:
		if ok {
			t.Fatalf("unexpected line %q", line)
		}
	case <-time.After(d):
	}
}

// expectClosed waits for the relay to close the connection after any
// remaining lines.
func (s *fakeServer) expectClosed(t *testing.T) {
	t.Helper()
	timeout := time.After(testTimeout)
	for {
		select {
		case _, ok := <-s.lines:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("timed out waiting for the connection to close")
		}
	}
}

// expectClosedWithout waits for the connection to close and fails if any
// remaining line carries the given command.
func (s *fakeServer) expectClosedWithout(t *testing.T, command string) {
	t.Helper()
	timeout := time.After(testTimeout)
	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				return
			}
			if parse(line).Command == command {
				t.Fatalf("unexpected %s line %q", command, line)
			}
		case <-timeout:
			t.Fatal("timed out waiting for the connection to close")
		}
	}
}

func (s *fakeServer) close() {
	_ = s.conn.Close()
}

// fakeDialer hands out net.Pipe connections and keeps the server side of
// each one by address.
type fakeDialer struct {
	mu      sync.Mutex
	servers map[string][]*fakeServer
	dialed  map[string]int
	fail    map[string]error
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{
		servers: make(map[string][]*fakeServer),
		dialed:  make(map[string]int),
		fail:    make(map[string]error),
	}
}

func (d *fakeDialer) DialContext(_ context.Context, _, addr string) (net.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialed[addr]++
	if err := d.fail[addr]; err != nil {
		return nil, err
	}
	client, server := net.Pipe()
	d.servers[addr] = append(d.servers[addr], newFakeServer(server))
	return client, nil
}

func (d *fakeDialer) setFail(addr string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.fail, addr)
		return
	}
	d.fail[addr] = err
}

func (d *fakeDialer) dials(addr string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dialed[addr]
}

// conn waits for the n-th (1-based) connection to addr.
func (d *fakeDialer) conn(t *testing.T, addr string, n int) *fakeServer {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for time.Now().Before(deadline) {
		d.mu.Lock()
		servers := d.servers[addr]
		d.mu.Unlock()
		if len(servers) >= n {
			return servers[n-1]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for connection %d to %s", n, addr)
	return nil
}

// testConfig is a valid post-processed config with short timings.
func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := validConfig(t)
	cfg.Channels = []string{"#a"}
	cfg.IdleTimeout = "20ms"
	cfg.ReconnectDelay = "20ms"
	cfg.ErrorPause = "10ms"
	cfg.WriteTimeout = "1s"
	if err := cfg.PostProcess(); err != nil {
		t.Fatalf("PostProcess: %v", err)
	}
	return cfg
}

func newTestRelay(t *testing.T, cfg *Config, opts ...Option) (*Relay, *fakeDialer) {
	t.Helper()
	d := newFakeDialer()
	opts = append([]Option{WithDialer(d), WithLogger(zerolog.Nop())}, opts...)
	r := New(cfg, opts...)
	r.nickSuffix = func() int { return 42 }
	return r, d
}

// connectRelay connects both endpoints directly, without the main loop,
// and consumes the registration lines.
func connectRelay(t *testing.T, r *Relay, d *fakeDialer) (src, dst *fakeServer) {
	t.Helper()
	if err := r.reconnect(context.Background()); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	t.Cleanup(func() {
		r.src.disconnect()
		r.dst.disconnect()
	})
	src = d.conn(t, srcAddr, 1)
	dst = d.conn(t, dstAddr, 1)
	for _, s := range []*fakeServer{src, dst} {
		s.expect(t, "USER jj_proxy jj_proxy jj_proxy jj_proxy")
		s.expect(t, "NICK jj_proxy")
	}
	return src, dst
}

// registerRelay delivers end-of-MOTD on both endpoints and consumes the
// channel joins.
func registerRelay(t *testing.T, r *Relay, src, dst *fakeServer) {
	t.Helper()
	ctx := context.Background()
	r.handleSource(ctx, ircmsg.Parse(":irc.from 376 jj_proxy :End of /MOTD command."))
	r.handleDestination(ctx, ircmsg.Parse(":irc.to 376 jj_proxy :End of /MOTD command."))
	for _, ch := range r.channels.List() {
		src.expect(t, "JOIN "+ch)
		dst.expect(t, "JOIN "+ch)
	}
}

func parse(line string) ircmsg.Message {
	return ircmsg.Parse(line)
}
