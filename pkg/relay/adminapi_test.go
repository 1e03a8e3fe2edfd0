// Copyright 2024-2026 Aiku AI

package relay

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandleStatus(t *testing.T) {
	t.Parallel()
	r, d := newTestRelay(t, testConfig(t))
	src, _ := connectRelay(t, r, d)
	r.handleSource(t.Context(), parse(":irc.from 376 jj_proxy :End"))
	src.expect(t, "JOIN #a")
	r.queue.Push(QueueEntry{Channel: "#a", Text: "<x> y"})

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	r.HandleStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q", ct)
	}

	var got struct {
		Nick       string   `json:"nick"`
		Channels   []string `json:"channels"`
		QueueDepth int      `json:"queue_depth"`
		Endpoints  map[string]struct {
			Addr  string `json:"addr"`
			Nick  string `json:"nick"`
			State string `json:"state"`
		} `json:"endpoints"`
	}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Nick != "jj_proxy" || got.QueueDepth != 1 || len(got.Channels) != 1 {
		t.Errorf("got %+v", got)
	}
	if s := got.Endpoints["source"]; s.State != "registered" || s.Addr != srcAddr {
		t.Errorf("source: got %+v", s)
	}
	if s := got.Endpoints["destination"]; s.State != "connecting" || s.Nick != "jj_proxy" {
		t.Errorf("destination: got %+v", s)
	}
}

func TestHandleStatus_MethodNotAllowed(t *testing.T) {
	t.Parallel()
	r, _ := newTestRelay(t, testConfig(t))
	req := httptest.NewRequest(http.MethodPost, "/api/status", strings.NewReader("{}"))
	w := httptest.NewRecorder()
	r.HandleStatus(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", w.Code)
	}
}

func TestAdminMux_Metrics(t *testing.T) {
	t.Parallel()
	r, _ := newTestRelay(t, testConfig(t))
	srv := httptest.NewServer(r.adminMux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status: got %d", resp.StatusCode)
	}
}
