// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EndpointStatus is one endpoint in the status API response.
type EndpointStatus struct {
	Addr  string    `json:"addr"`
	Nick  string    `json:"nick"`
	State ConnState `json:"state"`
}

// Status is the status API response.
type Status struct {
	Nick       string                  `json:"nick"`
	Channels   []string                `json:"channels"`
	QueueDepth int                     `json:"queue_depth"`
	Endpoints  map[Role]EndpointStatus `json:"endpoints"`
}

// Status returns a snapshot of the relay state. Safe to call from any
// goroutine.
func (r *Relay) Status() Status {
	st := Status{
		Nick:       r.Nick(),
		Channels:   r.channels.List(),
		QueueDepth: r.queue.Len(),
		Endpoints:  make(map[Role]EndpointStatus, 2),
	}
	for _, e := range r.endpoints() {
		st.Endpoints[e.Role] = EndpointStatus{
			Addr:  e.Addr(),
			Nick:  e.Nick(),
			State: e.State(),
		}
	}
	return st
}

// HandleStatus is an HTTP handler for GET /api/status.
func (r *Relay) HandleStatus(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(r.Status()); err != nil {
		r.log.Warn().Err(err).Msg("Failed to write status response")
	}
}

func (r *Relay) adminMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", r.HandleStatus)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (r *Relay) startAdminAPI() *http.Server {
	server := &http.Server{
		Addr:         r.Config.AdminAPIAddr,
		Handler:      r.adminMux(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		r.log.Info().Str("addr", server.Addr).Msg("Starting status API")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.log.Error().Err(err).Msg("Status API error")
		}
	}()
	return server
}

func (r *Relay) stopAdminAPI(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		r.log.Warn().Err(err).Msg("Failed to stop status API")
	}
}
