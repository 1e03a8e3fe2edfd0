// Copyright 2024-2026 Aiku AI

package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	linesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ircfwd_lines_received_total",
			Help: "Protocol lines read from each endpoint",
		},
		[]string{"endpoint"},
	)

	linesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ircfwd_lines_sent_total",
			Help: "Protocol lines written to each endpoint",
		},
		[]string{"endpoint"},
	)

	messagesRelayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ircfwd_messages_relayed_total",
			Help: "Queued channel messages delivered to the destination",
		},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ircfwd_queue_depth",
			Help: "Messages waiting for their throttled send slot",
		},
	)

	reconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ircfwd_reconnects_total",
			Help: "Connection attempts after the initial connect",
		},
		[]string{"endpoint"},
	)

	adminCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ircfwd_admin_commands_total",
			Help: "Admin commands executed",
		},
		[]string{"command"},
	)

	loopErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ircfwd_loop_errors_total",
			Help: "Unexpected errors recovered at the main loop boundary",
		},
	)
)
