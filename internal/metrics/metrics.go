// Package metrics exposes Prometheus collectors for the signaling relay.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons recorded on silently discarded inbound frames.
const (
	DropMalformed     = "malformed"
	DropUnknownType   = "unknown_type"
	DropMissingTarget = "missing_target"
	DropImpersonation = "impersonation"
	DropClosedTarget  = "closed_target"
	DropSendError     = "send_error"
)

// Admission outcomes.
const (
	AdmissionAccepted      = "accepted"
	AdmissionUnauthorized  = "unauthorized"
	AdmissionReceiverLimit = "receiver_limit"
	AdmissionPeerLimit     = "peer_limit"
)

// Metrics holds the relay's Prometheus instruments. Each Metrics value owns
// its registry so tests can construct independent instances without
// duplicate-registration panics.
type Metrics struct {
	registry *prometheus.Registry

	ActiveSessions   prometheus.Gauge
	Admissions       *prometheus.CounterVec
	MessagesRouted   *prometheus.CounterVec
	MessagesDropped  *prometheus.CounterVec
	RosterBroadcasts prometheus.Counter
	ForwardErrors    prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "cam_relay_active_sessions",
			Help: "Number of registered signaling sessions.",
		}),
		Admissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cam_relay_admissions_total",
			Help: "Signaling connection admission attempts by outcome.",
		}, []string{"outcome"}),
		MessagesRouted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cam_relay_messages_routed_total",
			Help: "Signaling messages forwarded to a peer, by message type.",
		}, []string{"type"}),
		MessagesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cam_relay_messages_dropped_total",
			Help: "Inbound signaling frames silently discarded, by reason.",
		}, []string{"reason"}),
		RosterBroadcasts: factory.NewCounter(prometheus.CounterOpts{
			Name: "cam_relay_roster_broadcasts_total",
			Help: "user-list broadcasts triggered by membership changes.",
		}),
		ForwardErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "cam_relay_forward_errors_total",
			Help: "Transport errors while writing to a recipient session.",
		}),
	}
}

// Handler serves the /metrics endpoint for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
