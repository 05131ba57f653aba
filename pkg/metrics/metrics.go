// Package metrics, coordinator'ın Prometheus collector'larını tanımlar.
//
// Default registry yerine kendi Registry'sini kullanır; böylece testler
// birbirinden bağımsız Metrics instance'ları oluşturabilir.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nexus"

// Claim sonuç label'ları.
const (
	ClaimGranted = "granted"
	ClaimDenied  = "denied"
	ClaimInvalid = "invalid"
)

// Replicator yön label'ları.
const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
	DirectionDropped  = "dropped"
)

// Metrics, tüm collector'ları bir arada tutar.
type Metrics struct {
	registry *prometheus.Registry

	TxClaims           *prometheus.CounterVec
	TxReleases         prometheus.Counter
	TxExpired          prometheus.Counter
	HeldAuthorities    prometheus.Gauge
	ActiveSessions     prometheus.Gauge
	SessionsSwept      prometheus.Counter
	PatchValidations   *prometheus.CounterVec
	HailTransitions    *prometheus.CounterVec
	ReplicatorMessages *prometheus.CounterVec
	WSConnections      prometheus.Gauge
}

// New, collector'ları oluşturur ve yeni bir registry'ye kaydeder.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		TxClaims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "claims_total",
			Help:      "Transmit authority claims by result.",
		}, []string{"result"}),
		TxReleases: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "releases_total",
			Help:      "Transmit authority releases that removed a holder.",
		}),
		TxExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "expired_total",
			Help:      "Transmit authorities pruned after their TTL.",
		}),
		HeldAuthorities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tx",
			Name:      "held_authorities",
			Help:      "Nets with a live transmit authority.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Voice sessions currently registered.",
		}),
		SessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "swept_total",
			Help:      "Voice sessions removed for missing heartbeats.",
		}),
		PatchValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "patches",
			Name:      "validations_total",
			Help:      "Patch loop validations by result and reason.",
		}, []string{"result", "reason"}),
		HailTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hail",
			Name:      "messages_total",
			Help:      "Hail protocol messages accepted by the server.",
		}, []string{"type"}),
		ReplicatorMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replicator",
			Name:      "messages_total",
			Help:      "Replicator messages by direction and type.",
		}, []string{"direction", "type"}),
		WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "connections",
			Help:      "Open websocket connections.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.TxClaims,
		m.TxReleases,
		m.TxExpired,
		m.HeldAuthorities,
		m.ActiveSessions,
		m.SessionsSwept,
		m.PatchValidations,
		m.HailTransitions,
		m.ReplicatorMessages,
		m.WSConnections,
	)
	return m
}

// Registry, alttaki prometheus registry'sini döner.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler, /metrics endpoint'i için HTTP handler döner.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
