package mcpwire

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the router's prometheus instruments. All instruments are
// registered against the registerer handed to the router at construction,
// so tests can use isolated registries.
type metrics struct {
	requestsTotal  *prometheus.CounterVec
	inflight       prometheus.Gauge
	rejectedTotal  *prometheus.CounterVec
	breakerOpens   *prometheus.CounterVec
	peerCallsTotal *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mcpwire",
			Name:      "requests_total",
			Help:      "Inbound requests routed, by method and outcome.",
		}, []string{"method", "outcome"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mcpwire",
			Name:      "requests_inflight",
			Help:      "Inbound requests currently holding an admission permit.",
		}),
		rejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mcpwire",
			Name:      "requests_rejected_total",
			Help:      "Inbound requests rejected before dispatch, by reason.",
		}, []string{"reason"}),
		breakerOpens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mcpwire",
			Name:      "breaker_opens_total",
			Help:      "Circuit breaker transitions into the open state, by endpoint.",
		}, []string{"endpoint"}),
		peerCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mcpwire",
			Name:      "peer_calls_total",
			Help:      "Outbound peer requests, by method and outcome.",
		}, []string{"method", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.requestsTotal, m.inflight, m.rejectedTotal, m.breakerOpens, m.peerCallsTotal)
	}
	return m
}

func (m *metrics) observeRequest(method string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.requestsTotal.WithLabelValues(method, outcome).Inc()
}

func (m *metrics) observePeerCall(method string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.peerCallsTotal.WithLabelValues(method, outcome).Inc()
}
