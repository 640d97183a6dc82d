package server

import (
	"github.com/Mmx233/ProtoBridge/server/pool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session outcomes.
const (
	OutcomeStatus       = "status"
	OutcomeClosed       = "closed"
	OutcomeRejected     = "rejected"
	OutcomeUpstreamDown = "upstream_unavailable"
	OutcomeFatal        = "translation_fatal"
	OutcomeError        = "error"
)

// Metrics are the proxy level counters. A nil *Metrics records nothing.
type Metrics struct {
	sessions    *prometheus.CounterVec
	dialErrors  *prometheus.CounterVec
	loginFailed *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer, live *pool.Sessions) *Metrics {
	factory := promauto.With(reg)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "protobridge",
		Subsystem: "proxy",
		Name:      "sessions_active",
		Help:      "Sessions currently proxied",
	}, func() float64 { return float64(live.Count()) })
	return &Metrics{
		sessions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "protobridge",
			Subsystem: "proxy",
			Name:      "sessions_total",
			Help:      "Finished sessions by outcome",
		}, []string{"outcome"}),
		dialErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "protobridge",
			Subsystem: "proxy",
			Name:      "upstream_dial_errors_total",
			Help:      "Failed dials per upstream server",
		}, []string{"upstream"}),
		loginFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "protobridge",
			Subsystem: "proxy",
			Name:      "login_failures_total",
			Help:      "Logins that did not reach the play state by reason",
		}, []string{"reason"}),
	}
}

func (m *Metrics) session(outcome string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) dialError(upstream string) {
	if m == nil {
		return
	}
	m.dialErrors.WithLabelValues(upstream).Inc()
}

func (m *Metrics) loginFailure(reason string) {
	if m == nil {
		return
	}
	m.loginFailed.WithLabelValues(reason).Inc()
}
