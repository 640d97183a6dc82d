package translator

import (
	"time"

	"github.com/Mmx233/ProtoBridge/schema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Frame outcomes.
const (
	OutcomeTranslated  = "translated"
	OutcomePassthrough = "passthrough"
	OutcomeDropped     = "dropped"
	OutcomeFatal       = "fatal"
)

// Metrics is shared by every translator of a process. A nil *Metrics
// records nothing.
type Metrics struct {
	frames      *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	fatal       *prometheus.CounterVec
	emitted     *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	activeConns prometheus.Gauge
}

// NewMetrics registers the translator metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		frames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "protobridge",
			Subsystem: "translator",
			Name:      "frames_total",
			Help:      "Frames handled by the translator by outcome",
		}, []string{"direction", "outcome"}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "protobridge",
			Subsystem: "translator",
			Name:      "dropped_total",
			Help:      "Messages dropped by failure class",
		}, []string{"direction", "reason"}),
		fatal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "protobridge",
			Subsystem: "translator",
			Name:      "fatal_total",
			Help:      "Connection-fatal translation failures by class",
		}, []string{"direction", "reason"}),
		emitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "protobridge",
			Subsystem: "translator",
			Name:      "messages_emitted_total",
			Help:      "Translated messages emitted by kind",
		}, []string{"direction", "kind"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "protobridge",
			Subsystem: "translator",
			Name:      "frame_duration_seconds",
			Help:      "Time spent translating one frame",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
		}, []string{"direction"}),
		activeConns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "protobridge",
			Subsystem: "translator",
			Name:      "active",
			Help:      "Translators in the active state",
		}),
	}
}

func (m *Metrics) frame(dir schema.Direction, outcome string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(dir.String(), outcome).Inc()
}

func (m *Metrics) drop(dir schema.Direction, reason string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(dir.String(), OutcomeDropped).Inc()
	m.dropped.WithLabelValues(dir.String(), reason).Inc()
}

func (m *Metrics) fail(dir schema.Direction, reason string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(dir.String(), OutcomeFatal).Inc()
	m.fatal.WithLabelValues(dir.String(), reason).Inc()
}

func (m *Metrics) emit(dir schema.Direction, kind schema.Kind) {
	if m == nil {
		return
	}
	m.emitted.WithLabelValues(dir.String(), string(kind)).Inc()
}

func (m *Metrics) observe(dir schema.Direction, start time.Time) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(dir.String()).Observe(time.Since(start).Seconds())
}

func (m *Metrics) active(delta float64) {
	if m == nil {
		return
	}
	m.activeConns.Add(delta)
}
