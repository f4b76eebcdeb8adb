// Package metrics defines the engine's Prometheus instrumentation.
//
// All helpers are nil-safe so components can run uninstrumented (tests,
// embedded use) without branching at every call site.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector of the engine. Construct with New and
// share one instance across components.
type Metrics struct {
	commandsTotal  *prometheus.CounterVec
	commandSeconds *prometheus.HistogramVec
	tokenRequests  *prometheus.CounterVec
	streamFrames   *prometheus.CounterVec
	streamRedials  prometheus.Counter
}

// New registers all collectors on reg and returns the bundle.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizlive",
			Subsystem: "command",
			Name:      "requests_total",
			Help:      "Live-session commands issued, by operation and outcome.",
		}, []string{"op", "outcome"}),
		commandSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quizlive",
			Subsystem: "command",
			Name:      "duration_seconds",
			Help:      "Live-session command round-trip duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		tokenRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizlive",
			Subsystem: "token",
			Name:      "requests_total",
			Help:      "Token lifecycle requests, by operation and outcome.",
		}, []string{"op", "outcome"}),
		streamFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizlive",
			Subsystem: "stream",
			Name:      "frames_total",
			Help:      "Stream frames received, by outcome (ok or malformed).",
		}, []string{"outcome"}),
		streamRedials: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quizlive",
			Subsystem: "stream",
			Name:      "redials_total",
			Help:      "Stream reconnect attempts after a transport error.",
		}),
	}

	reg.MustRegister(
		m.commandsTotal,
		m.commandSeconds,
		m.tokenRequests,
		m.streamFrames,
		m.streamRedials,
	)
	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveCommand records one command round trip.
func (m *Metrics) ObserveCommand(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(op, outcome(err)).Inc()
	m.commandSeconds.WithLabelValues(op).Observe(d.Seconds())
}

// CountToken records one token lifecycle request.
func (m *Metrics) CountToken(op string, err error) {
	if m == nil {
		return
	}
	m.tokenRequests.WithLabelValues(op, outcome(err)).Inc()
}

// CountFrame records one received stream frame.
func (m *Metrics) CountFrame(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.streamFrames.WithLabelValues("ok").Inc()
		return
	}
	m.streamFrames.WithLabelValues("malformed").Inc()
}

// CountRedial records one stream reconnect attempt.
func (m *Metrics) CountRedial() {
	if m == nil {
		return
	}
	m.streamRedials.Inc()
}
