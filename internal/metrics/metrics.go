// Package metrics exposes Prometheus instrumentation for the session flows.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"
)

// Metrics holds the collectors recorded by the auth service
type Metrics struct {
	Logins     *prometheus.CounterVec
	Refreshes  *prometheus.CounterVec
	Logouts    *prometheus.CounterVec
	Evictions  prometheus.Counter
	RegistryOp *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keeper",
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keeper",
			Name:      "refreshes_total",
			Help:      "Access token refresh attempts by result.",
		}, []string{"result"}),
		Logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "keeper",
			Name:      "logouts_total",
			Help:      "Logout attempts by result.",
		}, []string{"result"}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "keeper",
			Name:      "sessions_evicted_total",
			Help:      "Refresh sessions evicted because a principal exceeded the session cap.",
		}),
		RegistryOp: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "keeper",
			Name:      "registry_op_seconds",
			Help:      "Latency of refresh session registry operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}

	if reg != nil {
		reg.MustRegister(m.Logins, m.Refreshes, m.Logouts, m.Evictions, m.RegistryOp)
	}
	return m
}

// ObserveRegistry records the duration of a registry call started at start
func (m *Metrics) ObserveRegistry(op string, start time.Time) {
	if m == nil {
		return
	}
	m.RegistryOp.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Login counts a login attempt
func (m *Metrics) Login(result string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(result).Inc()
}

// Refresh counts a refresh attempt
func (m *Metrics) Refresh(result string) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(result).Inc()
}

// Logout counts a logout attempt
func (m *Metrics) Logout(result string) {
	if m == nil {
		return
	}
	m.Logouts.WithLabelValues(result).Inc()
}

// Evicted counts n evicted sessions
func (m *Metrics) Evicted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Evictions.Add(float64(n))
}
