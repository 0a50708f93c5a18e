package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Auth outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeInvalid  = "invalid"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// AuthMetrics counts login and registration attempts by entry point.
type AuthMetrics struct {
	attempts *prometheus.CounterVec
}

// NewAuthMetrics registers its collectors on reg.
func NewAuthMetrics(reg prometheus.Registerer) *AuthMetrics {
	return &AuthMetrics{
		attempts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "todo",
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Login and registration attempts by surface and outcome",
		}, []string{"surface", "flow", "outcome"}),
	}
}

// Observe records one attempt. A nil receiver records nothing.
func (m *AuthMetrics) Observe(surface, flow, outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(surface, flow, outcome).Inc()
}
