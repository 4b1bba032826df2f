package debugphi

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/femtostream/errors"
	"github.com/c360/femtostream/metric"
)

// Candidate outcome labels for the candidates counter.
const (
	statusFilled      = "filled"
	skipNoChildren    = "no_children"
	skipIndexMismatch = "index_mismatch"
	skipType          = "wrong_type"
	skipCut           = "cut"
	skipPID           = "pid"
)

// phiMetrics holds the task's Prometheus instruments. All methods are
// nil-safe so the task runs unchanged when metrics are unavailable.
type phiMetrics struct {
	collisions *prometheus.CounterVec
	candidates *prometheus.CounterVec
}

func newPhiMetrics(registry *metric.MetricsRegistry, taskName string) (*phiMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &phiMetrics{
		collisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "femtostream",
				Subsystem: "debugphi",
				Name:      "collisions_total",
				Help:      "Collisions processed by the Phi QA task",
			},
			[]string{"task"},
		),
		candidates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "femtostream",
				Subsystem: "debugphi",
				Name:      "candidates_total",
				Help:      "Phi candidates by processing outcome",
			},
			[]string{"task", "status"},
		),
	}

	if err := registry.RegisterCounterVec(taskName, "collisions", m.collisions); err != nil {
		return nil, errors.Wrap(err, "phiMetrics", "newPhiMetrics", "collisions counter registration")
	}
	if err := registry.RegisterCounterVec(taskName, "candidates", m.candidates); err != nil {
		return nil, errors.Wrap(err, "phiMetrics", "newPhiMetrics", "candidates counter registration")
	}

	return m, nil
}

func (m *phiMetrics) recordCollision(taskName string) {
	if m == nil {
		return
	}
	m.collisions.WithLabelValues(taskName).Inc()
}

func (m *phiMetrics) recordCandidate(taskName, status string) {
	if m == nil {
		return
	}
	m.candidates.WithLabelValues(taskName, status).Inc()
}
