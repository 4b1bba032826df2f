package metric

import "github.com/prometheus/client_golang/prometheus"

// Metrics contains core pipeline-level metrics (not task-specific)
type Metrics struct {
	// Pipeline metrics
	ChunksReceived      *prometheus.CounterVec
	CollisionsProcessed *prometheus.CounterVec
	ProcessingDuration  *prometheus.HistogramVec
	ErrorsTotal         *prometheus.CounterVec
	TasksRunning        prometheus.Gauge

	// NATS metrics
	NATSConnected  prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all pipeline metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ChunksReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "femtostream",
				Subsystem: "pipeline",
				Name:      "chunks_received_total",
				Help:      "Total number of data chunks received",
			},
			[]string{"source"},
		),

		CollisionsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "femtostream",
				Subsystem: "pipeline",
				Name:      "collisions_processed_total",
				Help:      "Total number of collisions dispatched to tasks",
			},
			[]string{"task"},
		),

		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "femtostream",
				Subsystem: "pipeline",
				Name:      "processing_duration_seconds",
				Help:      "Chunk processing duration in seconds",
				Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1, 5},
			},
			[]string{"task"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "femtostream",
				Subsystem: "pipeline",
				Name:      "errors_total",
				Help:      "Total number of errors by component and class",
			},
			[]string{"component", "class"},
		),

		TasksRunning: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "femtostream",
				Subsystem: "pipeline",
				Name:      "tasks_running",
				Help:      "Number of task instances currently running",
			},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "femtostream",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (1=connected, 0=disconnected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "femtostream",
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),
	}
}

// register registers all core pipeline metrics
func (m *Metrics) register(reg *prometheus.Registry) {
	reg.MustRegister(
		m.ChunksReceived,
		m.CollisionsProcessed,
		m.ProcessingDuration,
		m.ErrorsTotal,
		m.TasksRunning,
		m.NATSConnected,
		m.NATSReconnects,
	)
}
