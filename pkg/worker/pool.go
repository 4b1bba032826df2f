// Package worker provides a small generic worker pool used to fan
// chunks out across analysis workers with backpressure.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/femtostream/metric"
)

// Pool processes work items of type T on a fixed set of workers. The
// default is a single worker, which keeps processing fully ordered;
// more workers trade ordering for throughput.
type Pool[T any] struct {
	workers   int
	queueSize int
	processor func(context.Context, T) error

	workChan chan T
	metrics  *poolMetrics
	wg       sync.WaitGroup

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool

	submitted atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
}

type poolMetrics struct {
	queueDepth prometheus.Gauge
	processed  prometheus.Counter
	failed     prometheus.Counter
	duration   *prometheus.HistogramVec
}

// Option configures a pool.
type Option[T any] func(*Pool[T])

// WithMetrics registers queue and throughput metrics for the pool
// under the given prefix.
func WithMetrics[T any](registry *metric.MetricsRegistry, prefix string) Option[T] {
	return func(p *Pool[T]) {
		if registry == nil || prefix == "" {
			return
		}

		m := &poolMetrics{
			queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "femtostream",
				Subsystem: "worker",
				Name:      prefix + "_queue_depth",
				Help:      "Current pool queue depth",
			}),
			processed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "femtostream",
				Subsystem: "worker",
				Name:      prefix + "_processed_total",
				Help:      "Total work items processed",
			}),
			failed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "femtostream",
				Subsystem: "worker",
				Name:      prefix + "_failed_total",
				Help:      "Total work items that failed processing",
			}),
			duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "femtostream",
				Subsystem: "worker",
				Name:      prefix + "_duration_seconds",
				Help:      "Work item processing time",
				Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
			}, []string{"status"}),
		}

		component := "worker_" + prefix
		if registry.RegisterGauge(component, "queue_depth", m.queueDepth) != nil ||
			registry.RegisterCounter(component, "processed", m.processed) != nil ||
			registry.RegisterCounter(component, "failed", m.failed) != nil ||
			registry.RegisterHistogramVec(component, "duration", m.duration) != nil {
			return
		}
		p.metrics = m
	}
}

// NewPool creates a pool. workers and queueSize below one fall back to
// serialized processing with a single-slot queue.
func NewPool[T any](workers, queueSize int, processor func(context.Context, T) error, opts ...Option[T]) *Pool[T] {
	if processor == nil {
		panic(ErrNilProcessor)
	}
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}

	p := &Pool[T]{
		workers:   workers,
		queueSize: queueSize,
		processor: processor,
		workChan:  make(chan T, queueSize),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}

	p.started = true
	return nil
}

// Submit enqueues work without blocking; a full queue is an error.
func (p *Pool[T]) Submit(work T) error {
	if err := p.checkRunning(); err != nil {
		return err
	}

	select {
	case p.workChan <- work:
		p.noteSubmitted()
		return nil
	default:
		return ErrQueueFull
	}
}

// SubmitWait enqueues work, blocking while the queue is full. It
// returns early when ctx is cancelled.
func (p *Pool[T]) SubmitWait(ctx context.Context, work T) error {
	if err := p.checkRunning(); err != nil {
		return err
	}

	select {
	case p.workChan <- work:
		p.noteSubmitted()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool[T]) checkRunning() error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()
	if !p.started {
		return ErrPoolNotStarted
	}
	if p.stopped {
		return ErrPoolStopped
	}
	return nil
}

func (p *Pool[T]) noteSubmitted() {
	p.submitted.Add(1)
	if p.metrics != nil {
		p.metrics.queueDepth.Set(float64(len(p.workChan)))
	}
}

// Stop closes the queue and waits for in-flight work to finish.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.started || p.stopped {
		return nil
	}
	p.stopped = true
	close(p.workChan)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrStopTimeout
	}
}

// Stats reports pool throughput counters.
type Stats struct {
	Workers    int   `json:"workers"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
}

// Stats returns current pool statistics.
func (p *Pool[T]) Stats() Stats {
	return Stats{
		Workers:    p.workers,
		QueueDepth: len(p.workChan),
		Submitted:  p.submitted.Load(),
		Processed:  p.processed.Load(),
		Failed:     p.failed.Load(),
	}
}

func (p *Pool[T]) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case work, ok := <-p.workChan:
			if !ok {
				return
			}

			start := time.Now()
			err := p.processor(ctx, work)

			p.processed.Add(1)
			if err != nil {
				p.failed.Add(1)
			}

			if p.metrics != nil {
				p.metrics.processed.Inc()
				status := "success"
				if err != nil {
					p.metrics.failed.Inc()
					status = "error"
				}
				p.metrics.duration.WithLabelValues(status).Observe(time.Since(start).Seconds())
				p.metrics.queueDepth.Set(float64(len(p.workChan)))
			}
		}
	}
}
