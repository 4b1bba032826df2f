// Package workflow runs the analysis pipeline: it creates task
// instances from configuration, drains a chunk source, dispatches
// every collision to every task, and writes the histogram output at
// the end of the run.
package workflow

import (
	"context"
	"sort"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/c360/femtostream/config"
	"github.com/c360/femtostream/errors"
	"github.com/c360/femtostream/fdtable"
	"github.com/c360/femtostream/histbook"
	"github.com/c360/femtostream/metric"
	"github.com/c360/femtostream/output/yoda"
	"github.com/c360/femtostream/pkg/worker"
	"github.com/c360/femtostream/task"
)

// stopTimeout bounds the wait for in-flight chunks during shutdown.
const stopTimeout = 30 * time.Second

// ChunkSource delivers chunks to the engine. The channel closes when
// the source is exhausted or stopped.
type ChunkSource interface {
	Chunks() <-chan *fdtable.Chunk
}

// Writer persists histogram registries at the end of a run.
type Writer interface {
	Write(registries []*histbook.Registry) error
}

// Deps holds runtime dependencies for the engine
type Deps struct {
	Logger  *slog.Logger
	Metrics *metric.MetricsRegistry
	Writer  Writer
	Workers int // chunk-level parallelism, 1 serializes everything
}

// taskSlot pairs a task instance with the mutex that serializes all
// calls on it. A chunk holds the lock from BeginChunk through the last
// collision, so per-chunk task state never interleaves.
type taskSlot struct {
	name string
	task task.Task
	mu   sync.Mutex
}

// Engine drives chunks from a source through the registered tasks.
type Engine struct {
	logger  *slog.Logger
	metrics *metric.MetricsRegistry
	writer  Writer
	workers int

	mu    sync.Mutex
	slots []*taskSlot

	chunks     int64
	collisions int64
}

// New creates an engine. A nil writer skips end-of-run output.
func New(deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "engine")
	}
	workers := deps.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Engine{
		logger:  logger,
		metrics: deps.Metrics,
		writer:  deps.Writer,
		workers: workers,
	}
}

// AddTask registers a task instance with the engine.
func (e *Engine) AddTask(instance string, t task.Task) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.slots = append(e.slots, &taskSlot{name: instance, task: t})
	sort.Slice(e.slots, func(i, j int) bool { return e.slots[i].name < e.slots[j].name })
}

// CreateTasks validates the enabled task configs against their
// factory schemas and instantiates them through the registry.
func (e *Engine) CreateTasks(cfg *config.Config, registry *task.Registry, deps task.Dependencies) error {
	violations := config.ValidateTaskConfigs(cfg, registry, e.logger)
	if err := config.ValidationErrorsToError(violations); err != nil {
		return err
	}

	instances := make([]string, 0, len(cfg.EnabledTasks()))
	for instance := range cfg.EnabledTasks() {
		instances = append(instances, instance)
	}
	sort.Strings(instances)

	for _, instance := range instances {
		tc := cfg.Tasks[instance]
		t, err := registry.Create(instance, tc.Name, tc.Config, deps)
		if err != nil {
			return errors.Wrap(err, "Engine", "CreateTasks", "create "+instance)
		}
		e.AddTask(instance, t)
		e.logger.Info("Created task", "instance", instance, "factory", tc.Name)
	}
	return nil
}

// Registries returns the histogram registries of all tasks.
func (e *Engine) Registries() []*histbook.Registry {
	e.mu.Lock()
	defer e.mu.Unlock()

	var regs []*histbook.Registry
	for _, slot := range e.slots {
		regs = append(regs, slot.task.Registries()...)
	}
	return regs
}

// Run initializes all tasks, drains the source, and writes the output
// when the source is exhausted or ctx is cancelled.
func (e *Engine) Run(ctx context.Context, src ChunkSource) error {
	e.mu.Lock()
	slots := e.slots
	e.mu.Unlock()

	if len(slots) == 0 {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Engine", "Run", "no tasks registered")
	}

	runID := uuid.NewString()
	start := time.Now()
	logger := e.logger.With("run_id", runID)

	for _, slot := range slots {
		if err := slot.task.Init(); err != nil {
			return errors.Wrap(err, "Engine", "Run", "init "+slot.name)
		}
	}

	if e.metrics != nil {
		e.metrics.CoreMetrics().TasksRunning.Set(float64(len(slots)))
		defer e.metrics.CoreMetrics().TasksRunning.Set(0)
	}

	var poolOpts []worker.Option[*fdtable.Chunk]
	if e.metrics != nil {
		poolOpts = append(poolOpts, worker.WithMetrics[*fdtable.Chunk](e.metrics, "chunks"))
	}
	pool := worker.NewPool(e.workers, e.workers, func(ctx context.Context, chunk *fdtable.Chunk) error {
		e.processChunk(ctx, chunk, slots)
		return nil
	}, poolOpts...)

	if err := pool.Start(ctx); err != nil {
		return errors.WrapFatal(err, "Engine", "Run", "start worker pool")
	}

	logger.Info("Run started", "tasks", len(slots), "workers", e.workers)

drain:
	for {
		select {
		case chunk, ok := <-src.Chunks():
			if !ok {
				break drain
			}
			if err := pool.SubmitWait(ctx, chunk); err != nil {
				logger.Warn("Chunk submission aborted", "error", err)
				break drain
			}
		case <-ctx.Done():
			logger.Info("Run cancelled, draining in-flight chunks")
			break drain
		}
	}

	if err := pool.Stop(stopTimeout); err != nil {
		logger.Error("Worker pool did not stop cleanly", "error", err)
	}

	if e.writer != nil {
		if err := e.writer.Write(e.Registries()); err != nil {
			return errors.Wrap(err, "Engine", "Run", "write output")
		}
	}

	logger.Info("Run finished",
		"chunks", e.chunkCount(),
		"collisions", e.collisionCount(),
		"duration", time.Since(start).Round(time.Millisecond))
	return nil
}

func (e *Engine) processChunk(ctx context.Context, chunk *fdtable.Chunk, slots []*taskSlot) {
	table := chunk.Table()

	for _, slot := range slots {
		if ctx.Err() != nil {
			return
		}

		start := time.Now()
		processed, err := e.runTaskOnChunk(ctx, slot, chunk, table)
		if err != nil {
			e.noteTaskError(slot.name, err)
			continue
		}

		if e.metrics != nil {
			core := e.metrics.CoreMetrics()
			core.CollisionsProcessed.WithLabelValues(slot.name).Add(float64(processed))
			core.ProcessingDuration.WithLabelValues(slot.name).Observe(time.Since(start).Seconds())
		}
	}

	e.mu.Lock()
	e.chunks++
	e.collisions += int64(len(chunk.Collisions))
	e.mu.Unlock()
}

// runTaskOnChunk holds the slot lock from BeginChunk through the last
// collision so per-chunk task state never interleaves across chunks.
func (e *Engine) runTaskOnChunk(
	ctx context.Context, slot *taskSlot, chunk *fdtable.Chunk, table *fdtable.Table,
) (int, error) {
	slot.mu.Lock()
	defer slot.mu.Unlock()

	slot.task.BeginChunk(table)
	for i := range chunk.Collisions {
		if ctx.Err() != nil {
			return i, nil
		}
		if err := slot.task.ProcessCollision(ctx, &chunk.Collisions[i], table); err != nil {
			return i, err
		}
	}
	return len(chunk.Collisions), nil
}

func (e *Engine) noteTaskError(instance string, err error) {
	e.logger.Error("Task failed on chunk", "task", instance, "error", err)
	if e.metrics != nil {
		class := "invalid"
		switch {
		case errors.IsTransient(err):
			class = "transient"
		case errors.IsFatal(err):
			class = "fatal"
		}
		e.metrics.CoreMetrics().ErrorsTotal.WithLabelValues(instance, class).Inc()
	}
}

func (e *Engine) chunkCount() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chunks
}

func (e *Engine) collisionCount() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.collisions
}

// BuildWriter constructs the configured output writer.
func BuildWriter(cfg yoda.Config, logger *slog.Logger) (Writer, error) {
	return yoda.NewWriter(cfg, logger)
}
