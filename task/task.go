// Package task defines the analysis-task contract and the factory
// registry the workflow engine builds task instances from.
package task

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/c360/femtostream/fdtable"
	"github.com/c360/femtostream/histbook"
	"github.com/c360/femtostream/metric"
)

// Metadata describes a task instance
type Metadata struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// HealthStatus reports the runtime health of a task instance
type HealthStatus struct {
	Healthy    bool          `json:"healthy"`
	LastCheck  time.Time     `json:"last_check"`
	ErrorCount int           `json:"error_count"`
	Uptime     time.Duration `json:"uptime"`
}

// Task is one analysis step in a workflow. Init books the histogram
// schema and is called exactly once before any data is processed.
// BeginChunk is called once per chunk with the chunk's table view,
// before any ProcessCollision call for that chunk; implementations
// rebuild partitions and reset slice caches there.
//
// ProcessCollision is invoked once per collision with the full
// particle table of the chunk. The error return is reserved for
// framework-level failures; candidate-level inconsistencies are
// handled by skip-and-log and never propagate.
//
// The engine serializes all calls on one task instance; tasks own
// their registries without internal locking.
type Task interface {
	Meta() Metadata
	Init() error
	BeginChunk(table *fdtable.Table)
	ProcessCollision(ctx context.Context, col *fdtable.Collision, table *fdtable.Table) error
	Registries() []*histbook.Registry
	Health() HealthStatus
}

// Dependencies provides all external dependencies needed by tasks.
type Dependencies struct {
	Logger  *slog.Logger            // Structured logger (can be nil, defaults to slog.Default())
	Metrics *metric.MetricsRegistry // Metrics registry for Prometheus (can be nil)
}

// GetLogger returns the configured logger or a default logger if none is provided
func (d *Dependencies) GetLogger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// GetLoggerWithTask returns a logger configured with task context
func (d *Dependencies) GetLoggerWithTask(taskName string) *slog.Logger {
	return d.GetLogger().With("task", taskName)
}

// Factory creates a task instance from raw JSON configuration and
// dependencies. Factories parse their own config and perform no I/O;
// histogram booking happens in Init.
type Factory func(rawConfig json.RawMessage, deps Dependencies) (Task, error)
