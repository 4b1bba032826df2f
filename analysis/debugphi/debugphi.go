// Package debugphi implements the Phi-meson QA debug task: it scans
// the Phi-tagged rows of each collision, validates the parent/child
// linkage, and fills diagnostic histograms for the candidate and its
// two decay children.
package debugphi

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/c360/femtostream/errors"
	"github.com/c360/femtostream/fdtable"
	"github.com/c360/femtostream/histbook"
	"github.com/c360/femtostream/qa"
	"github.com/c360/femtostream/task"
)

// momentumThreshold above which the PID check switches from TPC-only
// to combined TPC+TOF. The debug task keeps the producer's effective
// "never switch" setting.
const momentumThreshold = 999.0

// PhiCuts configures selection of the Phi candidate itself.
type PhiCuts struct {
	PDGCode      int               `json:"pdg_code"`
	Cut          uint32            `json:"cut"`
	FitVarBins   histbook.AxisSpec `json:"fit_var_bins"`
	FitVarPtBins histbook.AxisSpec `json:"fit_var_pt_bins"`
}

// ChildCuts configures selection of the two decay children.
type ChildCuts struct {
	PDGCodePos      int               `json:"pdg_code_pos"`
	PDGCodeNeg      int               `json:"pdg_code_neg"`
	CutPos          uint32            `json:"cut_pos"`
	CutNeg          uint32            `json:"cut_neg"`
	PIDNSigmaMaxPos float64           `json:"pid_nsigma_max_pos"`
	PIDNSigmaMaxNeg float64           `json:"pid_nsigma_max_neg"`
	IndexPos        int               `json:"index_pos"`
	IndexNeg        int               `json:"index_neg"`
	PIDNSigmaMax    []float64         `json:"pid_nsigma_max"`
	NSpecies        int               `json:"n_species"`
	FitVarBins      histbook.AxisSpec `json:"fit_var_bins"`
	FitVarPtBins    histbook.AxisSpec `json:"fit_var_pt_bins"`
}

// Config holds configuration for the Phi QA debug task. The
// selection-bit and PID checks are off by default: the debug task is
// intentionally looser than the production selection, and enabling
// them is an explicit configuration decision.
type Config struct {
	Phi                 PhiCuts   `json:"phi"`
	Child               ChildCuts `json:"child"`
	EnableSelectionCuts bool      `json:"enable_selection_cuts"`
	EnablePIDCuts       bool      `json:"enable_pid_cuts"`
}

// DefaultConfig returns the task defaults, matching the values baked
// into the upstream derived-data producer.
func DefaultConfig() Config {
	return Config{
		Phi: PhiCuts{
			PDGCode:      3122,
			Cut:          338,
			FitVarBins:   histbook.AxisSpec{Bins: 300, Min: 0.95, Max: 1.0},
			FitVarPtBins: histbook.AxisSpec{Bins: 20, Min: 0.5, Max: 4.05},
		},
		Child: ChildCuts{
			PDGCodePos:      2212,
			PDGCodeNeg:      211,
			CutPos:          150,
			CutNeg:          149,
			PIDNSigmaMaxPos: 3.0,
			PIDNSigmaMaxNeg: 3.0,
			IndexPos:        1,
			IndexNeg:        0,
			PIDNSigmaMax:    []float64{4.0, 3.0},
			NSpecies:        2,
			FitVarBins:      histbook.AxisSpec{Bins: 300, Min: -0.15, Max: 0.15},
			FitVarPtBins:    histbook.AxisSpec{Bins: 20, Min: 0.5, Max: 4.05},
		},
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	for _, axis := range []histbook.AxisSpec{
		c.Phi.FitVarBins, c.Phi.FitVarPtBins,
		c.Child.FitVarBins, c.Child.FitVarPtBins,
	} {
		if err := axis.Validate(); err != nil {
			return errors.Wrap(err, "Config", "Validate", "axis validation")
		}
	}
	if c.EnablePIDCuts && len(c.Child.PIDNSigmaMax) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"pid cuts enabled without nsigma thresholds")
	}
	return nil
}

// Task fills QA histograms for Phi candidates and their children.
type Task struct {
	name   string
	cfg    Config
	logger *slog.Logger

	eventRegistry *histbook.Registry
	phiRegistry   *histbook.Registry

	eventHisto    qa.EventHisto
	phiHistos     *qa.ParticleHisto
	posChildHisto *qa.ParticleHisto
	negChildHisto *qa.ParticleHisto

	partition *fdtable.Partition
	cache     *fdtable.SliceCache

	metrics   *phiMetrics
	startTime time.Time
	errCount  int64
}

// NewTask creates the Phi QA debug task from configuration.
func NewTask(rawConfig json.RawMessage, deps task.Dependencies) (task.Task, error) {
	cfg := DefaultConfig()
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, errors.WrapInvalid(err, "DebugPhiTask", "NewTask", "config unmarshal")
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "DebugPhiTask", "NewTask", "config validation")
	}

	metrics, err := newPhiMetrics(deps.Metrics, "debug-phi")
	if err != nil {
		deps.GetLogger().Error("Failed to initialize debug-phi metrics", "error", err)
		metrics = nil // Continue without metrics
	}

	return &Task{
		name:          "debug-phi",
		cfg:           cfg,
		logger:        deps.GetLoggerWithTask("debug-phi"),
		eventRegistry: histbook.New("Event"),
		phiRegistry:   histbook.New("FullPhiQA"),
		phiHistos:     qa.NewParticleHisto("Phi"),
		posChildHisto: qa.NewParticleHisto("PhiChild/pos"),
		negChildHisto: qa.NewParticleHisto("PhiChild/neg"),
		cache:         fdtable.NewSliceCache(),
		metrics:       metrics,
		startTime:     time.Now(),
	}, nil
}

// Meta returns metadata describing this task.
func (t *Task) Meta() task.Metadata {
	return task.Metadata{
		Name:        t.name,
		Type:        "analysis",
		Description: "QA histograms for Phi candidates and their decay children",
		Version:     "0.1.0",
	}
}

// Init books the histogram schema. No histograms are filled here.
func (t *Task) Init() error {
	if err := t.eventHisto.Init(t.eventRegistry); err != nil {
		return errors.Wrap(err, "DebugPhiTask", "Init", "event histograms")
	}
	if err := t.posChildHisto.Init(
		t.phiRegistry, t.cfg.Child.FitVarPtBins, t.cfg.Child.FitVarBins,
		false, t.cfg.Child.PDGCodePos, true); err != nil {
		return errors.Wrap(err, "DebugPhiTask", "Init", "positive child histograms")
	}
	if err := t.negChildHisto.Init(
		t.phiRegistry, t.cfg.Child.FitVarPtBins, t.cfg.Child.FitVarBins,
		false, t.cfg.Child.PDGCodeNeg, true); err != nil {
		return errors.Wrap(err, "DebugPhiTask", "Init", "negative child histograms")
	}
	if err := t.phiHistos.Init(
		t.phiRegistry, t.cfg.Phi.FitVarPtBins, t.cfg.Phi.FitVarBins,
		false, t.cfg.Phi.PDGCode, true); err != nil {
		return errors.Wrap(err, "DebugPhiTask", "Init", "phi histograms")
	}

	t.logger.Info("Booked Phi QA histogram schema",
		"pdg_phi", t.cfg.Phi.PDGCode,
		"pdg_child_pos", t.cfg.Child.PDGCodePos,
		"pdg_child_neg", t.cfg.Child.PDGCodeNeg,
		"selection_cuts", t.cfg.EnableSelectionCuts,
		"pid_cuts", t.cfg.EnablePIDCuts)

	return nil
}

// BeginChunk rebuilds the Phi partition for a new table and drops
// cached per-collision slices.
func (t *Task) BeginChunk(table *fdtable.Table) {
	t.partition = table.Partition(func(p *fdtable.Particle) bool {
		return p.Type == fdtable.ParticlePhi
	})
	t.cache.Reset()
}

// ProcessCollision fills QA histograms for one collision. The event
// histograms are filled unconditionally; candidate-level
// inconsistencies are logged and skipped without failing the call.
func (t *Task) ProcessCollision(_ context.Context, col *fdtable.Collision, table *fdtable.Table) error {
	if t.partition == nil {
		return errors.WrapFatal(errors.ErrNotStarted, "DebugPhiTask", "ProcessCollision", "chunk not begun")
	}

	group := t.cache.SliceByCached(t.partition, col.GlobalIndex)

	t.eventHisto.FillQA(col)
	t.metrics.recordCollision(t.name)

	for _, entry := range group {
		t.processCandidate(entry, table)
	}

	return nil
}

// processCandidate validates one Phi candidate's child linkage and
// fills the particle histograms when it passes.
func (t *Task) processCandidate(entry fdtable.Entry, table *fdtable.Table) {
	part := entry.Part

	if !part.HasChildren() {
		t.metrics.recordCandidate(t.name, skipNoChildren)
		return
	}
	if len(part.ChildIDs) < 2 {
		t.warnMismatch(part, "candidate records fewer than two children")
		return
	}

	posChild, _, okPos := table.ByGlobalIndex(part.ChildIDs[0])
	negChild, _, okNeg := table.ByGlobalIndex(part.ChildIDs[1])
	if !okPos || !okNeg {
		t.warnMismatch(part, "recorded child index not present in table")
		return
	}

	// Consistency check against the upstream storage convention:
	// children sit at the two rows immediately preceding the parent.
	adjPos := table.At(entry.Pos - 2)
	adjNeg := table.At(entry.Pos - 1)
	if adjPos == nil || adjNeg == nil ||
		adjPos.GlobalIndex != part.ChildIDs[0] || adjNeg.GlobalIndex != part.ChildIDs[1] {
		t.warnMismatch(part, "indices of Phi children do not match")
		return
	}

	if posChild.Type != fdtable.ParticlePhiChild || negChild.Type != fdtable.ParticlePhiChild {
		t.metrics.recordCandidate(t.name, skipType)
		return
	}

	if t.cfg.EnableSelectionCuts &&
		(posChild.Cut&t.cfg.Child.CutPos != t.cfg.Child.CutPos ||
			negChild.Cut&t.cfg.Child.CutNeg != t.cfg.Child.CutNeg) {
		t.metrics.recordCandidate(t.name, skipCut)
		return
	}

	if t.cfg.EnablePIDCuts &&
		(!qa.FullPIDSelected(posChild.PIDCut, posChild.P, momentumThreshold,
			t.cfg.Child.IndexPos, t.cfg.Child.NSpecies, t.cfg.Child.PIDNSigmaMax, t.cfg.Child.PIDNSigmaMaxPos) ||
			!qa.FullPIDSelected(negChild.PIDCut, negChild.P, momentumThreshold,
				t.cfg.Child.IndexNeg, t.cfg.Child.NSpecies, t.cfg.Child.PIDNSigmaMax, t.cfg.Child.PIDNSigmaMaxNeg)) {
		t.metrics.recordCandidate(t.name, skipPID)
		return
	}

	t.phiHistos.FillQA(part)
	t.posChildHisto.FillQA(posChild)
	t.negChildHisto.FillQA(negChild)
	t.metrics.recordCandidate(t.name, statusFilled)
}

func (t *Task) warnMismatch(part *fdtable.Particle, msg string) {
	atomic.AddInt64(&t.errCount, 1)
	t.metrics.recordCandidate(t.name, skipIndexMismatch)
	t.logger.Warn(msg,
		"candidate", part.GlobalIndex,
		"collision", part.CollisionID,
		"child_ids", part.ChildIDs)
}

// Registries returns the task's histogram registries for output.
func (t *Task) Registries() []*histbook.Registry {
	return []*histbook.Registry{t.eventRegistry, t.phiRegistry}
}

// Health returns the current health status of this task.
func (t *Task) Health() task.HealthStatus {
	return task.HealthStatus{
		Healthy:    true,
		LastCheck:  time.Now(),
		ErrorCount: int(atomic.LoadInt64(&t.errCount)),
		Uptime:     time.Since(t.startTime),
	}
}

// Register registers the Phi QA debug task with the given registry.
func Register(registry *task.Registry) error {
	return registry.RegisterWithConfig(task.RegistrationConfig{
		Name:        "debug-phi",
		Factory:     NewTask,
		Schema:      configSchema,
		Description: "QA histograms for Phi candidates and their decay children",
		Version:     "0.1.0",
	})
}
