package workflow

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"log/slog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/femtostream/analysis/debugphi"
	"github.com/c360/femtostream/config"
	"github.com/c360/femtostream/fdtable"
	"github.com/c360/femtostream/histbook"
	"github.com/c360/femtostream/metric"
	"github.com/c360/femtostream/task"
)

type stubSource struct {
	ch chan *fdtable.Chunk
}

func newStubSource(chunks ...*fdtable.Chunk) *stubSource {
	s := &stubSource{ch: make(chan *fdtable.Chunk, len(chunks))}
	for _, c := range chunks {
		s.ch <- c
	}
	close(s.ch)
	return s
}

func (s *stubSource) Chunks() <-chan *fdtable.Chunk { return s.ch }

type captureWriter struct {
	registries []*histbook.Registry
	calls      int
}

func (w *captureWriter) Write(regs []*histbook.Registry) error {
	w.registries = regs
	w.calls++
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func phiChunk(collisionID int64, base int64) *fdtable.Chunk {
	return &fdtable.Chunk{
		Collisions: []fdtable.Collision{
			{GlobalIndex: collisionID, PosZ: 1.0, MultV0M: 50, MultNtr: 20},
		},
		Particles: []fdtable.Particle{
			{GlobalIndex: base, CollisionID: collisionID, Type: fdtable.ParticlePhiChild, Pt: 1.1},
			{GlobalIndex: base + 1, CollisionID: collisionID, Type: fdtable.ParticlePhiChild, Pt: 0.8},
			{GlobalIndex: base + 2, CollisionID: collisionID, Type: fdtable.ParticlePhi,
				Pt: 1.9, TempFitVar: 0.97, ChildIDs: []int64{base, base + 1}},
		},
	}
}

func phiConfig() *config.Config {
	cfg := config.Default()
	cfg.Source.File.Path = "unused.jsonl"
	cfg.Tasks = map[string]config.TaskConfig{
		"debug-phi-main": {Name: "debug-phi", Enabled: true},
	}
	return cfg
}

func newPhiRegistry(t *testing.T) *task.Registry {
	t.Helper()
	reg := task.NewRegistry()
	require.NoError(t, debugphi.Register(reg))
	return reg
}

func entriesOf(t *testing.T, regs []*histbook.Registry, name, path string) int64 {
	t.Helper()
	for _, reg := range regs {
		if reg.Name() == name {
			n, err := reg.Entries(path)
			require.NoError(t, err)
			return n
		}
	}
	t.Fatalf("registry %q not found", name)
	return 0
}

func TestEngine_RunEndToEnd(t *testing.T) {
	writer := &captureWriter{}
	engine := New(Deps{
		Logger:  testLogger(),
		Metrics: metric.NewMetricsRegistry(),
		Writer:  writer,
	})

	deps := task.Dependencies{Logger: testLogger()}
	require.NoError(t, engine.CreateTasks(phiConfig(), newPhiRegistry(t), deps))

	src := newStubSource(phiChunk(1, 10), phiChunk(2, 20), phiChunk(3, 30))
	require.NoError(t, engine.Run(context.Background(), src))

	require.Equal(t, 1, writer.calls)
	assert.EqualValues(t, 3, entriesOf(t, writer.registries, "Event", "Event/zvtx"))
	assert.EqualValues(t, 3, entriesOf(t, writer.registries, "FullPhiQA", "Phi/hPt"))
	assert.EqualValues(t, 3, entriesOf(t, writer.registries, "FullPhiQA", "PhiChild/pos/hPt"))
	assert.EqualValues(t, 3, entriesOf(t, writer.registries, "FullPhiQA", "PhiChild/neg/hPt"))
	assert.EqualValues(t, 3, engine.chunkCount())
	assert.EqualValues(t, 3, engine.collisionCount())
}

func TestEngine_RunParallelWorkers(t *testing.T) {
	writer := &captureWriter{}
	engine := New(Deps{Logger: testLogger(), Writer: writer, Workers: 4})

	deps := task.Dependencies{Logger: testLogger()}
	require.NoError(t, engine.CreateTasks(phiConfig(), newPhiRegistry(t), deps))

	chunks := make([]*fdtable.Chunk, 20)
	for i := range chunks {
		chunks[i] = phiChunk(int64(i+1), int64((i+1)*100))
	}
	require.NoError(t, engine.Run(context.Background(), newStubSource(chunks...)))

	assert.EqualValues(t, 20, entriesOf(t, writer.registries, "FullPhiQA", "Phi/hPt"))
	assert.EqualValues(t, 20, engine.chunkCount())
}

func TestEngine_RunWithoutTasks(t *testing.T) {
	engine := New(Deps{Logger: testLogger()})
	err := engine.Run(context.Background(), newStubSource())
	assert.Error(t, err)
}

func TestEngine_CreateTasksSchemaViolation(t *testing.T) {
	engine := New(Deps{Logger: testLogger()})

	cfg := phiConfig()
	cfg.Tasks["debug-phi-main"] = config.TaskConfig{
		Name:    "debug-phi",
		Enabled: true,
		Config:  json.RawMessage(`{"enable_pid_cuts": "not a bool"}`),
	}

	err := engine.CreateTasks(cfg, newPhiRegistry(t), task.Dependencies{Logger: testLogger()})
	assert.Error(t, err)
}

func TestEngine_CreateTasksUnknownFactory(t *testing.T) {
	engine := New(Deps{Logger: testLogger()})

	cfg := phiConfig()
	cfg.Tasks["mystery"] = config.TaskConfig{Name: "mystery-task", Enabled: true}

	err := engine.CreateTasks(cfg, newPhiRegistry(t), task.Dependencies{Logger: testLogger()})
	assert.Error(t, err)
}

func TestEngine_RunCancelled(t *testing.T) {
	writer := &captureWriter{}
	engine := New(Deps{Logger: testLogger(), Writer: writer})

	deps := task.Dependencies{Logger: testLogger()}
	require.NoError(t, engine.CreateTasks(phiConfig(), newPhiRegistry(t), deps))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// An open, never-closing source plus a cancelled context must
	// still terminate and write what was processed.
	src := &stubSource{ch: make(chan *fdtable.Chunk)}
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx, src) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop on cancellation")
	}
	assert.Equal(t, 1, writer.calls)
}
