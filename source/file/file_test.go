package file

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"log/slog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/femtostream/fdtable"
	"github.com/c360/femtostream/metric"
)

const chunkLine = `{"run_id":"r1","collisions":[{"global_index":1,"pos_z":2.5}],` +
	`"particles":[{"global_index":10,"collision_id":1,"type":5,"pt":1.2}]}`

func writeChunkFile(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chunks.jsonl")
	var data []byte
	for _, l := range lines {
		data = append(data, l...)
		data = append(data, '\n')
	}
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func collect(t *testing.T, s *Source) []*fdtable.Chunk {
	t.Helper()
	var chunks []*fdtable.Chunk
	timeout := time.After(5 * time.Second)
	for {
		select {
		case chunk, ok := <-s.Chunks():
			if !ok {
				return chunks
			}
			chunks = append(chunks, chunk)
		case <-timeout:
			t.Fatal("timed out waiting for chunks")
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{Path: "chunks.jsonl"}
	assert.NoError(t, cfg.Validate())

	cfg = Config{}
	assert.Error(t, cfg.Validate())

	cfg = Config{Path: "x", BufferSize: -1}
	assert.Error(t, cfg.Validate())
}

func TestSource_ReadsAllChunks(t *testing.T) {
	path := writeChunkFile(t, chunkLine, chunkLine)

	s, err := NewSource(Deps{
		Config: Config{Path: path},
		Logger: testLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	chunks := collect(t, s)
	require.Len(t, chunks, 2)
	assert.Equal(t, "r1", chunks[0].RunID)
	assert.Len(t, chunks[0].Collisions, 1)
	assert.Len(t, chunks[0].Particles, 1)
	assert.EqualValues(t, 0, s.Malformed())
}

func TestSource_SkipsMalformedLines(t *testing.T) {
	path := writeChunkFile(t,
		chunkLine,
		`{not valid json`,
		`{"collisions":[],"particles":[]}`, // fails validation
		chunkLine,
	)

	s, err := NewSource(Deps{
		Config:          Config{Path: path},
		MetricsRegistry: metric.NewMetricsRegistry(),
		Logger:          testLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	chunks := collect(t, s)
	assert.Len(t, chunks, 2)
	assert.EqualValues(t, 2, s.Malformed())
}

func TestSource_ReadsDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.jsonl", "a.jsonl"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(chunkLine+"\n"), 0o600))
	}
	// Non-matching files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x\n"), 0o600))

	s, err := NewSource(Deps{
		Config: Config{Path: dir},
		Logger: testLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	chunks := collect(t, s)
	assert.Len(t, chunks, 2)
}

func TestSource_EmptyDirectory(t *testing.T) {
	s, err := NewSource(Deps{
		Config: Config{Path: t.TempDir()},
		Logger: testLogger(),
	})
	require.NoError(t, err)
	assert.Error(t, s.Start(context.Background()))
}

func TestSource_MissingFile(t *testing.T) {
	s, err := NewSource(Deps{
		Config: Config{Path: filepath.Join(t.TempDir(), "nope.jsonl")},
		Logger: testLogger(),
	})
	require.NoError(t, err)
	assert.Error(t, s.Start(context.Background()))
}

func TestSource_Stop(t *testing.T) {
	// Unbuffered delivery so the read loop blocks on the send.
	lines := make([]string, 100)
	for i := range lines {
		lines[i] = chunkLine
	}
	path := writeChunkFile(t, lines...)

	s, err := NewSource(Deps{
		Config: Config{Path: path, BufferSize: 1},
		Logger: testLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, s.Stop(5*time.Second))
	// Stop is idempotent.
	require.NoError(t, s.Stop(time.Second))
}
