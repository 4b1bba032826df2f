// Package file provides a chunk source reading newline-delimited JSON
// chunks from a local file. It is the offline counterpart of the NATS
// source and the usual entry point for reprocessing derived data.
package file

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"context"
	"log/slog"

	"github.com/c360/femtostream/errors"
	"github.com/c360/femtostream/fdtable"
	"github.com/c360/femtostream/metric"
)

// maxLineSize bounds a single JSON-encoded chunk line.
const maxLineSize = 64 * 1024 * 1024

// Config holds configuration for the file chunk source. Path may name
// a single chunk file or a directory, in which case every *.jsonl file
// in it is read in lexical order.
type Config struct {
	Path       string `json:"path" yaml:"path"`
	BufferSize int    `json:"buffer_size" yaml:"buffer_size"`
}

// Validate implements config validation for the file source
func (c *Config) Validate() error {
	if c.Path == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "path validation")
	}
	if c.BufferSize < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("buffer size %d is negative", c.BufferSize),
			"Config", "Validate", "buffer size validation")
	}
	return nil
}

// DefaultConfig returns sensible defaults for the file source
func DefaultConfig() Config {
	return Config{BufferSize: 4}
}

// Deps holds runtime dependencies for the file source
type Deps struct {
	Config          Config
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// Source reads chunks from a newline-delimited JSON file and delivers
// them on a channel. Malformed lines are counted, logged, and skipped;
// they never terminate the run.
type Source struct {
	path   string
	logger *slog.Logger

	out chan *fdtable.Chunk

	chunksReceived func()

	// Lifecycle management
	shutdown  chan struct{}
	done      chan struct{}
	running   atomic.Bool
	startTime time.Time
	mu        sync.Mutex
	wg        sync.WaitGroup

	malformed atomic.Int64
}

// NewSource creates a file chunk source.
func NewSource(deps Deps) (*Source, error) {
	cfg := deps.Config
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "file-source", "NewSource", "config validation")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "file-source")
	}

	s := &Source{
		path:   cfg.Path,
		logger: logger,
		out:    make(chan *fdtable.Chunk, cfg.BufferSize),
	}

	if deps.MetricsRegistry != nil {
		counter := deps.MetricsRegistry.CoreMetrics().ChunksReceived.WithLabelValues("file")
		s.chunksReceived = counter.Inc
	}

	return s, nil
}

// Chunks returns the delivery channel. The channel is closed when the
// file is exhausted or the source is stopped.
func (s *Source) Chunks() <-chan *fdtable.Chunk {
	return s.out
}

// Malformed returns the number of lines skipped so far.
func (s *Source) Malformed() int64 {
	return s.malformed.Load()
}

// Start resolves the configured path and begins delivering chunks.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return nil // Already running, idempotent
	}

	files, err := s.resolveFiles()
	if err != nil {
		return err
	}

	s.shutdown = make(chan struct{})
	s.done = make(chan struct{})
	s.running.Store(true)
	s.startTime = time.Now()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(s.done)
		defer close(s.out)

		for _, path := range files {
			select {
			case <-ctx.Done():
				return
			case <-s.shutdown:
				return
			default:
			}

			f, err := os.Open(path)
			if err != nil {
				s.logger.Error("Skipping unreadable chunk file", "path", path, "error", err)
				continue
			}
			s.readLoop(ctx, f, path)
			f.Close()
		}
	}()

	return nil
}

// resolveFiles expands a directory path into its *.jsonl files,
// lexically ordered. A plain file path passes through unchanged.
func (s *Source) resolveFiles() ([]string, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "file-source", "Start", "stat path")
	}
	if !info.IsDir() {
		return []string{s.path}, nil
	}

	files, err := filepath.Glob(filepath.Join(s.path, "*.jsonl"))
	if err != nil {
		return nil, errors.WrapInvalid(err, "file-source", "Start", "list chunk files")
	}
	if len(files) == 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("no *.jsonl files in %s", s.path),
			"file-source", "Start", "list chunk files")
	}
	return files, nil
}

func (s *Source) readLoop(ctx context.Context, f *os.File, path string) {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), maxLineSize)

	var line int
	for scanner.Scan() {
		line++

		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		default:
		}

		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		chunk, err := fdtable.DecodeChunk(raw)
		if err != nil {
			s.malformed.Add(1)
			s.logger.Warn("Skipping malformed chunk", "line", line, "error", err)
			continue
		}

		if s.chunksReceived != nil {
			s.chunksReceived()
		}

		select {
		case s.out <- chunk:
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		}
	}

	if err := scanner.Err(); err != nil {
		s.logger.Error("Chunk file read failed", "path", path, "error", err)
		return
	}

	s.logger.Info("Chunk file exhausted",
		"path", path,
		"lines", line,
		"malformed", s.malformed.Load())
}

// Stop stops delivery and waits for the read loop to finish.
func (s *Source) Stop(timeout time.Duration) error {
	if !s.running.Load() {
		return nil
	}
	s.running.Store(false)

	s.mu.Lock()
	if s.shutdown != nil {
		select {
		case <-s.shutdown:
		default:
			close(s.shutdown)
		}
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(
			fmt.Errorf("stop timeout after %v", timeout),
			"file-source", "Stop", "graceful shutdown")
	}
}
