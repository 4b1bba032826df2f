// Package natschunk provides a chunk source subscribed to a NATS
// subject. Each message carries one JSON-encoded chunk; delivery into
// the pipeline is optionally rate limited.
package natschunk

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"golang.org/x/time/rate"

	"github.com/c360/femtostream/errors"
	"github.com/c360/femtostream/fdtable"
	"github.com/c360/femtostream/metric"
	"github.com/c360/femtostream/natsclient"
)

// Config holds configuration for the NATS chunk source.
type Config struct {
	Subject    string  `json:"subject" yaml:"subject"`
	BufferSize int     `json:"buffer_size" yaml:"buffer_size"`
	RatePerSec float64 `json:"rate_per_sec" yaml:"rate_per_sec"` // 0 disables rate limiting
	Burst      int     `json:"burst" yaml:"burst"`
}

// Validate implements config validation for the NATS source
func (c *Config) Validate() error {
	if c.Subject == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "subject validation")
	}
	if c.RatePerSec < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("rate %v is negative", c.RatePerSec),
			"Config", "Validate", "rate validation")
	}
	return nil
}

// DefaultConfig returns sensible defaults for the NATS source
func DefaultConfig() Config {
	return Config{BufferSize: 16, Burst: 1}
}

// Deps holds runtime dependencies for the NATS source
type Deps struct {
	Config          Config
	Client          *natsclient.Client
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
}

// Source subscribes to a chunk subject and delivers decoded chunks on
// a channel. Malformed messages are counted, logged, and dropped.
type Source struct {
	subject string
	client  *natsclient.Client
	logger  *slog.Logger
	limiter *rate.Limiter

	out      chan *fdtable.Chunk
	shutdown chan struct{}

	chunksReceived func()

	running   atomic.Bool
	stopOnce  sync.Once
	closed    bool
	mu        sync.RWMutex
	malformed atomic.Int64
}

// NewSource creates a NATS chunk source.
func NewSource(deps Deps) (*Source, error) {
	cfg := deps.Config
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.Burst == 0 {
		cfg.Burst = DefaultConfig().Burst
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "nats-source", "NewSource", "config validation")
	}
	if deps.Client == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "nats-source", "NewSource", "client validation")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "nats-source")
	}

	s := &Source{
		subject:  cfg.Subject,
		client:   deps.Client,
		logger:   logger,
		out:      make(chan *fdtable.Chunk, cfg.BufferSize),
		shutdown: make(chan struct{}),
	}

	if cfg.RatePerSec > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst)
	}

	if deps.MetricsRegistry != nil {
		counter := deps.MetricsRegistry.CoreMetrics().ChunksReceived.WithLabelValues("nats")
		s.chunksReceived = counter.Inc
	}

	return s, nil
}

// Chunks returns the delivery channel.
func (s *Source) Chunks() <-chan *fdtable.Chunk {
	return s.out
}

// Malformed returns the number of messages dropped so far.
func (s *Source) Malformed() int64 {
	return s.malformed.Load()
}

// Start subscribes to the chunk subject. The client must already be
// connected.
func (s *Source) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return nil // Already running, idempotent
	}

	err := s.client.Subscribe(ctx, s.subject, func(ctx context.Context, data []byte) {
		s.handle(ctx, data)
	})
	if err != nil {
		s.running.Store(false)
		return errors.Wrap(err, "nats-source", "Start", "subscribe "+s.subject)
	}

	s.logger.Info("Subscribed to chunk subject", "subject", s.subject)
	return nil
}

func (s *Source) handle(ctx context.Context, data []byte) {
	if !s.running.Load() {
		return
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
	}

	chunk, err := fdtable.DecodeChunk(data)
	if err != nil {
		s.malformed.Add(1)
		s.logger.Warn("Dropping malformed chunk message", "subject", s.subject, "error", err)
		return
	}

	if s.chunksReceived != nil {
		s.chunksReceived()
	}

	// The send holds the read lock so Stop cannot close the channel
	// mid-delivery; the shutdown case unblocks pending sends.
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	select {
	case s.out <- chunk:
	case <-s.shutdown:
	case <-ctx.Done():
	}
}

// Stop ends delivery and closes the chunk channel. The underlying
// subscription is drained when the client closes.
func (s *Source) Stop(time.Duration) error {
	s.running.Store(false)
	s.stopOnce.Do(func() {
		close(s.shutdown)

		s.mu.Lock()
		s.closed = true
		close(s.out)
		s.mu.Unlock()
	})
	return nil
}
