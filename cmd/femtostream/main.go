// Package main implements the femtostream entry point: a pipeline
// that reads derived femtoscopy candidate chunks, runs the configured
// QA analysis tasks over every collision, and writes histogram output
// at the end of the run.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/c360/femtostream/analysis/debugphi"
	"github.com/c360/femtostream/config"
	"github.com/c360/femtostream/metric"
	"github.com/c360/femtostream/natsclient"
	sourcefile "github.com/c360/femtostream/source/file"
	"github.com/c360/femtostream/source/natschunk"
	"github.com/c360/femtostream/task"
	"github.com/c360/femtostream/workflow"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "femtostream"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s (build %s)\n", appName, Version, BuildTime)
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cliCfg.Validate {
		registry := buildTaskRegistry()
		violations := config.ValidateTaskConfigs(cfg, registry, logger)
		if err := config.ValidationErrorsToError(violations); err != nil {
			return err
		}
		logger.Info("Configuration is valid", "path", cliCfg.ConfigPath)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting femtostream",
		"version", Version,
		"config", cliCfg.ConfigPath,
		"source", cfg.Source.Type)

	metricsRegistry := metric.NewMetricsRegistry()

	writer, err := workflow.BuildWriter(cfg.Output, logger.With("component", "yoda-writer"))
	if err != nil {
		return fmt.Errorf("build writer: %w", err)
	}

	engine := workflow.New(workflow.Deps{
		Logger:  logger.With("component", "engine"),
		Metrics: metricsRegistry,
		Writer:  writer,
		Workers: cfg.Workers,
	})

	deps := task.Dependencies{Logger: logger, Metrics: metricsRegistry}
	if err := engine.CreateTasks(cfg, buildTaskRegistry(), deps); err != nil {
		return fmt.Errorf("create tasks: %w", err)
	}

	src, cleanup, err := buildSource(ctx, cfg, metricsRegistry, logger, cliCfg.ShutdownTimeout)
	if err != nil {
		return fmt.Errorf("build source: %w", err)
	}
	defer cleanup()

	metricsAddr := cliCfg.MetricsAddr
	if metricsAddr == "" {
		metricsAddr = cfg.MetricsAddr
	}

	g, gctx := errgroup.WithContext(ctx)

	// The metrics endpoint lives exactly as long as the run.
	mctx, mcancel := context.WithCancel(gctx)
	defer mcancel()

	g.Go(func() error {
		defer mcancel()
		return engine.Run(gctx, src)
	})

	if metricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(mctx, metricsAddr, metricsRegistry, logger)
		})
	}

	return g.Wait()
}

// buildTaskRegistry registers all known task factories.
func buildTaskRegistry() *task.Registry {
	registry := task.NewRegistry()
	if err := debugphi.Register(registry); err != nil {
		// Registration of built-in factories only fails on programmer error.
		panic(err)
	}
	return registry
}

type chunkSource interface {
	workflow.ChunkSource
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
}

// buildSource creates and starts the configured chunk source. The
// returned cleanup stops the source and, for NATS, closes the client.
func buildSource(
	ctx context.Context,
	cfg *config.Config,
	metricsRegistry *metric.MetricsRegistry,
	logger *slog.Logger,
	shutdownTimeout time.Duration,
) (workflow.ChunkSource, func(), error) {
	switch cfg.Source.Type {
	case config.SourceFile:
		src, err := sourcefile.NewSource(sourcefile.Deps{
			Config:          cfg.Source.File,
			MetricsRegistry: metricsRegistry,
			Logger:          logger.With("component", "file-source"),
		})
		if err != nil {
			return nil, nil, err
		}
		if err := src.Start(ctx); err != nil {
			return nil, nil, err
		}
		return src, func() { _ = src.Stop(shutdownTimeout) }, nil

	case config.SourceNATS:
		opts := []natsclient.ClientOption{
			natsclient.WithLogger(logger.With("component", "nats")),
			natsclient.WithMetrics(metricsRegistry),
		}
		if cfg.NATS.Name != "" {
			opts = append(opts, natsclient.WithName(cfg.NATS.Name))
		}
		if cfg.NATS.MaxReconnects != 0 {
			opts = append(opts, natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects))
		}
		if cfg.NATS.ReconnectWaitSec > 0 {
			opts = append(opts, natsclient.WithReconnectWait(cfg.NATS.ReconnectWait()))
		}
		if cfg.NATS.TimeoutSec > 0 {
			opts = append(opts, natsclient.WithTimeout(cfg.NATS.Timeout()))
		}

		client, err := natsclient.NewClient(cfg.NATS.URL, opts...)
		if err != nil {
			return nil, nil, err
		}
		if err := client.Connect(ctx); err != nil {
			return nil, nil, err
		}

		src, err := natschunk.NewSource(natschunk.Deps{
			Config:          cfg.Source.NATS,
			Client:          client,
			MetricsRegistry: metricsRegistry,
			Logger:          logger.With("component", "nats-source"),
		})
		if err != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = client.Close(closeCtx)
			return nil, nil, err
		}
		if err := src.Start(ctx); err != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = client.Close(closeCtx)
			return nil, nil, err
		}

		cleanup := func() {
			_ = src.Stop(shutdownTimeout)
			closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = client.Close(closeCtx)
		}
		return src, cleanup, nil

	default:
		return nil, nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
	}
}

// serveMetrics exposes the Prometheus endpoint until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, registry *metric.MetricsRegistry, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Metrics endpoint listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	}
}
