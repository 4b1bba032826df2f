// Package yoda writes the end-of-run histogram output: one YODA file
// per registry, with optional PNG renderings of the 1D histograms.
package yoda

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"log/slog"

	"github.com/c360/femtostream/errors"
	"github.com/c360/femtostream/histbook"
)

// Config holds configuration for the YODA writer.
type Config struct {
	Directory  string `json:"directory" yaml:"directory"`
	FilePrefix string `json:"file_prefix" yaml:"file_prefix"`
	Plots      bool   `json:"plots" yaml:"plots"`
}

// Validate implements config validation for the writer
func (c *Config) Validate() error {
	if c.Directory == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "directory validation")
	}
	if strings.ContainsAny(c.FilePrefix, "/\\") {
		return errors.WrapInvalid(
			fmt.Errorf("file prefix %q contains path separators", c.FilePrefix),
			"Config", "Validate", "file prefix validation")
	}
	return nil
}

// DefaultConfig returns sensible defaults for the writer
func DefaultConfig() Config {
	return Config{Directory: "output", FilePrefix: "AnalysisResults"}
}

// Writer persists histogram registries at the end of a run.
type Writer struct {
	cfg    Config
	logger *slog.Logger
}

// NewWriter creates a YODA output writer.
func NewWriter(cfg Config, logger *slog.Logger) (*Writer, error) {
	if cfg.Directory == "" {
		cfg.Directory = DefaultConfig().Directory
	}
	if cfg.FilePrefix == "" {
		cfg.FilePrefix = DefaultConfig().FilePrefix
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "Writer", "NewWriter", "config validation")
	}
	if logger == nil {
		logger = slog.Default().With("component", "yoda-writer")
	}
	return &Writer{cfg: cfg, logger: logger}, nil
}

// Write renders every registry to
// <directory>/<prefix>_<registry>.yoda and, when plots are enabled,
// saves PNGs of the 1D histograms alongside.
func (w *Writer) Write(registries []*histbook.Registry) error {
	if err := os.MkdirAll(w.cfg.Directory, 0o755); err != nil {
		return errors.WrapTransient(err, "Writer", "Write", "create output directory")
	}

	for _, reg := range registries {
		path := filepath.Join(w.cfg.Directory,
			fmt.Sprintf("%s_%s.yoda", w.cfg.FilePrefix, reg.Name()))

		if err := w.writeRegistry(reg, path); err != nil {
			return err
		}

		w.logger.Info("Wrote histogram output",
			"registry", reg.Name(),
			"path", path,
			"histograms", len(reg.Paths()))

		if w.cfg.Plots {
			if err := reg.SavePlots(w.cfg.Directory); err != nil {
				// Plots are a convenience; the YODA file is the record.
				w.logger.Warn("Failed to save plots", "registry", reg.Name(), "error", err)
			}
		}
	}

	return nil
}

func (w *Writer) writeRegistry(reg *histbook.Registry, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.WrapTransient(err, "Writer", "writeRegistry", "create "+path)
	}

	if err := reg.WriteYODA(f); err != nil {
		f.Close()
		return errors.Wrap(err, "Writer", "writeRegistry", "render "+reg.Name())
	}

	if err := f.Close(); err != nil {
		return errors.WrapTransient(err, "Writer", "writeRegistry", "close "+path)
	}
	return nil
}
