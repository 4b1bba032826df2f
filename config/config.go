// Package config loads and validates the pipeline configuration:
// platform identity, the chunk source, the output writer, and the set
// of analysis task instances.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/femtostream/errors"
	"github.com/c360/femtostream/output/yoda"
	sourcefile "github.com/c360/femtostream/source/file"
	"github.com/c360/femtostream/source/natschunk"
)

// Source type constants
const (
	SourceFile = "file"
	SourceNATS = "nats"
)

// PlatformConfig identifies the deployment running this pipeline.
type PlatformConfig struct {
	Org         string `json:"org" yaml:"org"`
	ID          string `json:"id" yaml:"id"`
	Environment string `json:"environment,omitempty" yaml:"environment,omitempty"`
}

// NATSConfig holds the connection settings for the NATS transport.
// Durations are in seconds to keep YAML and JSON forms identical.
type NATSConfig struct {
	URL              string `json:"url" yaml:"url"`
	Name             string `json:"name,omitempty" yaml:"name,omitempty"`
	MaxReconnects    int    `json:"max_reconnects,omitempty" yaml:"max_reconnects,omitempty"`
	ReconnectWaitSec int    `json:"reconnect_wait_sec,omitempty" yaml:"reconnect_wait_sec,omitempty"`
	TimeoutSec       int    `json:"timeout_sec,omitempty" yaml:"timeout_sec,omitempty"`
}

// ReconnectWait returns the reconnect wait as a duration, zero when
// unset.
func (n NATSConfig) ReconnectWait() time.Duration {
	return time.Duration(n.ReconnectWaitSec) * time.Second
}

// Timeout returns the connection timeout as a duration, zero when
// unset.
func (n NATSConfig) Timeout() time.Duration {
	return time.Duration(n.TimeoutSec) * time.Second
}

// SourceConfig selects and configures the chunk source.
type SourceConfig struct {
	Type string            `json:"type" yaml:"type"`
	File sourcefile.Config `json:"file,omitempty" yaml:"file,omitempty"`
	NATS natschunk.Config  `json:"nats,omitempty" yaml:"nats,omitempty"`
}

// TaskConfig configures one task instance. The map key in
// Config.Tasks is the instance name; Name selects the factory.
type TaskConfig struct {
	Name    string          `json:"name" yaml:"name"`
	Enabled bool            `json:"enabled" yaml:"enabled"`
	Config  json.RawMessage `json:"config,omitempty" yaml:"config,omitempty"`
}

// Config is the complete pipeline configuration.
type Config struct {
	Version     string                `json:"version" yaml:"version"`
	Platform    PlatformConfig        `json:"platform" yaml:"platform"`
	NATS        NATSConfig            `json:"nats,omitempty" yaml:"nats,omitempty"`
	Source      SourceConfig          `json:"source" yaml:"source"`
	Output      yoda.Config           `json:"output" yaml:"output"`
	MetricsAddr string                `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty"`
	Workers     int                   `json:"workers,omitempty" yaml:"workers,omitempty"`
	Tasks       map[string]TaskConfig `json:"tasks" yaml:"tasks"`
}

// Default returns a runnable configuration with the file source and
// the standard output layout.
func Default() *Config {
	return &Config{
		Version: "1.0.0",
		Source:  SourceConfig{Type: SourceFile, File: sourcefile.DefaultConfig()},
		Output:  yoda.DefaultConfig(),
		Workers: 1,
		Tasks:   map[string]TaskConfig{},
	}
}

// Load reads a configuration file, decoding by extension: .yaml and
// .yml as YAML, anything else as JSON.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", "read "+path)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Config", "Load", "yaml decode")
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Config", "Load", "json decode")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks structural validity of the configuration. Task
// payloads are validated separately against their factory schemas.
func (c *Config) Validate() error {
	switch c.Source.Type {
	case SourceFile:
		if err := c.Source.File.Validate(); err != nil {
			return errors.Wrap(err, "Config", "Validate", "file source")
		}
	case SourceNATS:
		if err := c.Source.NATS.Validate(); err != nil {
			return errors.Wrap(err, "Config", "Validate", "nats source")
		}
		if c.NATS.URL == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "nats url for nats source")
		}
	default:
		return errors.WrapInvalid(
			fmt.Errorf("unknown source type %q", c.Source.Type),
			"Config", "Validate", "source type")
	}

	if err := c.Output.Validate(); err != nil {
		return errors.Wrap(err, "Config", "Validate", "output")
	}

	if c.Workers < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("workers %d is negative", c.Workers),
			"Config", "Validate", "worker count")
	}

	for instance, tc := range c.Tasks {
		if tc.Name == "" {
			return errors.WrapInvalid(
				fmt.Errorf("task instance %q has no factory name", instance),
				"Config", "Validate", "task name")
		}
	}

	if len(c.EnabledTasks()) == 0 {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "no enabled tasks")
	}

	return nil
}

// UnmarshalYAML converts the task's free-form config mapping to JSON
// so one payload representation feeds schema validation and the task
// factories.
func (t *TaskConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Name    string         `yaml:"name"`
		Enabled bool           `yaml:"enabled"`
		Config  map[string]any `yaml:"config"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	t.Name = raw.Name
	t.Enabled = raw.Enabled
	if raw.Config != nil {
		data, err := json.Marshal(raw.Config)
		if err != nil {
			return err
		}
		t.Config = data
	}
	return nil
}

// EnabledTasks returns the enabled task instances.
func (c *Config) EnabledTasks() map[string]TaskConfig {
	enabled := make(map[string]TaskConfig)
	for instance, tc := range c.Tasks {
		if tc.Enabled {
			enabled[instance] = tc
		}
	}
	return enabled
}
