package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const yamlConfig = `
version: "1.0.0"
platform:
  org: alice
  id: qa-node-1
source:
  type: file
  file:
    path: chunks.jsonl
    buffer_size: 8
output:
  directory: results
  file_prefix: AnalysisResults
  plots: true
workers: 2
tasks:
  debug-phi-main:
    name: debug-phi
    enabled: true
    config:
      enable_pid_cuts: true
`

const jsonConfig = `{
  "version": "1.0.0",
  "platform": {"org": "alice", "id": "qa-node-1"},
  "nats": {"url": "nats://localhost:4222", "timeout_sec": 5},
  "source": {"type": "nats", "nats": {"subject": "qa.chunks", "rate_per_sec": 10}},
  "output": {"directory": "results"},
  "tasks": {
    "debug-phi-main": {"name": "debug-phi", "enabled": true}
  }
}`

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "pipeline.yaml", yamlConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "alice", cfg.Platform.Org)
	assert.Equal(t, SourceFile, cfg.Source.Type)
	assert.Equal(t, "chunks.jsonl", cfg.Source.File.Path)
	assert.Equal(t, 8, cfg.Source.File.BufferSize)
	assert.True(t, cfg.Output.Plots)
	assert.Equal(t, 2, cfg.Workers)

	tc, ok := cfg.Tasks["debug-phi-main"]
	require.True(t, ok)
	assert.Equal(t, "debug-phi", tc.Name)
	assert.True(t, tc.Enabled)
	assert.JSONEq(t, `{"enable_pid_cuts": true}`, string(tc.Config))
}

func TestLoad_JSON(t *testing.T) {
	path := writeConfig(t, "pipeline.json", jsonConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, SourceNATS, cfg.Source.Type)
	assert.Equal(t, "qa.chunks", cfg.Source.NATS.Subject)
	assert.InDelta(t, 10, cfg.Source.NATS.RatePerSec, 1e-9)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.EqualValues(t, 5e9, cfg.NATS.Timeout())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeConfig(t, "broken.yaml", "tasks: [not: a map")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.Source.File.Path = "chunks.jsonl"
		cfg.Tasks = map[string]TaskConfig{
			"debug-phi-main": {Name: "debug-phi", Enabled: true},
		}
		return cfg
	}

	assert.NoError(t, base().Validate())

	cfg := base()
	cfg.Source.Type = "kafka"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Source.Type = SourceNATS
	cfg.Source.NATS.Subject = "qa.chunks"
	assert.Error(t, cfg.Validate()) // nats source without nats url

	cfg = base()
	cfg.Tasks["broken"] = TaskConfig{Enabled: true}
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Tasks = map[string]TaskConfig{"off": {Name: "debug-phi"}}
	assert.Error(t, cfg.Validate()) // nothing enabled

	cfg = base()
	cfg.Workers = -1
	assert.Error(t, cfg.Validate())
}

func TestEnabledTasks(t *testing.T) {
	cfg := Default()
	cfg.Tasks = map[string]TaskConfig{
		"on":  {Name: "debug-phi", Enabled: true},
		"off": {Name: "debug-phi"},
	}

	enabled := cfg.EnabledTasks()
	require.Len(t, enabled, 1)
	assert.Contains(t, enabled, "on")
}
