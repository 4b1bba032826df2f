package config

import (
	"encoding/json"
	"io"
	"testing"

	"log/slog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSchemas map[string]string

func (s stubSchemas) Schema(name string) (string, error) {
	schema, ok := s[name]
	if !ok {
		return "", assert.AnError
	}
	return schema, nil
}

const boolSchema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {"enable_pid_cuts": {"type": "boolean"}}
}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func configWithTask(payload string) *Config {
	cfg := Default()
	cfg.Tasks = map[string]TaskConfig{
		"debug-phi-main": {
			Name:    "debug-phi",
			Enabled: true,
			Config:  json.RawMessage(payload),
		},
	}
	return cfg
}

func TestValidateTaskConfigs_Valid(t *testing.T) {
	cfg := configWithTask(`{"enable_pid_cuts": true}`)
	schemas := stubSchemas{"debug-phi": boolSchema}

	violations := ValidateTaskConfigs(cfg, schemas, testLogger())
	assert.Empty(t, violations)
	assert.NoError(t, ValidationErrorsToError(violations))
}

func TestValidateTaskConfigs_SchemaViolation(t *testing.T) {
	cfg := configWithTask(`{"enable_pid_cuts": "yes"}`)
	schemas := stubSchemas{"debug-phi": boolSchema}

	violations := ValidateTaskConfigs(cfg, schemas, testLogger())
	require.NotEmpty(t, violations)
	assert.Equal(t, "debug-phi-main", violations[0].Instance)
	assert.Error(t, ValidationErrorsToError(violations))
}

func TestValidateTaskConfigs_UnknownProperty(t *testing.T) {
	cfg := configWithTask(`{"no_such_option": 1}`)
	schemas := stubSchemas{"debug-phi": boolSchema}

	violations := ValidateTaskConfigs(cfg, schemas, testLogger())
	assert.NotEmpty(t, violations)
}

func TestValidateTaskConfigs_UnknownFactory(t *testing.T) {
	cfg := configWithTask(`{}`)
	violations := ValidateTaskConfigs(cfg, stubSchemas{}, testLogger())
	require.Len(t, violations, 1)
	assert.Equal(t, "name", violations[0].Field)
}

func TestValidateTaskConfigs_EmptySchemaSkipped(t *testing.T) {
	cfg := configWithTask(`{"anything": "goes"}`)
	schemas := stubSchemas{"debug-phi": ""}

	violations := ValidateTaskConfigs(cfg, schemas, testLogger())
	assert.Empty(t, violations)
}

func TestValidateTaskConfigs_EmptyPayload(t *testing.T) {
	cfg := configWithTask("")
	schemas := stubSchemas{"debug-phi": boolSchema}

	violations := ValidateTaskConfigs(cfg, schemas, testLogger())
	assert.Empty(t, violations)
}
