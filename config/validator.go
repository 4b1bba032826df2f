package config

import (
	"fmt"

	"log/slog"

	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/femtostream/errors"
)

// SchemaSource resolves a task factory name to its JSON schema
// document. The task registry implements it.
type SchemaSource interface {
	Schema(factoryName string) (string, error)
}

// ValidationError describes one schema violation in a task config.
type ValidationError struct {
	Instance string `json:"instance"`
	Field    string `json:"field"`
	Message  string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("task %s: %s: %s", e.Instance, e.Field, e.Message)
}

// ValidateTaskConfigs checks every enabled task payload against its
// factory's schema. Factories without a schema are skipped.
func ValidateTaskConfigs(cfg *Config, schemas SchemaSource, logger *slog.Logger) []ValidationError {
	if logger == nil {
		logger = slog.Default()
	}

	var violations []ValidationError
	for instance, tc := range cfg.EnabledTasks() {
		schema, err := schemas.Schema(tc.Name)
		if err != nil {
			violations = append(violations, ValidationError{
				Instance: instance,
				Field:    "name",
				Message:  fmt.Sprintf("unknown task factory %q", tc.Name),
			})
			continue
		}
		if schema == "" {
			logger.Debug("Task has no config schema, skipping validation", "task", tc.Name)
			continue
		}

		payload := tc.Config
		if len(payload) == 0 {
			payload = []byte("{}")
		}

		result, err := gojsonschema.Validate(
			gojsonschema.NewStringLoader(schema),
			gojsonschema.NewBytesLoader(payload))
		if err != nil {
			violations = append(violations, ValidationError{
				Instance: instance,
				Field:    "config",
				Message:  err.Error(),
			})
			continue
		}

		for _, desc := range result.Errors() {
			violations = append(violations, ValidationError{
				Instance: instance,
				Field:    desc.Field(),
				Message:  desc.Description(),
			})
		}
	}

	if len(violations) > 0 {
		logger.Info("Task configuration validation failed", "violations", len(violations))
	}
	return violations
}

// ValidationErrorsToError folds violations into one classified error,
// or nil when the slice is empty.
func ValidationErrorsToError(violations []ValidationError) error {
	if len(violations) == 0 {
		return nil
	}
	return errors.WrapInvalid(
		fmt.Errorf("%d task config violations, first: %s", len(violations), violations[0].Error()),
		"Config", "ValidateTaskConfigs", "schema validation")
}
