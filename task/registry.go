package task

import (
	"encoding/json"
	"fmt"
	"maps"
	"sync"

	"github.com/c360/femtostream/errors"
)

// Registration holds factory and metadata for a task type
type Registration struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Version     string  `json:"version"`
	Schema      string  `json:"schema"` // JSON schema document for the task config
	Factory     Factory `json:"-"`
}

// RegistrationConfig provides a clean API for task registration.
type RegistrationConfig struct {
	Name        string
	Factory     Factory
	Schema      string
	Description string
	Version     string
}

// Registry manages task factories and instances. It provides
// thread-safe registration and lookup of factories (for creation)
// and instances (for discovery and health reporting).
type Registry struct {
	factories map[string]*Registration
	instances map[string]Task
	mu        sync.RWMutex
}

// NewRegistry creates a new empty task registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]*Registration),
		instances: make(map[string]Task),
	}
}

// RegisterWithConfig registers a task factory.
// Returns an error if a factory with the same name is already registered.
func (r *Registry) RegisterWithConfig(config RegistrationConfig) error {
	if config.Name == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterWithConfig", "factory name validation")
	}
	if config.Factory == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterWithConfig", "factory function validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[config.Name]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("factory %q: %w", config.Name, errors.ErrDuplicateTask),
			"Registry", "RegisterWithConfig", "duplicate factory check")
	}

	r.factories[config.Name] = &Registration{
		Name:        config.Name,
		Description: config.Description,
		Version:     config.Version,
		Schema:      config.Schema,
		Factory:     config.Factory,
	}
	return nil
}

// Create builds a task instance using the named factory and registers
// it under instanceName.
func (r *Registry) Create(instanceName, factoryName string, rawConfig json.RawMessage, deps Dependencies) (Task, error) {
	if instanceName == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Create", "instance name validation")
	}

	r.mu.RLock()
	registration, exists := r.factories[factoryName]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.WrapInvalid(
			fmt.Errorf("factory %q: %w", factoryName, errors.ErrUnknownTask),
			"Registry", "Create", "factory lookup")
	}

	t, err := registration.Factory(rawConfig, deps)
	if err != nil {
		return nil, errors.Wrap(err, "Registry", "Create", "factory execution")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instances[instanceName]; exists {
		return nil, errors.WrapInvalid(
			fmt.Errorf("instance %q: %w", instanceName, errors.ErrDuplicateTask),
			"Registry", "Create", "duplicate instance check")
	}
	r.instances[instanceName] = t

	return t, nil
}

// Schema returns the registered JSON schema document for a factory.
func (r *Registry) Schema(factoryName string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	registration, exists := r.factories[factoryName]
	if !exists {
		return "", errors.WrapInvalid(
			fmt.Errorf("factory %q: %w", factoryName, errors.ErrUnknownTask),
			"Registry", "Schema", "factory lookup")
	}
	return registration.Schema, nil
}

// Instances returns all registered task instances
func (r *Registry) Instances() map[string]Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]Task, len(r.instances))
	maps.Copy(result, r.instances)
	return result
}

// Factories returns the names of all registered task factories
func (r *Registry) Factories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}
