package task

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/femtostream/fdtable"
	"github.com/c360/femtostream/histbook"
)

type stubTask struct {
	name string
}

func (s *stubTask) Meta() Metadata { return Metadata{Name: s.name, Type: "analysis"} }
func (s *stubTask) Init() error    { return nil }
func (s *stubTask) BeginChunk(*fdtable.Table) {}
func (s *stubTask) ProcessCollision(context.Context, *fdtable.Collision, *fdtable.Table) error {
	return nil
}
func (s *stubTask) Registries() []*histbook.Registry { return nil }
func (s *stubTask) Health() HealthStatus {
	return HealthStatus{Healthy: true, LastCheck: time.Now()}
}

func stubFactory(json.RawMessage, Dependencies) (Task, error) {
	return &stubTask{name: "stub"}, nil
}

func TestRegistry_RegisterAndCreate(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.RegisterWithConfig(RegistrationConfig{
		Name:    "stub",
		Factory: stubFactory,
		Schema:  `{"type":"object"}`,
	}))

	created, err := reg.Create("stub-main", "stub", json.RawMessage("{}"), Dependencies{})
	require.NoError(t, err)
	assert.Equal(t, "stub", created.Meta().Name)

	instances := reg.Instances()
	require.Len(t, instances, 1)
	assert.Contains(t, instances, "stub-main")
}

func TestRegistry_DuplicateFactory(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterWithConfig(RegistrationConfig{Name: "stub", Factory: stubFactory}))
	assert.Error(t, reg.RegisterWithConfig(RegistrationConfig{Name: "stub", Factory: stubFactory}))
}

func TestRegistry_InvalidRegistration(t *testing.T) {
	reg := NewRegistry()
	assert.Error(t, reg.RegisterWithConfig(RegistrationConfig{Name: "", Factory: stubFactory}))
	assert.Error(t, reg.RegisterWithConfig(RegistrationConfig{Name: "no-factory"}))
}

func TestRegistry_CreateUnknownFactory(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Create("x", "missing", json.RawMessage("{}"), Dependencies{})
	assert.Error(t, err)
}

func TestRegistry_DuplicateInstance(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterWithConfig(RegistrationConfig{Name: "stub", Factory: stubFactory}))

	_, err := reg.Create("stub-main", "stub", json.RawMessage("{}"), Dependencies{})
	require.NoError(t, err)
	_, err = reg.Create("stub-main", "stub", json.RawMessage("{}"), Dependencies{})
	assert.Error(t, err)
}

func TestRegistry_Schema(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterWithConfig(RegistrationConfig{
		Name:    "stub",
		Factory: stubFactory,
		Schema:  `{"type":"object"}`,
	}))

	schema, err := reg.Schema("stub")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object"}`, schema)

	_, err = reg.Schema("missing")
	assert.Error(t, err)
}

func TestDependencies_GetLogger(t *testing.T) {
	var deps Dependencies
	require.NotNil(t, deps.GetLogger())
	assert.NotNil(t, deps.GetLoggerWithTask("debug-phi"))
}
