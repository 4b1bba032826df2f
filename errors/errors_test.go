package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClass_String(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(42).String())
}

func TestWrap(t *testing.T) {
	base := errors.New("boom")
	err := Wrap(base, "Engine", "Run", "dispatch chunk")
	require.Error(t, err)
	assert.Equal(t, "Engine.Run: dispatch chunk failed: boom", err.Error())
	assert.ErrorIs(t, err, base)

	assert.NoError(t, Wrap(nil, "Engine", "Run", "dispatch chunk"))
}

func TestWrapClassified(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name  string
		wrap  func(error, string, string, string) error
		class ErrorClass
	}{
		{"transient", WrapTransient, ErrorTransient},
		{"invalid", WrapInvalid, ErrorInvalid},
		{"fatal", WrapFatal, ErrorFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.wrap(base, "Comp", "Method", "action")
			require.Error(t, err)

			var ce *ClassifiedError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.class, ce.Class)
			assert.Equal(t, "Comp", ce.Component)
			assert.ErrorIs(t, err, base)

			assert.NoError(t, tt.wrap(nil, "Comp", "Method", "action"))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		class ErrorClass
	}{
		{"nil defaults transient", nil, ErrorTransient},
		{"connection lost", ErrConnectionLost, ErrorTransient},
		{"context deadline", context.DeadlineExceeded, ErrorTransient},
		{"invalid chunk", ErrInvalidChunk, ErrorInvalid},
		{"duplicate histogram", ErrDuplicateHistogram, ErrorInvalid},
		{"missing config", ErrMissingConfig, ErrorFatal},
		{"wrapped sentinel", fmt.Errorf("ctx: %w", ErrInvalidAxis), ErrorInvalid},
		{"unknown defaults transient", errors.New("mystery"), ErrorTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.class, Classify(tt.err))
		})
	}
}

func TestIsTransient_MessagePatterns(t *testing.T) {
	assert.True(t, IsTransient(errors.New("nats: connection refused")))
	assert.True(t, IsTransient(errors.New("i/o timeout")))
	assert.False(t, IsTransient(errors.New("bad pdg code")))
	assert.False(t, IsTransient(nil))
}

func TestClassifiedError_Unwrap(t *testing.T) {
	err := WrapInvalid(ErrInvalidAxis, "Registry", "H1D", "validate axis")
	assert.ErrorIs(t, err, ErrInvalidAxis)
	assert.True(t, IsInvalid(err))
	assert.False(t, IsFatal(err))
}
