package natschunk

import (
	"context"
	"io"
	"testing"
	"time"

	"log/slog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/femtostream/natsclient"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(t *testing.T) *natsclient.Client {
	t.Helper()
	c, err := natsclient.NewClient("nats://localhost:4222")
	require.NoError(t, err)
	return c
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{Subject: "qa.chunks"}
	assert.NoError(t, cfg.Validate())

	cfg = Config{}
	assert.Error(t, cfg.Validate())

	cfg = Config{Subject: "qa.chunks", RatePerSec: -1}
	assert.Error(t, cfg.Validate())
}

func TestNewSource_Validation(t *testing.T) {
	_, err := NewSource(Deps{Config: Config{Subject: "qa.chunks"}, Logger: testLogger()})
	assert.Error(t, err) // missing client

	_, err = NewSource(Deps{Config: Config{}, Client: testClient(t), Logger: testLogger()})
	assert.Error(t, err) // missing subject
}

func TestSource_HandleDeliversChunks(t *testing.T) {
	s, err := NewSource(Deps{
		Config: Config{Subject: "qa.chunks"},
		Client: testClient(t),
		Logger: testLogger(),
	})
	require.NoError(t, err)
	s.running.Store(true)

	payload := []byte(`{"collisions":[{"global_index":1}],` +
		`"particles":[{"global_index":10,"collision_id":1,"type":5}]}`)
	s.handle(context.Background(), payload)

	select {
	case chunk := <-s.Chunks():
		require.Len(t, chunk.Collisions, 1)
		require.Len(t, chunk.Particles, 1)
	case <-time.After(time.Second):
		t.Fatal("no chunk delivered")
	}
	assert.EqualValues(t, 0, s.Malformed())
}

func TestSource_HandleDropsMalformed(t *testing.T) {
	s, err := NewSource(Deps{
		Config: Config{Subject: "qa.chunks"},
		Client: testClient(t),
		Logger: testLogger(),
	})
	require.NoError(t, err)
	s.running.Store(true)

	s.handle(context.Background(), []byte(`{broken`))
	s.handle(context.Background(), []byte(`{"collisions":[],"particles":[]}`))

	assert.EqualValues(t, 2, s.Malformed())
	select {
	case <-s.Chunks():
		t.Fatal("malformed message must not be delivered")
	default:
	}
}

func TestSource_StartNotConnected(t *testing.T) {
	s, err := NewSource(Deps{
		Config: Config{Subject: "qa.chunks"},
		Client: testClient(t),
		Logger: testLogger(),
	})
	require.NoError(t, err)
	// The client never connected, so the subscription fails.
	assert.Error(t, s.Start(context.Background()))
}

func TestSource_StopClosesChannel(t *testing.T) {
	s, err := NewSource(Deps{
		Config: Config{Subject: "qa.chunks"},
		Client: testClient(t),
		Logger: testLogger(),
	})
	require.NoError(t, err)

	require.NoError(t, s.Stop(time.Second))
	require.NoError(t, s.Stop(time.Second))

	_, ok := <-s.Chunks()
	assert.False(t, ok)

	// Late deliveries after Stop are dropped, not panics.
	s.handle(context.Background(), []byte(`{"collisions":[{"global_index":1}],"particles":[]}`))
}

func TestSource_RateLimiterConfigured(t *testing.T) {
	s, err := NewSource(Deps{
		Config: Config{Subject: "qa.chunks", RatePerSec: 100, Burst: 5},
		Client: testClient(t),
		Logger: testLogger(),
	})
	require.NoError(t, err)
	require.NotNil(t, s.limiter)
	assert.InDelta(t, 100, float64(s.limiter.Limit()), 1e-9)
	assert.Equal(t, 5, s.limiter.Burst())
}
