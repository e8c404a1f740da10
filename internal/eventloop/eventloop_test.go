package eventloop

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateTransitions(t *testing.T) {
	el := New(zerolog.Nop())
	assert.Equal(t, StateFresh, el.State())
	require.NoError(t, el.Start())
	assert.Equal(t, StateStarted, el.State())
	assert.Error(t, el.Start())

	el.Stop()
	assert.Equal(t, StateStopping, el.State())

	ctx := context.Background()
	assert.False(t, el.Run(ctx, 10*time.Millisecond))
	assert.Equal(t, StateStopped, el.State())
}

func TestCallbackRunsOnNextIteration(t *testing.T) {
	el := New(zerolog.Nop())
	require.NoError(t, el.Start())

	ran := false
	el.AddCallback(func() { ran = true })

	ctx := context.Background()
	el.Run(ctx, 10*time.Millisecond)
	assert.True(t, ran)
}

func TestCanceledCallbackDoesNotRun(t *testing.T) {
	el := New(zerolog.Nop())
	require.NoError(t, el.Start())

	ran := false
	cancel := el.AddCallback(func() { ran = true })
	cancel()

	el.Run(context.Background(), 10*time.Millisecond)
	assert.False(t, ran)
}

func TestOnceTimerFiresOnce(t *testing.T) {
	el := New(zerolog.Nop())
	require.NoError(t, el.Start())

	count := 0
	el.AddTimer(5*time.Millisecond, func() { count++ })

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) && count == 0 {
		el.Run(context.Background(), 10*time.Millisecond)
	}
	assert.Equal(t, 1, count)

	for i := 0; i < 5; i++ {
		el.Run(context.Background(), 5*time.Millisecond)
	}
	assert.Equal(t, 1, count)
}

func TestPeriodicTimerFiresRepeatedly(t *testing.T) {
	el := New(zerolog.Nop())
	require.NoError(t, el.Start())

	count := 0
	el.AddPeriodicTimer(5*time.Millisecond, func() { count++ })

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) && count < 3 {
		el.Run(context.Background(), 10*time.Millisecond)
	}
	assert.GreaterOrEqual(t, count, 3)
}

func TestPanicInCallbackDoesNotCrashLoop(t *testing.T) {
	el := New(zerolog.Nop())
	require.NoError(t, el.Start())

	el.AddCallback(func() { panic("boom") })
	ranAfter := false
	el.AddCallback(func() { ranAfter = true })

	assert.NotPanics(t, func() {
		el.Run(context.Background(), 10*time.Millisecond)
	})
	assert.True(t, ranAfter)
}

type stubSource struct{ polled int }

func (s *stubSource) Poll(ctx context.Context) bool {
	s.polled++
	return false
}

func TestRegisteredSourceIsPolled(t *testing.T) {
	el := New(zerolog.Nop())
	require.NoError(t, el.Start())
	src := &stubSource{}
	el.RegisterSource(src)

	el.Run(context.Background(), 5*time.Millisecond)
	assert.Equal(t, 1, src.polled)
}
