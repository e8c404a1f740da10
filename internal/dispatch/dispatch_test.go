package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opcua-go/uacore/internal/ua"
)

func TestDispatchRoutesToRegisteredHandler(t *testing.T) {
	d := NewDispatcher(DefaultQuotas())
	typeID := ua.NewNumericNodeId(0, 999)
	d.Register(typeID, func(ctx context.Context, req interface{}) (interface{}, error) {
		return req.(string) + "-handled", nil
	})

	resp, err := d.Dispatch(context.Background(), typeID, "ping")
	require.NoError(t, err)
	assert.Equal(t, "ping-handled", resp)
}

func TestDispatchUnknownTypeErrors(t *testing.T) {
	d := NewDispatcher(DefaultQuotas())
	_, err := d.Dispatch(context.Background(), ua.NewNumericNodeId(0, 1), nil)
	require.Error(t, err)
}

func TestPendingOpResolvesOnce(t *testing.T) {
	op := NewPendingOp(1, time.Time{})
	op.Resolve("first", nil)
	op.Resolve("second", nil)

	resp, err, ok := op.Wait(make(chan struct{}))
	require.True(t, ok)
	require.NoError(t, err)
	assert.Equal(t, "first", resp)
}

func TestPendingSetResolveExpired(t *testing.T) {
	s := NewPendingSet()
	op := NewPendingOp(1, time.Now().Add(-time.Second))
	s.Add(op)

	s.ResolveExpired(time.Now(), assert.AnError)

	_, ok := s.Take(1)
	assert.False(t, ok)

	resp, err, ok := op.Wait(make(chan struct{}))
	require.True(t, ok)
	assert.Nil(t, resp)
	assert.Equal(t, assert.AnError, err)
}
