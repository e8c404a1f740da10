package server

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opcua-go/uacore/internal/config"
	"github.com/opcua-go/uacore/internal/eventloop"
	"github.com/opcua-go/uacore/internal/subscription"
	"github.com/opcua-go/uacore/internal/ua"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	loop := eventloop.New(zerolog.Nop())
	require.NoError(t, loop.Start())
	t.Cleanup(loop.Stop)
	return &Server{
		cfg:    &config.Config{PublishTickInterval: time.Hour},
		logger: zerolog.Nop(),
		loop:   loop,
		subs:   make(map[string]*subscription.Manager),
	}
}

func TestHandlePublishAcknowledgesIntoOwningSubscription(t *testing.T) {
	s := newTestServer(t)
	ctx := withSessionID(context.Background(), "sess-1")

	mgr := s.subsByID("sess-1")
	sub := mgr.Create(time.Hour, 10, 100, 1000)
	item := subscription.NewMonitoredItem(1, ua.NewNumericNodeId(1, 1), 7, time.Hour, 10, subscription.DiscardOldest)
	sub.AddItem(item)
	item.Sample(ua.DataValue{HasValue: true, Value: ua.Variant{Type: ua.TypeInt32, Value: int32(1)}})
	result := sub.Tick(true)
	require.NotNil(t, result.Message)
	sn := result.Message.SequenceNumber

	_, ok := sub.Republish(sn)
	require.True(t, ok)

	_, err := s.handlePublish(ctx, PublishArgs{
		SubscriptionAcknowledgements: []SubscriptionAcknowledgement{
			{SubscriptionID: sub.ID, SequenceNumber: sn},
		},
	})
	require.NoError(t, err)

	_, ok = sub.Republish(sn)
	assert.False(t, ok)
}

func TestHandlePublishIgnoresAcknowledgementForUnknownSubscription(t *testing.T) {
	s := newTestServer(t)
	ctx := withSessionID(context.Background(), "sess-2")
	s.subsByID("sess-2")

	_, err := s.handlePublish(ctx, PublishArgs{
		SubscriptionAcknowledgements: []SubscriptionAcknowledgement{
			{SubscriptionID: 999, SequenceNumber: 1},
		},
	})
	assert.NoError(t, err)
}
