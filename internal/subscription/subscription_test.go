package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opcua-go/uacore/internal/ua"
)

func sampleDV(v float64) ua.DataValue {
	return ua.DataValue{HasValue: true, Value: ua.Variant{Type: ua.TypeDouble, Value: v}}
}

func TestMonitoredItemDiscardOldest(t *testing.T) {
	m := NewMonitoredItem(1, ua.NewNumericNodeId(1, 10), 13, time.Second, 2, DiscardOldest)
	m.Sample(sampleDV(1))
	m.Sample(sampleDV(2))
	m.Sample(sampleDV(3))
	vals := m.Drain()
	require.Len(t, vals, 2)
	assert.Equal(t, 2.0, vals[0].Value.Value)
	assert.Equal(t, 3.0, vals[1].Value.Value)
}

func TestMonitoredItemDiscardNewest(t *testing.T) {
	m := NewMonitoredItem(1, ua.NewNumericNodeId(1, 10), 13, time.Second, 2, DiscardNewest)
	m.Sample(sampleDV(1))
	m.Sample(sampleDV(2))
	m.Sample(sampleDV(3))
	vals := m.Drain()
	require.Len(t, vals, 2)
	assert.Equal(t, 1.0, vals[0].Value.Value)
	assert.Equal(t, 2.0, vals[1].Value.Value)
}

func TestDeadbandSuppressesSmallChange(t *testing.T) {
	m := NewMonitoredItem(1, ua.NewNumericNodeId(1, 10), 13, time.Second, 10, DiscardOldest)
	m.Deadband = DeadbandAbsolute
	m.DeadbandValue = 1.0

	assert.True(t, m.Sample(sampleDV(10.0)))
	assert.False(t, m.Sample(sampleDV(10.5)), "change within deadband should be suppressed")
	assert.True(t, m.Sample(sampleDV(12.0)), "change beyond deadband should pass")
}

func TestSubscriptionNormalCycle(t *testing.T) {
	s := NewSubscription(1, 100*time.Millisecond, 10, 100, 1000)
	item := NewMonitoredItem(1, ua.NewNumericNodeId(1, 1), 13, 100*time.Millisecond, 10, DiscardOldest)
	s.AddItem(item)
	item.Sample(sampleDV(42))

	result := s.Tick(true)
	require.NotNil(t, result.Message)
	assert.Equal(t, uint32(1), result.Message.SequenceNumber)
	assert.Len(t, result.Message.DataChanges, 1)
}

func TestSubscriptionKeepAlive(t *testing.T) {
	s := NewSubscription(1, 10*time.Millisecond, 2, 100, 1000)
	result := s.Tick(true)
	assert.Nil(t, result.Message, "keep-alive threshold not yet reached")

	result = s.Tick(true)
	require.NotNil(t, result.Message)
	assert.Empty(t, result.Message.DataChanges)
}

func TestSubscriptionExpiresAfterLifetimeCount(t *testing.T) {
	s := NewSubscription(1, 10*time.Millisecond, 1000, 3, 1000)
	var result TickResult
	for i := 0; i < 5; i++ {
		result = s.Tick(false)
		if result.Expired {
			break
		}
	}
	assert.True(t, result.Expired)
	assert.Equal(t, CycleClosed, s.State())
}

func TestRepublishReturnsRetainedMessage(t *testing.T) {
	s := NewSubscription(1, 100*time.Millisecond, 10, 100, 1000)
	item := NewMonitoredItem(1, ua.NewNumericNodeId(1, 1), 13, 100*time.Millisecond, 10, DiscardOldest)
	s.AddItem(item)
	item.Sample(sampleDV(1))
	r1 := s.Tick(true)
	require.NotNil(t, r1.Message)

	got, ok := s.Republish(r1.Message.SequenceNumber)
	require.True(t, ok)
	assert.Equal(t, r1.Message.SequenceNumber, got.SequenceNumber)

	_, ok = s.Republish(999)
	assert.False(t, ok)
}

func TestAcknowledgeEvictsFromRetransmissionQueue(t *testing.T) {
	s := NewSubscription(1, 100*time.Millisecond, 10, 100, 1000)
	item := NewMonitoredItem(1, ua.NewNumericNodeId(1, 1), 13, 100*time.Millisecond, 10, DiscardOldest)
	s.AddItem(item)
	item.Sample(sampleDV(1))
	r1 := s.Tick(true)
	require.NotNil(t, r1.Message)
	sn := r1.Message.SequenceNumber

	_, ok := s.Republish(sn)
	require.True(t, ok)

	assert.True(t, s.Acknowledge(sn))
	_, ok = s.Republish(sn)
	assert.False(t, ok)

	assert.False(t, s.Acknowledge(sn))
}

func TestPublishRequestQueueFIFOAndExpiry(t *testing.T) {
	q := NewPublishRequestQueue()
	past := time.Now().Add(-time.Second)
	future := time.Now().Add(time.Hour)
	q.Push(PublishRequest{RequestID: 1, Deadline: past})
	q.Push(PublishRequest{RequestID: 2, Deadline: future})

	req, ok := q.Pop(time.Now())
	require.True(t, ok)
	assert.Equal(t, uint32(2), req.RequestID)

	_, ok = q.Pop(time.Now())
	assert.False(t, ok)
}
