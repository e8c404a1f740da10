package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opcua-go/uacore/internal/dispatch"
	"github.com/opcua-go/uacore/internal/nodestore"
	"github.com/opcua-go/uacore/internal/session"
	"github.com/opcua-go/uacore/internal/ua"
)

func TestDecodeRequestHeaderRoundTrip(t *testing.T) {
	e := ua.NewEncoder(64)
	tok := ua.NewNumericNodeId(0, 42)
	e.WriteNodeId(tok)
	now := time.Now().Truncate(time.Millisecond)
	e.WriteDateTime(now)
	e.WriteUInt32(7)  // RequestHandle
	e.WriteUInt32(0)  // ReturnDiagnostics
	e.WriteString("", true)
	e.WriteUInt32(5000) // TimeoutHint

	d := ua.NewDecoder(e.Bytes())
	h, err := decodeRequestHeader(d)
	require.NoError(t, err)
	assert.Equal(t, tok, h.AuthenticationToken)
	assert.Equal(t, uint32(7), h.RequestHandle)
	assert.Equal(t, 5*time.Second, h.Timeout)
}

func TestEncodeResponseHeader(t *testing.T) {
	e := ua.NewEncoder(32)
	h := dispatch.ResponseHeader{
		Timestamp:     time.Now(),
		RequestHandle: 3,
		ServiceResult: ua.BadInvalidState,
	}
	encodeResponseHeader(e, h)

	d := ua.NewDecoder(e.Bytes())
	if _, err := d.ReadDateTime(); err != nil {
		t.Fatal(err)
	}
	handle, err := d.ReadUInt32()
	require.NoError(t, err)
	assert.Equal(t, uint32(3), handle)
	result, err := d.ReadUInt32()
	require.NoError(t, err)
	assert.Equal(t, ua.BadInvalidState, ua.StatusCode(result))
}

func TestCreateSubscriptionArgsRoundTrip(t *testing.T) {
	e := ua.NewEncoder(32)
	e.WriteDouble(500)  // RequestedPublishingInterval ms
	e.WriteUInt32(2400) // LifetimeCount
	e.WriteUInt32(10)   // MaxKeepAliveCount
	e.WriteUInt32(1000) // MaxNotificationsPerPublish
	e.WriteBoolean(true)
	e.WriteByte(0)

	d := ua.NewDecoder(e.Bytes())
	args, err := decodeCreateSubscriptionArgs(d)
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, args.RequestedPublishingInterval)
	assert.Equal(t, uint32(2400), args.RequestedLifetimeCount)
	assert.True(t, args.PublishingEnabled)

	out := ua.NewEncoder(32)
	encodeCreateSubscriptionResult(out, CreateSubscriptionResult{SubscriptionID: 9, RevisedPublishingInterval: 500 * time.Millisecond})
	rd := ua.NewDecoder(out.Bytes())
	subID, err := rd.ReadUInt32()
	require.NoError(t, err)
	assert.Equal(t, uint32(9), subID)
}

func TestDecodePublishArgsWithAcknowledgements(t *testing.T) {
	e := ua.NewEncoder(32)
	e.WriteInt32(2)
	e.WriteUInt32(1) // SubscriptionId
	e.WriteUInt32(5) // SequenceNumber
	e.WriteUInt32(1)
	e.WriteUInt32(6)

	d := ua.NewDecoder(e.Bytes())
	args, err := decodePublishArgs(d)
	require.NoError(t, err)
	assert.Equal(t, []SubscriptionAcknowledgement{
		{SubscriptionID: 1, SequenceNumber: 5},
		{SubscriptionID: 1, SequenceNumber: 6},
	}, args.SubscriptionAcknowledgements)
}

func TestDecodeReadArgsUsesSuppliedIdentity(t *testing.T) {
	nodeID := ua.NewNumericNodeId(1, 100)
	e := ua.NewEncoder(32)
	e.WriteDouble(0)
	e.WriteUInt32(0)
	e.WriteInt32(1)
	e.WriteNodeId(nodeID)
	e.WriteUInt32(uint32(nodestore.AttributeValue))

	d := ua.NewDecoder(e.Bytes())
	ident := session.Identity{Kind: session.IdentityAnonymous}
	args, err := decodeReadArgs(func() session.Identity { return ident })(d)
	require.NoError(t, err)
	assert.Equal(t, nodeID, args.NodeID)
	assert.Equal(t, nodestore.AttributeValue, args.AttrID)
	assert.Equal(t, ident, args.Identity)
}

func TestDecodeWriteArgsRejectsEmptyNodesToWrite(t *testing.T) {
	e := ua.NewEncoder(8)
	e.WriteInt32(0)
	d := ua.NewDecoder(e.Bytes())
	_, err := decodeWriteArgs(func() session.Identity { return session.Identity{} })(d)
	assert.Error(t, err)
}
