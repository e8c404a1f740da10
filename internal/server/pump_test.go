package server

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opcua-go/uacore/internal/dispatch"
	"github.com/opcua-go/uacore/internal/securechannel"
	"github.com/opcua-go/uacore/internal/ua"
)

// discardConn is a transport.Connection stub that does no real I/O, enough
// for tests that only exercise in-memory decode/encode logic against a
// Channel.
type discardConn struct{}

func (discardConn) Read(ctx context.Context) ([]byte, error)  { return nil, context.Canceled }
func (discardConn) Write(ctx context.Context, b []byte) error { return nil }
func (discardConn) RemoteAddr() string                        { return "test" }
func (discardConn) Close() error                              { return nil }

func symmetricChunkBody(tokenID, seq, reqID uint32, payload []byte) []byte {
	e := ua.NewEncoder(16 + len(payload))
	e.WriteUInt32(tokenID)
	e.WriteUInt32(seq)
	e.WriteUInt32(reqID)
	e.WriteBytes(payload)
	return e.Bytes()
}

func TestAccumulateChunkHoldsIntermediateChunks(t *testing.T) {
	var s Server
	ch := securechannel.NewChannel(discardConn{}, zerolog.Nop())

	var buf []byte
	var reqID uint32

	body1 := symmetricChunkBody(1, 1, 42, []byte("hello "))
	_, payload, err := s.accumulateChunk(ch, body1, securechannel.ChunkIntermediate, &buf, &reqID)
	require.NoError(t, err)
	assert.Nil(t, payload)

	body2 := symmetricChunkBody(1, 2, 42, []byte("world"))
	rid, payload, err := s.accumulateChunk(ch, body2, securechannel.ChunkFinal, &buf, &reqID)
	require.NoError(t, err)
	require.NotNil(t, payload)
	assert.Equal(t, uint32(42), rid)
	assert.Equal(t, "hello world", string(payload))
}

func TestAccumulateChunkRejectsSequenceGap(t *testing.T) {
	var s Server
	ch := securechannel.NewChannel(discardConn{}, zerolog.Nop())

	var buf []byte
	var reqID uint32

	body1 := symmetricChunkBody(1, 1, 1, []byte("a"))
	_, _, err := s.accumulateChunk(ch, body1, securechannel.ChunkFinal, &buf, &reqID)
	require.NoError(t, err)

	buf = nil
	body2 := symmetricChunkBody(1, 5, 2, []byte("b"))
	_, _, err = s.accumulateChunk(ch, body2, securechannel.ChunkFinal, &buf, &reqID)
	assert.Error(t, err)
}

func TestAccumulateChunkRejectsTruncatedBody(t *testing.T) {
	var s Server
	ch := securechannel.NewChannel(discardConn{}, zerolog.Nop())

	var buf []byte
	var reqID uint32
	_, _, err := s.accumulateChunk(ch, []byte{1, 2, 3}, securechannel.ChunkFinal, &buf, &reqID)
	assert.Error(t, err)
}

func TestWriteResponseEnvelopeBumpsTypeID(t *testing.T) {
	e := ua.NewEncoder(32)
	reqType := ua.NewNumericNodeId(0, 461)
	writeResponseEnvelope(e, reqType, dispatch.ResponseHeader{
		Timestamp:     time.Now(),
		RequestHandle: 9,
		ServiceResult: ua.StatusGood,
	})

	d := ua.NewDecoder(e.Bytes())
	eid, err := d.ReadExpandedNodeId()
	require.NoError(t, err)
	assert.Equal(t, uint32(462), eid.NodeId.Numeric)

	if _, err := d.ReadDateTime(); err != nil {
		t.Fatal(err)
	}
	handle, err := d.ReadUInt32()
	require.NoError(t, err)
	assert.Equal(t, uint32(9), handle)
}

func TestEncodeResultDispatchesByType(t *testing.T) {
	e := ua.NewEncoder(32)
	encodeResult(e, CreateSessionResult{
		SessionID:           ua.NewNumericNodeId(0, 1),
		AuthenticationToken: ua.NewNumericNodeId(0, 2),
	})
	d := ua.NewDecoder(e.Bytes())
	sid, err := d.ReadNodeId()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), sid.Numeric)
}

func TestEncodeResultCloseSessionCarriesNothing(t *testing.T) {
	e := ua.NewEncoder(8)
	encodeResult(e, nil)
	assert.Empty(t, e.Bytes())
}
