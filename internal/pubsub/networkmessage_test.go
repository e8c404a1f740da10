package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opcua-go/uacore/internal/ua"
)

func TestNetworkMessageRoundTripNoSecurity(t *testing.T) {
	msg := NetworkMessage{
		HasPublisher:  true,
		PublisherID:   "publisher-1",
		WriterGroupID: 7,
		DataSets: []DataSetMessage{
			{
				DataSetWriterID: 1,
				SequenceNumber:  42,
				Fields: []ua.Variant{
					{Type: ua.TypeInt32, Value: int32(100)},
					{Type: ua.TypeString, Value: "hello"},
				},
			},
		},
	}

	e := ua.NewEncoder(256)
	require.NoError(t, msg.EncodeUA(e))

	var out NetworkMessage
	d := ua.NewDecoder(e.Bytes())
	require.NoError(t, out.DecodeUA(d))

	assert.True(t, out.HasPublisher)
	assert.Equal(t, "publisher-1", out.PublisherID)
	assert.Equal(t, uint16(7), out.WriterGroupID)
	require.Len(t, out.DataSets, 1)
	assert.Equal(t, uint16(1), out.DataSets[0].DataSetWriterID)
	assert.Equal(t, uint16(42), out.DataSets[0].SequenceNumber)
	require.Len(t, out.DataSets[0].Fields, 2)
	assert.Equal(t, int32(100), out.DataSets[0].Fields[0].Value)
	assert.Equal(t, "hello", out.DataSets[0].Fields[1].Value)
}

func TestNetworkMessageRoundTripWithSecurity(t *testing.T) {
	msg := NetworkMessage{
		WriterGroupID: 3,
		DataSets: []DataSetMessage{
			{DataSetWriterID: 9, SequenceNumber: 1, Fields: []ua.Variant{{Type: ua.TypeBoolean, Value: true}}},
		},
		Security: &SecurityHeader{
			SecurityTokenID: 55,
			Nonce:           []byte{1, 2, 3, 4},
		},
	}

	e := ua.NewEncoder(256)
	require.NoError(t, msg.EncodeUA(e))

	var out NetworkMessage
	d := ua.NewDecoder(e.Bytes())
	require.NoError(t, out.DecodeUA(d))

	require.NotNil(t, out.Security)
	assert.Equal(t, uint32(55), out.Security.SecurityTokenID)
	assert.Equal(t, []byte{1, 2, 3, 4}, out.Security.Nonce)
}

func TestNetworkMessageRejectsUnsupportedVersion(t *testing.T) {
	e := ua.NewEncoder(256)
	e.WriteByte(0x0F) // version nibble 15, never allocated
	d := ua.NewDecoder(e.Bytes())
	var out NetworkMessage
	require.Error(t, out.DecodeUA(d))
}

func TestNetworkMessageMultipleDataSets(t *testing.T) {
	msg := NetworkMessage{
		WriterGroupID: 1,
		DataSets: []DataSetMessage{
			{DataSetWriterID: 1, SequenceNumber: 1, Fields: []ua.Variant{{Type: ua.TypeDouble, Value: 1.5}}},
			{DataSetWriterID: 2, SequenceNumber: 2, Fields: []ua.Variant{{Type: ua.TypeDouble, Value: 2.5}}},
		},
	}

	e := ua.NewEncoder(256)
	require.NoError(t, msg.EncodeUA(e))

	var out NetworkMessage
	d := ua.NewDecoder(e.Bytes())
	require.NoError(t, out.DecodeUA(d))

	require.Len(t, out.DataSets, 2)
	assert.Equal(t, uint16(1), out.DataSets[0].DataSetWriterID)
	assert.Equal(t, uint16(2), out.DataSets[1].DataSetWriterID)
	assert.Equal(t, 1.5, out.DataSets[0].Fields[0].Value)
	assert.Equal(t, 2.5, out.DataSets[1].Fields[0].Value)
}
