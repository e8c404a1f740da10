package pubsubtransport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opcua-go/uacore/internal/pubsub"
	"github.com/opcua-go/uacore/internal/ua"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg := pubsub.NetworkMessage{
		WriterGroupID: 12,
		DataSets: []pubsub.DataSetMessage{
			{DataSetWriterID: 1, SequenceNumber: 1, Fields: []ua.Variant{{Type: ua.TypeInt32, Value: int32(7)}}},
		},
	}

	raw, err := encode(msg)
	require.NoError(t, err)

	out, err := decode(raw)
	require.NoError(t, err)
	assert.Equal(t, uint16(12), out.WriterGroupID)
	require.Len(t, out.DataSets, 1)
	assert.Equal(t, int32(7), out.DataSets[0].Fields[0].Value)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := decode([]byte{0xFF})
	assert.Error(t, err)
}

func TestNewKafkaTransportRequiresBrokers(t *testing.T) {
	_, err := NewKafkaTransport(KafkaConfig{})
	assert.Error(t, err)
}
