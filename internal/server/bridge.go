package server

import (
	"github.com/opcua-go/uacore/internal/pubsub"
	"github.com/opcua-go/uacore/internal/subscription"
	"github.com/opcua-go/uacore/internal/ua"
)

// notificationToNetworkMessage republishes a subscription's
// NotificationMessage as a PubSub NetworkMessage: one DataSetMessage per
// DataChangeNotification, writer ids borrowed from the originating
// MonitoredItem's client handle so an external broker subscriber can
// still tell which monitored item a field came from.
func notificationToNetworkMessage(sessionID string, subscriptionID uint32, msg subscription.NotificationMessage) pubsub.NetworkMessage {
	nm := pubsub.NetworkMessage{
		PublisherID:   sessionID,
		HasPublisher:  sessionID != "",
		WriterGroupID: uint16(subscriptionID),
	}
	for _, dc := range msg.DataChanges {
		nm.DataSets = append(nm.DataSets, buildDataSetMessage(dc.ClientHandle, msg.SequenceNumber, dc.Values))
	}
	return nm
}

func buildDataSetMessage(clientHandle uint32, sn uint32, values []ua.DataValue) pubsub.DataSetMessage {
	fields := make([]ua.Variant, 0, len(values))
	for _, v := range values {
		fields = append(fields, v.Value)
	}
	return pubsub.DataSetMessage{
		DataSetWriterID: uint16(clientHandle),
		SequenceNumber:  uint16(sn),
		Fields:          fields,
	}
}
