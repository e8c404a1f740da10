// Package pubsubtransport carries PubSub NetworkMessages over a broker
// instead of a SecureChannel: a Kafka/Redpanda binding for the
// Publisher-to-broker leg and a NATS binding for low-latency fan-out to
// Subscribers, both wrapping internal/pubsub's binary codec.
package pubsubtransport

import (
	"context"

	"github.com/opcua-go/uacore/internal/pubsub"
	"github.com/opcua-go/uacore/internal/ua"
)

// Handler receives one decoded NetworkMessage per delivery.
type Handler func(msg pubsub.NetworkMessage)

// Transport is the broker-facing half of a PubSub connection: publish
// encodes and ships a NetworkMessage to a destination topic/subject,
// Subscribe decodes inbound deliveries and invokes handler for each.
type Transport interface {
	Publish(ctx context.Context, destination string, msg pubsub.NetworkMessage) error
	Subscribe(ctx context.Context, destination string, handler Handler) error
	Close() error
}

func encode(msg pubsub.NetworkMessage) ([]byte, error) {
	e := ua.NewEncoder(256)
	if err := msg.EncodeUA(e); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

func decode(raw []byte) (pubsub.NetworkMessage, error) {
	var msg pubsub.NetworkMessage
	d := ua.NewDecoder(raw)
	if err := msg.DecodeUA(d); err != nil {
		return pubsub.NetworkMessage{}, err
	}
	return msg, nil
}
