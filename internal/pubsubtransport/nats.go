package pubsubtransport

import (
	"context"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/opcua-go/uacore/internal/pubsub"
)

// NATSConfig configures a broker-backed Transport over NATS core
// pub/sub, used for low-latency fan-out to many Subscribers of the same
// WriterGroup subject where Kafka's consumer-group offset tracking is
// unneeded overhead.
type NATSConfig struct {
	URL             string
	MaxReconnects   int
	ReconnectWaitMs int
	Logger          zerolog.Logger
}

// NATSTransport publishes and subscribes NetworkMessages as opaque
// binary payloads over NATS subjects.
type NATSTransport struct {
	conn   *nats.Conn
	logger zerolog.Logger

	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewNATSTransport connects to cfg.URL and returns a ready Transport.
func NewNATSTransport(cfg NATSConfig) (*NATSTransport, error) {
	t := &NATSTransport{logger: cfg.Logger}

	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectHandler(func(c *nats.Conn) {
			t.logger.Info().Str("url", c.ConnectedUrl()).Msg("pubsub nats reconnected")
		}),
		nats.DisconnectErrHandler(func(c *nats.Conn, err error) {
			if err != nil {
				t.logger.Warn().Err(err).Msg("pubsub nats disconnected")
			}
		}),
		nats.ErrorHandler(func(c *nats.Conn, s *nats.Subscription, err error) {
			t.logger.Error().Err(err).Msg("pubsub nats error")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("pubsubtransport: failed to connect to nats: %w", err)
	}
	t.conn = conn
	return t, nil
}

// Publish encodes msg and publishes it to subject. NATS core delivery
// is fire-and-forget; ctx is honored only insofar as the connection is
// already closed.
func (t *NATSTransport) Publish(ctx context.Context, subject string, msg pubsub.NetworkMessage) error {
	raw, err := encode(msg)
	if err != nil {
		return fmt.Errorf("pubsubtransport: encode network message: %w", err)
	}
	if err := t.conn.Publish(subject, raw); err != nil {
		return fmt.Errorf("pubsubtransport: publish to %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers handler against subject for the lifetime of the
// Transport (until Close); ctx is not used to bound the
// subscription's lifetime since nats.Subscription has none of its own.
func (t *NATSTransport) Subscribe(ctx context.Context, subject string, handler Handler) error {
	sub, err := t.conn.Subscribe(subject, func(m *nats.Msg) {
		msg, err := decode(m.Data)
		if err != nil {
			t.logger.Warn().Err(err).Str("subject", subject).Msg("pubsub nats discarding undecodable message")
			return
		}
		handler(msg)
	})
	if err != nil {
		return fmt.Errorf("pubsubtransport: subscribe to %s: %w", subject, err)
	}

	t.mu.Lock()
	t.subs = append(t.subs, sub)
	t.mu.Unlock()
	return nil
}

// Close unsubscribes every active subscription and closes the connection.
func (t *NATSTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, sub := range t.subs {
		_ = sub.Unsubscribe()
	}
	t.conn.Close()
	return nil
}
