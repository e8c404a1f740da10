package pubsubtransport

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/opcua-go/uacore/internal/pubsub"
)

// KafkaConfig configures a broker-backed Transport over Redpanda/Kafka.
// The destination string passed to Publish/Subscribe is the topic name,
// one topic per WriterGroup by convention.
type KafkaConfig struct {
	Brokers       []string
	ConsumerGroup string
	Logger        zerolog.Logger
}

// KafkaTransport publishes and consumes NetworkMessages as opaque binary
// Kafka record values, one record per message.
type KafkaTransport struct {
	client *kgo.Client
	logger zerolog.Logger

	mu      sync.Mutex
	cancels []context.CancelFunc
	wg      sync.WaitGroup
}

// NewKafkaTransport dials Brokers and returns a ready Transport. The
// client is shared across Publish and every Subscribe call; Subscribe
// additionally joins ConsumerGroup for the requested topic.
func NewKafkaTransport(cfg KafkaConfig) (*KafkaTransport, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("pubsubtransport: at least one kafka broker is required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.ConsumerGroup),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
		kgo.FetchMinBytes(1),
	)
	if err != nil {
		return nil, fmt.Errorf("pubsubtransport: failed to create kafka client: %w", err)
	}
	return &KafkaTransport{client: client, logger: cfg.Logger}, nil
}

// Publish encodes msg and produces it synchronously to topic.
func (t *KafkaTransport) Publish(ctx context.Context, topic string, msg pubsub.NetworkMessage) error {
	raw, err := encode(msg)
	if err != nil {
		return fmt.Errorf("pubsubtransport: encode network message: %w", err)
	}
	record := &kgo.Record{Topic: topic, Value: raw}
	result := t.client.ProduceSync(ctx, record)
	if err := result.FirstErr(); err != nil {
		return fmt.Errorf("pubsubtransport: produce to %s: %w", topic, err)
	}
	return nil
}

// Subscribe joins topic's consumer group and invokes handler for every
// record that decodes as a NetworkMessage. It runs in a background
// goroutine and returns immediately; decode failures are logged and
// skipped rather than aborting the loop, isolating one bad record from
// the rest of the consume loop.
func (t *KafkaTransport) Subscribe(ctx context.Context, topic string, handler Handler) error {
	t.client.AddConsumeTopics(topic)

	loopCtx, cancel := context.WithCancel(ctx)
	t.mu.Lock()
	t.cancels = append(t.cancels, cancel)
	t.mu.Unlock()

	t.wg.Add(1)
	go t.consumeLoop(loopCtx, topic, handler)
	return nil
}

func (t *KafkaTransport) consumeLoop(ctx context.Context, topic string, handler Handler) {
	defer t.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error().Interface("panic", r).Str("topic", topic).Msg("pubsub kafka consume loop panicked")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		fetches := t.client.PollFetches(ctx)
		if ctx.Err() != nil {
			return
		}
		for _, err := range fetches.Errors() {
			t.logger.Error().Err(err.Err).Str("topic", err.Topic).Msg("pubsub kafka fetch error")
		}
		fetches.EachRecord(func(rec *kgo.Record) {
			msg, err := decode(rec.Value)
			if err != nil {
				t.logger.Warn().Err(err).Str("topic", rec.Topic).Msg("pubsub kafka discarding undecodable record")
				return
			}
			handler(msg)
		})
	}
}

// Close stops every active Subscribe loop and releases the client.
func (t *KafkaTransport) Close() error {
	t.mu.Lock()
	for _, cancel := range t.cancels {
		cancel()
	}
	t.mu.Unlock()
	t.wg.Wait()
	t.client.Close()
	return nil
}
