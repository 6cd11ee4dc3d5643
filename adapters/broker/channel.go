package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/palaverhq/palaver/domain"
	"github.com/palaverhq/palaver/utils/log"
	"go.uber.org/zap"
)

// ChannelBroker implements domain.Broker on Go channels. It is the in-process
// message-passing boundary between the orchestrator and the transport layer.
type ChannelBroker struct {
	topics map[string]chan domain.BrokerMessage
	mu     sync.Mutex
	closed bool
}

func NewChannelBroker() *ChannelBroker {
	return &ChannelBroker{topics: make(map[string]chan domain.BrokerMessage)}
}

func makeKey(topic, routingKey string) string {
	return topic + ":" + routingKey
}

func (b *ChannelBroker) channel(topic, routingKey string) (chan domain.BrokerMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("message broker is closed")
	}

	key := makeKey(topic, routingKey)
	ch, ok := b.topics[key]
	if !ok {
		ch = make(chan domain.BrokerMessage, 100)
		b.topics[key] = ch
	}
	return ch, nil
}

// Publish sends a message to a topic and routing key. Subscribers on the
// exact routing key and on the wildcard (empty) key both receive it. A full
// channel drops the message rather than blocking the publisher.
func (b *ChannelBroker) Publish(ctx context.Context, topic string, routingKey string, message []byte) error {
	msg := domain.BrokerMessage{
		Topic:      topic,
		RoutingKey: routingKey,
		Payload:    message,
		Timestamp:  time.Now(),
	}

	// Sends are non-blocking, so they stay under the lock; Close must not
	// close a channel with a send in flight.
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("message broker is closed")
	}

	key := makeKey(topic, routingKey)
	ch, ok := b.topics[key]
	if !ok {
		ch = make(chan domain.BrokerMessage, 100)
		b.topics[key] = ch
	}
	targets := []chan domain.BrokerMessage{ch}
	if routingKey != "" {
		if wildcard, ok := b.topics[makeKey(topic, "")]; ok {
			targets = append(targets, wildcard)
		}
	}

	// Best effort per target: a full channel loses the message for that
	// subscriber only.
	delivered := 0
	for _, target := range targets {
		select {
		case target <- msg:
			delivered++
		default:
		}
	}
	b.mu.Unlock()

	if delivered == 0 {
		return fmt.Errorf("topic channel is full: %s:%s", topic, routingKey)
	}

	log.WithCtx(ctx).Debug("message published",
		zap.String("topic", topic),
		zap.String("routing_key", routingKey),
		zap.Int("payload_size", len(message)))
	return nil
}

// Subscribe listens for messages on a topic and routing key.
func (b *ChannelBroker) Subscribe(ctx context.Context, topic string, routingKey string) (<-chan domain.BrokerMessage, error) {
	ch, err := b.channel(topic, routingKey)
	if err != nil {
		return nil, err
	}
	log.WithCtx(ctx).Info("subscribed to topic",
		zap.String("topic", topic),
		zap.String("routing_key", routingKey))
	return ch, nil
}

// Close closes the broker and all topic channels.
func (b *ChannelBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, ch := range b.topics {
		close(ch)
	}
	b.topics = make(map[string]chan domain.BrokerMessage)
	return nil
}

// TopicCount returns the number of active topics.
func (b *ChannelBroker) TopicCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics)
}
