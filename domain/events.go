package domain

import (
	"context"
	"time"
)

// EventKind classifies a client push event.
type EventKind string

const (
	EventMessageCreated EventKind = "message.created"
	EventMessageUpdated EventKind = "message.updated"
	EventStatus         EventKind = "status"
)

// ClientEvent is the payload pushed to connected clients over the transport
// channel. Status events carry only the Status string.
type ClientEvent struct {
	ChatID    string       `json:"chat_id"`
	Kind      EventKind    `json:"kind"`
	Message   *ChatMessage `json:"message,omitempty"`
	Status    string       `json:"status,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Notifier is the fire-and-forget side channel toward clients. Delivery is
// at-least-once and ordered per chat; the orchestrator never depends on it
// succeeding, so the methods return nothing.
type Notifier interface {
	// PushMessage announces a created or updated message.
	PushMessage(ctx context.Context, kind EventKind, msg *ChatMessage)

	// PushStatus announces a pipeline milestone, purely for UI feedback.
	PushStatus(ctx context.Context, chatID string, status string)
}

// Broker defines the message-passing boundary that decouples the orchestrator
// from transport delivery.
type Broker interface {
	// Publish sends a message to a topic with a routing key.
	Publish(ctx context.Context, topic string, routingKey string, message []byte) error

	// Subscribe listens for messages on a topic and routing key. An empty
	// routing key receives every message on the topic.
	Subscribe(ctx context.Context, topic string, routingKey string) (<-chan BrokerMessage, error)

	// Close closes the broker.
	Close() error
}

// BrokerMessage is a message received from the broker.
type BrokerMessage struct {
	Topic      string
	RoutingKey string
	Payload    []byte
	Timestamp  time.Time
}
