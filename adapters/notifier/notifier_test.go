package notifier

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/palaverhq/palaver/adapters/broker"
	"github.com/palaverhq/palaver/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushMessagePublishesEvent(t *testing.T) {
	b := broker.NewChannelBroker()
	defer b.Close()
	ch, err := b.Subscribe(context.Background(), ChatEventsTopic, "chat1")
	require.NoError(t, err)

	n := New(b)
	msg := &domain.ChatMessage{
		ID:        "msg-1",
		ChatID:    "chat1",
		Role:      domain.BotRole,
		Kind:      domain.KindMessage,
		Content:   "hello",
		CreatedAt: time.Now(),
	}
	n.PushMessage(context.Background(), domain.EventMessageCreated, msg)

	raw := <-ch
	var event domain.ClientEvent
	require.NoError(t, json.Unmarshal(raw.Payload, &event))

	assert.Equal(t, "chat1", event.ChatID)
	assert.Equal(t, domain.EventMessageCreated, event.Kind)
	require.NotNil(t, event.Message)
	assert.Equal(t, "hello", event.Message.Content)
}

func TestPushStatusPublishesEvent(t *testing.T) {
	b := broker.NewChannelBroker()
	defer b.Close()
	ch, err := b.Subscribe(context.Background(), ChatEventsTopic, "chat1")
	require.NoError(t, err)

	n := New(b)
	n.PushStatus(context.Background(), "chat1", "Generating bot response")

	raw := <-ch
	var event domain.ClientEvent
	require.NoError(t, json.Unmarshal(raw.Payload, &event))

	assert.Equal(t, domain.EventStatus, event.Kind)
	assert.Equal(t, "Generating bot response", event.Status)
	assert.Nil(t, event.Message)
}

func TestPushSwallowsBrokerFailure(t *testing.T) {
	b := broker.NewChannelBroker()
	require.NoError(t, b.Close())

	n := New(b)
	// Must not panic or propagate the closed-broker error.
	n.PushStatus(context.Background(), "chat1", "status")
}
