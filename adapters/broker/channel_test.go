package broker

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribeExactKey(t *testing.T) {
	b := NewChannelBroker()
	defer b.Close()

	ch, err := b.Subscribe(context.Background(), "chat.events", "chat1")
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), "chat.events", "chat1", []byte("hello")))

	msg := <-ch
	assert.Equal(t, "chat.events", msg.Topic)
	assert.Equal(t, "chat1", msg.RoutingKey)
	assert.Equal(t, []byte("hello"), msg.Payload)
}

func TestPublishReachesWildcardSubscriber(t *testing.T) {
	b := NewChannelBroker()
	defer b.Close()

	wildcard, err := b.Subscribe(context.Background(), "chat.events", "")
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), "chat.events", "chat1", []byte("hello")))

	msg := <-wildcard
	assert.Equal(t, "chat1", msg.RoutingKey)
	assert.Equal(t, []byte("hello"), msg.Payload)
}

func TestPublishAfterClose(t *testing.T) {
	b := NewChannelBroker()
	require.NoError(t, b.Close())

	err := b.Publish(context.Background(), "chat.events", "chat1", []byte("hello"))
	assert.Error(t, err)
}

func TestPublishFullChannel(t *testing.T) {
	b := NewChannelBroker()
	defer b.Close()

	_, err := b.Subscribe(context.Background(), "chat.events", "chat1")
	require.NoError(t, err)

	// Fill the unread subscriber buffer, then one more.
	for i := 0; i < 100; i++ {
		require.NoError(t, b.Publish(context.Background(), "chat.events", "chat1", []byte("x")))
	}
	err = b.Publish(context.Background(), "chat.events", "chat1", []byte("overflow"))
	assert.Error(t, err)
}

func TestPublishDuringClose(t *testing.T) {
	// Close must never close a channel with a send in flight.
	for i := 0; i < 50; i++ {
		b := NewChannelBroker()
		_, err := b.Subscribe(context.Background(), "chat.events", "chat1")
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				b.Publish(context.Background(), "chat.events", "chat1", []byte("x"))
			}
		}()
		go func() {
			defer wg.Done()
			b.Close()
		}()
		wg.Wait()
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	b := NewChannelBroker()
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.Zero(t, b.TopicCount())
}
