package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/palaverhq/palaver/domain"
	"github.com/palaverhq/palaver/utils/log"
	"go.uber.org/zap"
)

// ChatEventsTopic carries client push events; the routing key is the chat id.
const ChatEventsTopic = "chat.events"

// BrokerNotifier implements domain.Notifier by publishing client events to
// the broker. Delivery failures are logged and swallowed: the orchestrator's
// correctness never depends on the transport.
type BrokerNotifier struct {
	broker domain.Broker
}

func New(broker domain.Broker) *BrokerNotifier {
	return &BrokerNotifier{broker: broker}
}

func (n *BrokerNotifier) PushMessage(ctx context.Context, kind domain.EventKind, msg *domain.ChatMessage) {
	n.publish(ctx, domain.ClientEvent{
		ChatID:    msg.ChatID,
		Kind:      kind,
		Message:   msg,
		Timestamp: time.Now(),
	})
}

func (n *BrokerNotifier) PushStatus(ctx context.Context, chatID string, status string) {
	n.publish(ctx, domain.ClientEvent{
		ChatID:    chatID,
		Kind:      domain.EventStatus,
		Status:    status,
		Timestamp: time.Now(),
	})
}

func (n *BrokerNotifier) publish(ctx context.Context, event domain.ClientEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.WithCtx(ctx).Error("failed to marshal client event", zap.Error(err))
		return
	}
	if err := n.broker.Publish(ctx, ChatEventsTopic, event.ChatID, payload); err != nil {
		log.WithCtx(ctx).Warn("failed to publish client event",
			zap.String("kind", string(event.Kind)),
			zap.Error(err))
	}
}
