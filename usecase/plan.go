package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/palaverhq/palaver/domain"
	"github.com/palaverhq/palaver/utils/log"
	"go.uber.org/zap"
)

// PlanCancelledContent replaces the stored plan payload when the caller
// cancels a previously proposed plan.
const PlanCancelledContent = domain.PlanCancelledContent

const planStateCancelled = "cancelled"

// planApprovalEnvelope is the caller-submitted resolution of a previously
// proposed plan. State is "approved" or "cancelled"; the rest of the payload
// is the final plan state and is stored verbatim.
type planApprovalEnvelope struct {
	State string `json:"state"`
}

// PlanFlow bridges to the external planning engine and resolves
// approval/cancellation round trips.
type PlanFlow struct {
	planner  domain.Planner
	messages domain.MessageStore
	notifier domain.Notifier
}

func NewPlanFlow(planner domain.Planner, messages domain.MessageStore, notifier domain.Notifier) *PlanFlow {
	return &PlanFlow{planner: planner, messages: messages, notifier: notifier}
}

// Acquire asks the planning engine whether the intent requires a multi-step
// plan, within the given token budget.
func (f *PlanFlow) Acquire(ctx context.Context, intent string, tokenBudget int) (domain.PlanResult, error) {
	result, err := f.planner.AcquirePlan(ctx, intent, tokenBudget)
	if err != nil {
		return domain.PlanResult{}, fmt.Errorf("%w: %v", domain.ErrPlanAcquisitionFailed, err)
	}
	return result, nil
}

// ResolveApproval updates the previously saved plan message in place with the
// final plan state, or with a fixed cancellation message. Re-submitting the
// same payload updates the same message id rather than creating a duplicate.
// The second return value reports whether the plan was cancelled; only a
// cancellation ends the turn.
func (f *PlanFlow) ResolveApproval(ctx context.Context, chatID, planJSON, messageID string) (*domain.ChatMessage, bool, error) {
	stored, err := f.messages.ListMessages(ctx, chatID)
	if err != nil {
		return nil, false, fmt.Errorf("loading messages for plan resolution: %w", err)
	}

	var msg *domain.ChatMessage
	for _, m := range stored {
		if m.ID == messageID {
			msg = m
			break
		}
	}
	if msg == nil {
		return nil, false, fmt.Errorf("plan message %s not found in chat %s", messageID, chatID)
	}

	var envelope planApprovalEnvelope
	if err := json.Unmarshal([]byte(planJSON), &envelope); err != nil {
		return nil, false, fmt.Errorf("decoding plan approval payload: %w", err)
	}

	cancelled := envelope.State == planStateCancelled
	if cancelled {
		msg.Content = PlanCancelledContent
	} else {
		msg.Content = planJSON
	}

	if err := f.messages.UpdateMessage(ctx, msg); err != nil {
		return nil, false, fmt.Errorf("updating plan message: %w", err)
	}
	f.notifier.PushMessage(ctx, domain.EventMessageUpdated, msg)

	log.WithCtx(ctx).Info("plan resolved",
		zap.String("message_id", msg.ID),
		zap.String("state", envelope.State))
	return msg, cancelled, nil
}
