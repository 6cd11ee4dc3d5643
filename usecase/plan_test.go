package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/palaverhq/palaver/adapters/storage/memory"
	"github.com/palaverhq/palaver/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPlanMessage(t *testing.T, store *memory.MessageStore) *domain.ChatMessage {
	t.Helper()
	msg := &domain.ChatMessage{
		ID:         "plan-msg-1",
		ChatID:     "chat1",
		AuthorID:   "bot-1",
		AuthorName: "Palaver",
		Role:       domain.BotRole,
		Kind:       domain.KindPlan,
		Content:    `{"intent":"book a flight","description":"two steps"}`,
		Prompt:     "two steps",
		CreatedAt:  time.Now(),
	}
	require.NoError(t, store.AppendMessage(context.Background(), msg))
	return msg
}

func TestResolveApprovalApproved(t *testing.T) {
	store := memory.NewMessageStore()
	notifier := &fakeNotifier{}
	seedPlanMessage(t, store)
	flow := NewPlanFlow(&fakePlanner{}, store, notifier)

	approved := `{"state":"approved","intent":"book a flight","description":"two steps"}`
	msg, cancelled, err := flow.ResolveApproval(context.Background(), "chat1", approved, "plan-msg-1")
	require.NoError(t, err)

	assert.False(t, cancelled)
	assert.Equal(t, "plan-msg-1", msg.ID)
	assert.Equal(t, approved, msg.Content)

	stored, err := store.ListMessages(context.Background(), "chat1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, approved, stored[0].Content)
	assert.Equal(t, []domain.EventKind{domain.EventMessageUpdated}, notifier.eventKinds())
}

func TestResolveApprovalIdempotent(t *testing.T) {
	store := memory.NewMessageStore()
	seedPlanMessage(t, store)
	flow := NewPlanFlow(&fakePlanner{}, store, &fakeNotifier{})

	approved := `{"state":"approved","intent":"book a flight"}`
	first, _, err := flow.ResolveApproval(context.Background(), "chat1", approved, "plan-msg-1")
	require.NoError(t, err)
	second, _, err := flow.ResolveApproval(context.Background(), "chat1", approved, "plan-msg-1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Content, second.Content)

	stored, err := store.ListMessages(context.Background(), "chat1")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestResolveApprovalCancelled(t *testing.T) {
	store := memory.NewMessageStore()
	seedPlanMessage(t, store)
	flow := NewPlanFlow(&fakePlanner{}, store, &fakeNotifier{})

	msg, cancelled, err := flow.ResolveApproval(context.Background(), "chat1", `{"state":"cancelled"}`, "plan-msg-1")
	require.NoError(t, err)

	assert.True(t, cancelled)
	assert.Equal(t, PlanCancelledContent, msg.Content)
}

func TestResolveApprovalUnknownMessage(t *testing.T) {
	flow := NewPlanFlow(&fakePlanner{}, memory.NewMessageStore(), &fakeNotifier{})

	_, _, err := flow.ResolveApproval(context.Background(), "chat1", `{"state":"approved"}`, "missing")
	assert.Error(t, err)
}

func TestAcquireWrapsPlannerFailure(t *testing.T) {
	flow := NewPlanFlow(&fakePlanner{err: errors.New("engine down")}, memory.NewMessageStore(), &fakeNotifier{})

	_, err := flow.Acquire(context.Background(), "intent", 100)
	assert.ErrorIs(t, err, domain.ErrPlanAcquisitionFailed)
}
