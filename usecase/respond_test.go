package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/palaverhq/palaver/adapters/storage/memory"
	"github.com/palaverhq/palaver/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	service  *ResponseService
	llm      *fakeLlm
	memories *fakeMemoryStore
	planner  *fakePlanner
	notifier *fakeNotifier
	messages *memory.MessageStore
	sessions *memory.SessionStore
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	llm := &fakeLlm{
		completeFn: func(ctx context.Context, prompt string, profile domain.SamplingProfile) (string, error) {
			if strings.Contains(prompt, "REWRITTEN INTENT:") {
				return "user greets the bot", nil
			}
			return "alice", nil
		},
		streamFn: func(ctx context.Context, prompt string, profile domain.SamplingProfile) (<-chan domain.Chunk, error) {
			return chunkStream("Hi ", "alice"), nil
		},
	}
	memories := &fakeMemoryStore{
		queryFn: func(ctx context.Context, kind domain.MemoryKind, intent, chatID string, tokenBudget int) (string, error) {
			if kind == domain.SemanticMemory {
				return "semantic facts", nil
			}
			return "document facts", nil
		},
	}
	planner := &fakePlanner{result: domain.PlanResult{Result: "plan outcome"}}
	notifier := &fakeNotifier{}
	messages := memory.NewMessageStore()
	sessions := memory.NewSessionStore()
	require.NoError(t, sessions.CreateSession(context.Background(), &domain.ChatSession{
		ID:                "chat1",
		SystemDescription: "You are Palaver, a helpful chat bot.",
		CreatedAt:         time.Now(),
	}))

	service := NewResponseService(ResponseServiceDeps{
		Llm:       llm,
		Sessions:  sessions,
		Messages:  messages,
		Memories:  memories,
		Planner:   planner,
		Notifier:  notifier,
		Tokenizer: runeTokenizer{},
		Hasher:    fakeHasher{},
		Budget: BudgetConfig{
			CompletionTokenLimit:     8192,
			ResponseTokenReservation: 512,
			PlanWeight:               0.3,
			SemanticMemoryWeight:     0.3,
			DocumentMemoryWeight:     0.3,
		},
		Options: DefaultPromptOptions(),
		BotID:   "bot-1",
		BotName: "Palaver",
	})

	return &serviceFixture{
		service:  service,
		llm:      llm,
		memories: memories,
		planner:  planner,
		notifier: notifier,
		messages: messages,
		sessions: sessions,
	}
}

func TestGenerateResponseHappyPath(t *testing.T) {
	f := newServiceFixture(t)

	msg, err := f.service.GenerateResponse(context.Background(), GenerateInput{
		Message:  "hello bot",
		UserID:   "u1",
		UserName: "alice",
		ChatID:   "chat1",
	})
	require.NoError(t, err)

	assert.Equal(t, "Hi alice", msg.Content)
	assert.Equal(t, domain.BotRole, msg.Role)
	assert.Equal(t, domain.KindMessage, msg.Kind)

	// All three accounted stages appear on the persisted message.
	assert.Positive(t, msg.TokenUsage[domain.StageIntentExtraction])
	assert.Positive(t, msg.TokenUsage[domain.StageAudienceExtraction])
	assert.Positive(t, msg.TokenUsage[domain.StageSystemCompletion])

	stored, err := f.messages.ListMessages(context.Background(), "chat1")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "hello bot", stored[0].Content)
	assert.Equal(t, domain.UserRole, stored[0].Role)
	assert.Equal(t, "Hi alice", stored[1].Content)

	// The planner saw the rewritten intent, not the raw message.
	require.Len(t, f.planner.intents, 1)
	assert.Equal(t, "user greets the bot", f.planner.intents[0])

	// The final prompt folds in memories, history, and the plan result.
	require.Len(t, f.llm.streamPrompts, 1)
	prompt := f.llm.streamPrompts[0]
	assert.Contains(t, prompt, "semantic facts")
	assert.Contains(t, prompt, "document facts")
	assert.Contains(t, prompt, "plan outcome")
	assert.Contains(t, prompt, "alice: hello bot")

	assert.Equal(t, []string{
		"Calculating remaining token budget",
		"Extracting user intent",
		"Extracting audience",
		"Acquiring an external plan",
		"Extracting semantic and document memories",
		"Generating bot response",
	}, f.notifier.statuses)
}

func TestGenerateResponseProposedPlanShortCircuits(t *testing.T) {
	f := newServiceFixture(t)
	plan := &domain.ProposedPlan{
		Intent:      "book a flight",
		Description: "Search flights, then book the cheapest.",
		Steps:       []domain.PlanStep{{Name: "search_flights"}},
		ProposedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	f.planner.result = domain.PlanResult{Proposed: plan}

	msg, err := f.service.GenerateResponse(context.Background(), GenerateInput{
		Message:  "book me a flight",
		UserID:   "u1",
		UserName: "alice",
		ChatID:   "chat1",
	})
	require.NoError(t, err)

	serialized, serr := plan.Serialize()
	require.NoError(t, serr)

	assert.Equal(t, domain.KindPlan, msg.Kind)
	assert.Equal(t, serialized, msg.Content)
	assert.Equal(t, plan.Description, msg.Prompt)
	assert.Positive(t, msg.TokenUsage[domain.StageIntentExtraction])

	// Retrieval and streaming never ran.
	assert.Zero(t, f.memories.queryCount())
	assert.Empty(t, f.llm.streamPrompts)

	stored, err := f.messages.ListMessages(context.Background(), "chat1")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, domain.KindPlan, stored[1].Kind)
	assert.Contains(t, f.notifier.eventKinds(), domain.EventMessageCreated)
}

func TestGenerateResponsePlanApprovalContinuesGeneration(t *testing.T) {
	f := newServiceFixture(t)
	seedPlanMessage(t, f.messages)

	approved := `{"state":"approved","intent":"book a flight"}`
	msg, err := f.service.GenerateResponse(context.Background(), GenerateInput{
		UserID:           "u1",
		UserName:         "alice",
		ChatID:           "chat1",
		ApprovedPlanJSON: approved,
		MessageID:        "plan-msg-1",
	})
	require.NoError(t, err)

	// The approved plan feeds the turn; the user still gets a generated
	// response rather than the echoed plan payload.
	assert.Equal(t, "Hi alice", msg.Content)
	assert.Equal(t, domain.BotRole, msg.Role)
	assert.Equal(t, domain.KindMessage, msg.Kind)

	// The stored plan message was updated in place; the bot response is the
	// only new message.
	stored, err := f.messages.ListMessages(context.Background(), "chat1")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "plan-msg-1", stored[0].ID)
	assert.Equal(t, approved, stored[0].Content)
	assert.Equal(t, domain.KindPlan, stored[0].Kind)
	assert.Equal(t, domain.BotRole, stored[1].Role)

	// No new plan acquisition runs; the approved plan is the plan context.
	assert.Empty(t, f.planner.intents)
	require.Len(t, f.llm.streamPrompts, 1)
	assert.Contains(t, f.llm.streamPrompts[0], approved)

	// Retrieval and extraction still ran.
	assert.Equal(t, 2, f.memories.queryCount())
	assert.Len(t, f.llm.completePrompts, 2)
}

func TestGenerateResponsePlanCancellationShortCircuits(t *testing.T) {
	f := newServiceFixture(t)
	seedPlanMessage(t, f.messages)

	msg, err := f.service.GenerateResponse(context.Background(), GenerateInput{
		UserID:           "u1",
		UserName:         "alice",
		ChatID:           "chat1",
		ApprovedPlanJSON: `{"state":"cancelled"}`,
		MessageID:        "plan-msg-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "plan-msg-1", msg.ID)
	assert.Equal(t, PlanCancelledContent, msg.Content)

	// The cancellation turn persists no new message and calls no model.
	stored, err := f.messages.ListMessages(context.Background(), "chat1")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
	assert.Empty(t, f.llm.completePrompts)
	assert.Empty(t, f.llm.streamPrompts)
	assert.Zero(t, f.memories.queryCount())
}

func TestGenerateResponseSessionNotFound(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.GenerateResponse(context.Background(), GenerateInput{
		Message: "hello",
		ChatID:  "no-such-chat",
	})

	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestGenerateResponseExtractionFailure(t *testing.T) {
	f := newServiceFixture(t)
	f.llm.completeFn = func(ctx context.Context, prompt string, profile domain.SamplingProfile) (string, error) {
		return "", errors.New("model unavailable")
	}

	_, err := f.service.GenerateResponse(context.Background(), GenerateInput{
		Message:  "hello bot",
		UserID:   "u1",
		UserName: "alice",
		ChatID:   "chat1",
	})
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)

	// The user message was already persisted; no bot message followed.
	stored, listErr := f.messages.ListMessages(context.Background(), "chat1")
	require.NoError(t, listErr)
	require.Len(t, stored, 1)
	assert.Equal(t, domain.UserRole, stored[0].Role)
}

func TestGenerateResponsePlannerFailure(t *testing.T) {
	f := newServiceFixture(t)
	f.planner.err = errors.New("engine down")

	_, err := f.service.GenerateResponse(context.Background(), GenerateInput{
		Message:  "hello bot",
		UserID:   "u1",
		UserName: "alice",
		ChatID:   "chat1",
	})

	assert.ErrorIs(t, err, domain.ErrPlanAcquisitionFailed)
	assert.Zero(t, f.memories.queryCount())
}
