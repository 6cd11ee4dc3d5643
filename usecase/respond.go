package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/palaverhq/palaver/domain"
	"github.com/palaverhq/palaver/utils/log"
	"go.uber.org/zap"
)

// ResponseService orchestrates the generation of one bot response per
// incoming user message: budget seeding, intent/audience extraction, plan
// acquisition, concurrent memory retrieval, prompt assembly, and streamed
// delivery, with per-stage token accounting throughout.
type ResponseService struct {
	sessions  domain.SessionStore
	messages  domain.MessageStore
	notifier  domain.Notifier
	tokenizer domain.Tokenizer

	allocator *BudgetAllocator
	extractor *Extractor
	retriever *Retriever
	planFlow  *PlanFlow
	assembler *Assembler
	streamer  *Streamer

	opts    PromptOptions
	botID   string
	botName string
	now     func() time.Time
	newID   func() string
}

// ResponseServiceDeps wires the external collaborators into the service.
type ResponseServiceDeps struct {
	Llm       domain.Llm
	Sessions  domain.SessionStore
	Messages  domain.MessageStore
	Memories  domain.MemoryStore
	Planner   domain.Planner
	Notifier  domain.Notifier
	Tokenizer domain.Tokenizer
	Hasher    domain.Hasher

	Budget      BudgetConfig
	ChatProfile domain.SamplingProfile
	Options     PromptOptions
	BotID       string
	BotName     string
}

func NewResponseService(d ResponseServiceDeps) *ResponseService {
	newID := func() string { return uuid.NewString() }
	return &ResponseService{
		sessions:  d.Sessions,
		messages:  d.Messages,
		notifier:  d.Notifier,
		tokenizer: d.Tokenizer,
		allocator: NewBudgetAllocator(d.Tokenizer, d.Budget),
		extractor: NewExtractor(d.Llm, d.Tokenizer),
		retriever: NewRetriever(d.Memories),
		planFlow:  NewPlanFlow(d.Planner, d.Messages, d.Notifier),
		assembler: NewAssembler(d.Tokenizer, d.Hasher),
		streamer:  NewStreamer(d.Llm, d.Messages, d.Notifier, d.Tokenizer, d.ChatProfile, newID),
		opts:      d.Options,
		botID:     d.BotID,
		botName:   d.BotName,
		now:       time.Now,
		newID:     newID,
	}
}

// GenerateInput is one turn request. ApprovedPlanJSON and MessageID together
// signal the resolution of a previously proposed plan.
type GenerateInput struct {
	Message  string
	UserID   string
	UserName string
	ChatID   string
	Kind     domain.MessageKind

	ApprovedPlanJSON string
	MessageID        string
}

// GenerateResponse runs one complete turn and returns the final bot message.
// It is idempotent only with respect to plan-approval updates.
func (s *ResponseService) GenerateResponse(ctx context.Context, in GenerateInput) (*domain.ChatMessage, error) {
	ctx = log.WithChat(ctx, in.ChatID, in.UserID)

	session, err := s.sessions.GetSession(ctx, in.ChatID)
	if err != nil {
		return nil, err
	}

	// Working copy for this turn; the shared options are never mutated.
	opts := s.opts.Clone()
	opts.SystemDescription = session.SystemDescription

	// A plan resolution updates the previously saved message in place. Only
	// a cancellation ends the turn; an approved plan carries on into normal
	// generation with the final plan state as background context.
	var approvedPlan string
	if in.ApprovedPlanJSON != "" && in.MessageID != "" {
		resolved, cancelled, err := s.planFlow.ResolveApproval(ctx, in.ChatID, in.ApprovedPlanJSON, in.MessageID)
		if err != nil {
			return nil, err
		}
		if cancelled {
			return resolved, nil
		}
		approvedPlan = resolved.Content
	} else {
		kind := in.Kind
		if kind == "" {
			kind = domain.KindMessage
		}
		userMsg := &domain.ChatMessage{
			ID:         s.newID(),
			ChatID:     in.ChatID,
			AuthorID:   in.UserID,
			AuthorName: in.UserName,
			Role:       domain.UserRole,
			Kind:       kind,
			Content:    in.Message,
			CreatedAt:  s.now(),
		}
		if err := s.messages.AppendMessage(ctx, userMsg); err != nil {
			return nil, fmt.Errorf("persisting user message: %w", err)
		}
	}

	accountant := NewTokenAccountant()

	s.notifier.PushStatus(ctx, in.ChatID, "Calculating remaining token budget")
	remaining := s.allocator.Remaining(opts.FixedSystemText())

	history, err := s.messages.ListMessages(ctx, in.ChatID)
	if err != nil {
		return nil, fmt.Errorf("loading chat history: %w", err)
	}

	s.notifier.PushStatus(ctx, in.ChatID, "Extracting user intent")
	intent, tokens, err := s.extractor.ExtractIntent(ctx, opts.SystemDescription, history, remaining)
	if err != nil {
		return nil, err
	}
	accountant.Record(domain.StageIntentExtraction, tokens)

	s.notifier.PushStatus(ctx, in.ChatID, "Extracting audience")
	audience, tokens, err := s.extractor.ExtractAudience(ctx, opts.SystemDescription, history, remaining)
	if err != nil {
		return nil, err
	}
	accountant.Record(domain.StageAudienceExtraction, tokens)

	contextBudget := s.allocator.ContextBudget(remaining, intent, audience)

	// An approved plan already is the plan context; no new acquisition runs.
	var planResult domain.PlanResult
	if approvedPlan != "" {
		planResult = domain.PlanResult{Result: approvedPlan}
	} else {
		s.notifier.PushStatus(ctx, in.ChatID, "Acquiring an external plan")
		planResult, err = s.planFlow.Acquire(ctx, intent, s.allocator.PlanBudget(contextBudget))
		if err != nil {
			return nil, err
		}
		if planResult.Proposed != nil {
			return s.proposePlan(ctx, in.ChatID, planResult.Proposed, accountant)
		}
	}

	s.notifier.PushStatus(ctx, in.ChatID, "Extracting semantic and document memories")
	semantic, document, err := s.retriever.Retrieve(ctx, intent, in.ChatID,
		s.allocator.SemanticMemoryBudget(contextBudget),
		s.allocator.DocumentMemoryBudget(contextBudget))
	if err != nil {
		return nil, err
	}

	prompt, err := s.assembler.Assemble(AssembleInput{
		Options:       opts,
		Audience:      audience,
		Intent:        intent,
		Semantic:      semantic,
		Document:      document,
		PlanResult:    planResult.Result,
		History:       history,
		ContextBudget: contextBudget,
	})
	if err != nil {
		return nil, err
	}
	log.WithCtx(ctx).Debug("prompt assembled",
		zap.String("fingerprint", prompt.Fingerprint),
		zap.Int("prompt_tokens", s.tokenizer.CountTokens(prompt.Rendered)))

	s.notifier.PushStatus(ctx, in.ChatID, "Generating bot response")
	return s.streamer.Stream(ctx, StreamInput{
		ChatID:  in.ChatID,
		BotID:   s.botID,
		BotName: s.botName,
		Prompt:  prompt,
		Usage:   accountant.Snapshot(),
	})
}

// proposePlan persists a bot message whose content is exactly the serialized
// proposed plan, skipping retrieval, assembly, and streaming entirely.
func (s *ResponseService) proposePlan(ctx context.Context, chatID string, plan *domain.ProposedPlan, accountant *TokenAccountant) (*domain.ChatMessage, error) {
	serialized, err := plan.Serialize()
	if err != nil {
		return nil, err
	}

	msg := &domain.ChatMessage{
		ID:         s.newID(),
		ChatID:     chatID,
		AuthorID:   s.botID,
		AuthorName: s.botName,
		Role:       domain.BotRole,
		Kind:       domain.KindPlan,
		Content:    serialized,
		Prompt:     plan.Description,
		TokenUsage: accountant.Snapshot(),
		CreatedAt:  s.now(),
	}
	if err := s.messages.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("persisting plan message: %w", err)
	}
	s.notifier.PushMessage(ctx, domain.EventMessageCreated, msg)

	log.WithCtx(ctx).Info("plan proposed, short-circuiting turn",
		zap.String("message_id", msg.ID))
	return msg, nil
}
