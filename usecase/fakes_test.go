package usecase

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/palaverhq/palaver/domain"
)

// runeTokenizer counts one token per rune, making budget math exact in tests.
type runeTokenizer struct{}

func (runeTokenizer) CountTokens(text string) int {
	return utf8.RuneCountInString(text)
}

type fakeLlm struct {
	completeFn func(ctx context.Context, prompt string, profile domain.SamplingProfile) (string, error)
	streamFn   func(ctx context.Context, prompt string, profile domain.SamplingProfile) (<-chan domain.Chunk, error)

	mu              sync.Mutex
	completePrompts []string
	streamPrompts   []string
}

func (f *fakeLlm) CompleteText(ctx context.Context, prompt string, profile domain.SamplingProfile) (string, error) {
	f.mu.Lock()
	f.completePrompts = append(f.completePrompts, prompt)
	f.mu.Unlock()
	return f.completeFn(ctx, prompt, profile)
}

func (f *fakeLlm) StreamChat(ctx context.Context, prompt string, profile domain.SamplingProfile) (<-chan domain.Chunk, error) {
	f.mu.Lock()
	f.streamPrompts = append(f.streamPrompts, prompt)
	f.mu.Unlock()
	return f.streamFn(ctx, prompt, profile)
}

// chunkStream builds a closed channel pre-loaded with text chunks.
func chunkStream(texts ...string) <-chan domain.Chunk {
	ch := make(chan domain.Chunk, len(texts))
	for _, t := range texts {
		ch <- domain.Chunk{Text: t}
	}
	close(ch)
	return ch
}

type fakeMemoryStore struct {
	queryFn func(ctx context.Context, kind domain.MemoryKind, intent, chatID string, tokenBudget int) (string, error)

	mu      sync.Mutex
	queries []domain.MemoryKind
}

func (f *fakeMemoryStore) Query(ctx context.Context, kind domain.MemoryKind, intent, chatID string, tokenBudget int) (string, error) {
	f.mu.Lock()
	f.queries = append(f.queries, kind)
	f.mu.Unlock()
	return f.queryFn(ctx, kind, intent, chatID, tokenBudget)
}

func (f *fakeMemoryStore) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

type fakePlanner struct {
	result domain.PlanResult
	err    error

	mu      sync.Mutex
	intents []string
	budgets []int
}

func (f *fakePlanner) AcquirePlan(ctx context.Context, intent string, tokenBudget int) (domain.PlanResult, error) {
	f.mu.Lock()
	f.intents = append(f.intents, intent)
	f.budgets = append(f.budgets, tokenBudget)
	f.mu.Unlock()
	return f.result, f.err
}

type pushedEvent struct {
	kind    domain.EventKind
	message domain.ChatMessage
}

// fakeNotifier records every push for assertions.
type fakeNotifier struct {
	mu       sync.Mutex
	events   []pushedEvent
	statuses []string
}

func (f *fakeNotifier) PushMessage(ctx context.Context, kind domain.EventKind, msg *domain.ChatMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, pushedEvent{kind: kind, message: *msg})
}

func (f *fakeNotifier) PushStatus(ctx context.Context, chatID string, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
}

func (f *fakeNotifier) eventKinds() []domain.EventKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	kinds := make([]domain.EventKind, len(f.events))
	for i, e := range f.events {
		kinds[i] = e.kind
	}
	return kinds
}

type fakeHasher struct{}

func (fakeHasher) Hash(data []byte) string {
	return fmt.Sprintf("fp-%d", len(data))
}

type fakeSessionStore struct {
	sessions map[string]*domain.ChatSession
}

func (f *fakeSessionStore) GetSession(ctx context.Context, chatID string) (*domain.ChatSession, error) {
	session, ok := f.sessions[chatID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}
