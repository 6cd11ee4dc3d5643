package domain

import "context"

// MemoryKind selects which long-term memory index a query runs against.
type MemoryKind string

const (
	SemanticMemory MemoryKind = "semantic"
	DocumentMemory MemoryKind = "document"
)

// MemoryStore answers ranked long-term memory queries. The returned text is
// already trimmed to the token budget by the store.
type MemoryStore interface {
	Query(ctx context.Context, kind MemoryKind, intent string, chatID string, tokenBudget int) (string, error)
}

// Planner bridges to the external planning engine.
type Planner interface {
	AcquirePlan(ctx context.Context, intent string, tokenBudget int) (PlanResult, error)
}

// SessionStore reads chat sessions. Sessions are owned by external storage;
// the orchestrator only reads them.
type SessionStore interface {
	GetSession(ctx context.Context, chatID string) (*ChatSession, error)
}

// MessageStore persists chat messages. ListMessages returns messages ordered
// by timestamp. Per-id operations are atomic.
type MessageStore interface {
	AppendMessage(ctx context.Context, msg *ChatMessage) error
	UpdateMessage(ctx context.Context, msg *ChatMessage) error
	ListMessages(ctx context.Context, chatID string) ([]*ChatMessage, error)
}

// Tokenizer estimates the token cost of a piece of text.
type Tokenizer interface {
	CountTokens(text string) int
}

// Hasher fingerprints rendered prompts for traceability.
type Hasher interface {
	Hash(data []byte) string
}
