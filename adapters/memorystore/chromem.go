package memorystore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/palaverhq/palaver/domain"
	"github.com/palaverhq/palaver/utils/log"
	"go.uber.org/zap"
)

const maxQueryResults = 10

// Store implements domain.MemoryStore on chromem-go with one collection per
// chat and memory kind, persisted on disk.
type Store struct {
	mu      sync.RWMutex
	db      *chromem.DB
	embedFn chromem.EmbeddingFunc
}

// New creates (or opens) the persistent vector store at dataDir/memories/.
func New(dataDir string, embedFn chromem.EmbeddingFunc) (*Store, error) {
	dir := filepath.Join(dataDir, "memories")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create memory store dir: %w", err)
	}
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}
	return &Store{db: db, embedFn: embedFn}, nil
}

func collectionName(kind domain.MemoryKind, chatID string) string {
	return fmt.Sprintf("chat_%s_%s", chatID, kind)
}

func (s *Store) getOrCreateCollection(kind domain.MemoryKind, chatID string) (*chromem.Collection, error) {
	name := collectionName(kind, chatID)
	col := s.db.GetCollection(name, s.embedFn)
	if col == nil {
		var err error
		col, err = s.db.CreateCollection(name, nil, s.embedFn)
		if err != nil {
			return nil, fmt.Errorf("create collection %s: %w", name, err)
		}
	}
	return col, nil
}

// Upsert indexes (or re-indexes) a memory snippet for a chat.
func (s *Store) Upsert(ctx context.Context, kind domain.MemoryKind, chatID, id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.getOrCreateCollection(kind, chatID)
	if err != nil {
		return err
	}
	return col.AddDocument(ctx, chromem.Document{ID: id, Content: content})
}

// Query returns the top-ranked snippets for the intent, concatenated in rank
// order and trimmed so the total stays within the token budget.
func (s *Store) Query(ctx context.Context, kind domain.MemoryKind, intent, chatID string, tokenBudget int) (string, error) {
	if tokenBudget <= 0 || intent == "" {
		return "", nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	col := s.db.GetCollection(collectionName(kind, chatID), s.embedFn)
	if col == nil || col.Count() == 0 {
		return "", nil
	}

	n := maxQueryResults
	if count := col.Count(); count < n {
		n = count
	}
	results, err := col.Query(ctx, intent, n, nil, nil)
	if err != nil {
		return "", fmt.Errorf("query %s memories: %w", kind, err)
	}

	// Trim ranked hits to the budget. The same rune-ratio heuristic used
	// by the orchestrator keeps both sides of the contract consistent.
	remaining := tokenBudget
	var snippets []string
	for _, r := range results {
		cost := estimateTokens(r.Content)
		if cost > remaining {
			break
		}
		remaining -= cost
		snippets = append(snippets, r.Content)
	}

	log.WithCtx(ctx).Debug("memory query completed",
		zap.String("kind", string(kind)),
		zap.Int("hits", len(results)),
		zap.Int("kept", len(snippets)))
	return strings.Join(snippets, "\n"), nil
}

func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	tokens := len([]rune(text)) / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}
