package usecase

import (
	"context"
	"fmt"

	"github.com/palaverhq/palaver/domain"
	"golang.org/x/sync/errgroup"
)

// Retriever fans out the semantic and document memory queries concurrently
// and joins both before assembly proceeds.
type Retriever struct {
	memories domain.MemoryStore
}

func NewRetriever(memories domain.MemoryStore) *Retriever {
	return &Retriever{memories: memories}
}

// Retrieve runs both queries for the same intent and chat, each under its own
// token cap. The result ordering is fixed [semantic, document] regardless of
// completion order. Either failure propagates; neither is masked.
func (r *Retriever) Retrieve(ctx context.Context, intent, chatID string, semanticBudget, documentBudget int) (string, string, error) {
	var semantic, document string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		text, err := r.memories.Query(gctx, domain.SemanticMemory, intent, chatID, semanticBudget)
		if err != nil {
			return fmt.Errorf("%w: semantic query: %v", domain.ErrRetrievalFailed, err)
		}
		semantic = text
		return nil
	})
	g.Go(func() error {
		text, err := r.memories.Query(gctx, domain.DocumentMemory, intent, chatID, documentBudget)
		if err != nil {
			return fmt.Errorf("%w: document query: %v", domain.ErrRetrievalFailed, err)
		}
		document = text
		return nil
	})

	if err := g.Wait(); err != nil {
		return "", "", err
	}
	return semantic, document, nil
}
