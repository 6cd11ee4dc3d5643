package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/palaverhq/palaver/domain"
	"github.com/palaverhq/palaver/utils/log"
	"go.uber.org/zap"
)

// extractionStop terminates spurious transcript continuation in extraction
// completions. It matches the bot line prefix produced by formatHistoryLine.
const extractionStop = "] bot:"

const intentInstructions = `Rewrite the last message to reflect the user's intent, taking into consideration the provided chat history.
The output should be a single rewritten sentence that describes the user's intent and is understandable outside of the context of the chat history, in a way that will be useful for creating an embedding for semantic search.
If it appears the user is trying to switch context, do not rewrite it and instead return what was submitted.
DO NOT offer additional commentary and DO NOT return a list of possible rewritten intents, JUST PICK ONE.`

const audienceInstructions = `Extract the list of participants from the chat history, excluding the bot.
The output should be a comma separated list of names.
DO NOT offer additional commentary.`

const historyLabel = "\n\nChat history:\n"

// Extractor derives structured signals (intent, audience) from conversation
// history via one language-model completion per signal.
type Extractor struct {
	llm       domain.Llm
	tokenizer domain.Tokenizer
	profile   domain.SamplingProfile
}

func NewExtractor(llm domain.Llm, tokenizer domain.Tokenizer) *Extractor {
	return &Extractor{
		llm:       llm,
		tokenizer: tokenizer,
		// Deterministic profile, distinct from the main chat profile.
		profile: domain.SamplingProfile{
			Temperature:      0,
			TopP:             1,
			FrequencyPenalty: 0.5,
			PresencePenalty:  0.5,
			MaxTokens:        256,
			StopSequences:    []string{extractionStop},
		},
	}
}

// ExtractIntent rewrites the latest user message into a standalone intent
// statement, using at most tokenLimit tokens of history.
func (e *Extractor) ExtractIntent(ctx context.Context, systemDescription string, history []*domain.ChatMessage, tokenLimit int) (string, int, error) {
	return e.extract(ctx, "intent", systemDescription, intentInstructions, "REWRITTEN INTENT:", history, tokenLimit)
}

// ExtractAudience lists the chat participants other than the bot, using at
// most tokenLimit tokens of history.
func (e *Extractor) ExtractAudience(ctx context.Context, systemDescription string, history []*domain.ChatMessage, tokenLimit int) (string, int, error) {
	return e.extract(ctx, "audience", systemDescription, audienceInstructions, "PARTICIPANTS:", history, tokenLimit)
}

func (e *Extractor) extract(ctx context.Context, signal, systemDescription, instructions, marker string, history []*domain.ChatMessage, tokenLimit int) (string, int, error) {
	// The fixed cost counts the same strings the builder emits below, so the
	// history window gets exactly what the instructions leave over.
	fixed := systemDescription + "\n\n" + instructions + historyLabel + "\n\n" + marker
	historyBudget := clampTokens(tokenLimit - e.tokenizer.CountTokens(fixed))
	window := historyWindow(history, historyBudget, e.tokenizer)

	var b strings.Builder
	b.WriteString(systemDescription)
	b.WriteString("\n\n")
	b.WriteString(instructions)
	if window != "" {
		b.WriteString(historyLabel)
		b.WriteString(window)
	}
	b.WriteString("\n\n")
	b.WriteString(marker)
	prompt := b.String()

	result, err := e.llm.CompleteText(ctx, prompt, e.profile)
	if err != nil {
		return "", 0, fmt.Errorf("%w: extracting %s: %v", domain.ErrExtractionFailed, signal, err)
	}
	result = strings.TrimSpace(result)

	tokens := e.tokenizer.CountTokens(prompt) + e.tokenizer.CountTokens(result)
	log.WithCtx(ctx).Debug("extraction completed",
		zap.String("signal", signal),
		zap.Int("tokens", tokens))

	return result, tokens, nil
}
