package usecase

import (
	"fmt"
	"strings"

	"github.com/palaverhq/palaver/domain"
)

const historyTimeFormat = "Mon, 02 Jan 2006 15:04:05 MST"

// formatHistoryLine renders one stored message as a chat-transcript line.
// Bot lines use the literal author "bot" so the extraction stop sequence
// "] bot:" terminates spurious continuations. Serialized plan payloads are
// collapsed to a one-line summary before they are counted against any budget.
func formatHistoryLine(msg *domain.ChatMessage) string {
	content := msg.Content
	if msg.Kind == domain.KindPlan {
		content = domain.SummarizePlanContent(content)
	}

	author := msg.AuthorName
	if msg.Role == domain.BotRole {
		author = "bot"
	}

	return fmt.Sprintf("[%s] %s: %s", msg.CreatedAt.Format(historyTimeFormat), author, content)
}

// historyWindow selects messages most-recent-first until the next one would
// exceed the budget, then restores chronological order for the prompt.
// Re-running with the same inputs yields the same window.
func historyWindow(messages []*domain.ChatMessage, tokenBudget int, tokenizer domain.Tokenizer) string {
	remaining := tokenBudget
	var selected []string

	for i := len(messages) - 1; i >= 0; i-- {
		line := formatHistoryLine(messages[i])
		cost := tokenizer.CountTokens(line)
		if cost > remaining {
			break
		}
		remaining -= cost
		selected = append(selected, line)
	}

	// Reverse back to chronological order.
	for i, j := 0, len(selected)-1; i < j; i, j = i+1, j-1 {
		selected[i], selected[j] = selected[j], selected[i]
	}

	return strings.Join(selected, "\n")
}
