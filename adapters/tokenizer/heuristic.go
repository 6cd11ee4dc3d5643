package tokenizer

import (
	"unicode/utf8"

	"github.com/palaverhq/palaver/domain"
)

// Heuristic estimates token counts from rune counts. The ratio is calibrated
// for current chat models (~4 characters per token).
type Heuristic struct {
	runesPerToken float64
}

func New() domain.Tokenizer {
	return &Heuristic{runesPerToken: 4.0}
}

func (h *Heuristic) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	runeCount := utf8.RuneCountInString(text)
	tokens := int(float64(runeCount) / h.runesPerToken)
	if tokens == 0 {
		return 1
	}
	return tokens
}
