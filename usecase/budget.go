package usecase

import "github.com/palaverhq/palaver/domain"

// BudgetConfig holds the turn-wide token limits and the stage weights.
// Weights are independent, unclamped multipliers over the main context
// budget; if they sum above 1.0 downstream stages simply clip harder.
type BudgetConfig struct {
	CompletionTokenLimit     int
	ResponseTokenReservation int
	PlanWeight               float64
	SemanticMemoryWeight     float64
	DocumentMemoryWeight     float64
}

// BudgetAllocator computes remaining-token budgets at each pipeline stage.
// A budget never goes negative; an exhausted budget degrades to empty
// contributions downstream, never to an error.
type BudgetAllocator struct {
	tokenizer domain.Tokenizer
	config    BudgetConfig
}

func NewBudgetAllocator(tokenizer domain.Tokenizer, config BudgetConfig) *BudgetAllocator {
	return &BudgetAllocator{tokenizer: tokenizer, config: config}
}

// Remaining computes the budget left after the response reservation and the
// fixed system text are carved out of the completion token limit. Called once
// at pipeline start.
func (a *BudgetAllocator) Remaining(fixedSystemText string) int {
	remaining := a.config.CompletionTokenLimit -
		a.config.ResponseTokenReservation -
		a.tokenizer.CountTokens(fixedSystemText)
	return clampTokens(remaining)
}

// ContextBudget narrows the remaining budget once intent and audience are
// known. Called a second time before retrieval and assembly.
func (a *BudgetAllocator) ContextBudget(remaining int, intent, audience string) int {
	budget := remaining -
		a.tokenizer.CountTokens(intent) -
		a.tokenizer.CountTokens(audience)
	return clampTokens(budget)
}

// PlanBudget is the share of the context budget handed to the planner.
func (a *BudgetAllocator) PlanBudget(contextBudget int) int {
	return fraction(contextBudget, a.config.PlanWeight)
}

// SemanticMemoryBudget is the token cap for the semantic memory query.
func (a *BudgetAllocator) SemanticMemoryBudget(contextBudget int) int {
	return fraction(contextBudget, a.config.SemanticMemoryWeight)
}

// DocumentMemoryBudget is the token cap for the document memory query.
func (a *BudgetAllocator) DocumentMemoryBudget(contextBudget int) int {
	return fraction(contextBudget, a.config.DocumentMemoryWeight)
}

func fraction(budget int, weight float64) int {
	return clampTokens(int(float64(budget) * weight))
}

func clampTokens(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
