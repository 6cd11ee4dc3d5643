package usecase

import "github.com/palaverhq/palaver/domain"

// TokenAccountant tracks per-stage token usage across one turn, exposed once
// at the end on the persisted message.
type TokenAccountant struct {
	usage domain.TokenUsage
}

func NewTokenAccountant() *TokenAccountant {
	return &TokenAccountant{usage: domain.TokenUsage{}}
}

// Record adds tokens consumed by a stage.
func (a *TokenAccountant) Record(stage string, tokens int) {
	a.usage.Add(stage, tokens)
}

// Snapshot returns an independent copy of the accumulated usage.
func (a *TokenAccountant) Snapshot() domain.TokenUsage {
	return a.usage.Clone()
}
