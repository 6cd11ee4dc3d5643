package domain

// Pipeline stage names used as TokenUsage keys.
const (
	StageIntentExtraction   = "IntentExtraction"
	StageAudienceExtraction = "AudienceExtraction"
	StageSystemCompletion   = "SystemCompletion"
)

// TokenUsage maps a pipeline stage name to the tokens it consumed during a
// turn. Accumulated across stages and attached to the final bot message.
type TokenUsage map[string]int

// Add records tokens consumed by a stage, accumulating across calls.
func (u TokenUsage) Add(stage string, tokens int) {
	u[stage] += tokens
}

// Total returns the tokens consumed across all stages.
func (u TokenUsage) Total() int {
	total := 0
	for _, tokens := range u {
		total += tokens
	}
	return total
}

// Clone returns an independent copy.
func (u TokenUsage) Clone() TokenUsage {
	out := make(TokenUsage, len(u))
	for stage, tokens := range u {
		out[stage] = tokens
	}
	return out
}
