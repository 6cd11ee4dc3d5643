package domain

import "context"

// Llm abstracts the language-model provider behind the two call shapes the
// orchestrator needs: a one-shot completion and a streamed chat generation.
type Llm interface {
	// CompleteText runs a single completion against a rendered prompt.
	CompleteText(ctx context.Context, prompt string, profile SamplingProfile) (string, error)

	// StreamChat starts a streamed generation. The returned channel yields
	// chunks in emission order and is closed when the stream ends. The
	// sequence is finite and not restartable.
	StreamChat(ctx context.Context, prompt string, profile SamplingProfile) (<-chan Chunk, error)
}

// Chunk is one increment of streamed model output. A chunk with a non-nil
// Err terminates the stream.
type Chunk struct {
	Text string
	Err  error
}

// SamplingProfile carries the sampling knobs for one model call. Extraction
// calls use a deterministic profile distinct from the main chat profile.
type SamplingProfile struct {
	Temperature      float32
	TopP             float32
	FrequencyPenalty float32
	PresencePenalty  float32
	MaxTokens        int
	StopSequences    []string
}
