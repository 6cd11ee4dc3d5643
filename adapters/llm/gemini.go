package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/palaverhq/palaver/domain"
	"github.com/palaverhq/palaver/utils/log"
	"go.uber.org/zap"
)

// GeminiClient implements domain.Llm on the Gemini API. One client serves
// both the extraction completions and the streamed chat generation; the
// model name differs per call site.
type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(ctx context.Context, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(
		ctx,
		&genai.ClientConfig{
			HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &GeminiClient{client: client, model: model}, nil
}

func samplingConfig(profile domain.SamplingProfile) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(profile.Temperature),
		TopP:             genai.Ptr(profile.TopP),
		FrequencyPenalty: genai.Ptr(profile.FrequencyPenalty),
		PresencePenalty:  genai.Ptr(profile.PresencePenalty),
		StopSequences:    profile.StopSequences,
	}
	if profile.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(profile.MaxTokens)
	}
	return cfg
}

// CompleteText runs a single non-streamed completion.
func (g *GeminiClient) CompleteText(ctx context.Context, prompt string, profile domain.SamplingProfile) (string, error) {
	resp, err := g.client.Models.GenerateContent(
		ctx,
		g.model,
		genai.Text(prompt),
		samplingConfig(profile),
	)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}

// StreamChat starts a streamed generation and forwards each chunk of model
// output. The channel closes when the stream ends; a failed stream delivers
// the error as its final chunk.
func (g *GeminiClient) StreamChat(ctx context.Context, prompt string, profile domain.SamplingProfile) (<-chan domain.Chunk, error) {
	chunks := make(chan domain.Chunk)

	go func() {
		defer close(chunks)
		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, genai.Text(prompt), samplingConfig(profile)) {
			if err != nil {
				log.WithCtx(ctx).Error("stream chunk error", zap.Error(err))
				select {
				case chunks <- domain.Chunk{Err: fmt.Errorf("stream content: %w", err)}:
				case <-ctx.Done():
				}
				return
			}

			text := resp.Text()
			if text == "" {
				continue
			}
			select {
			case chunks <- domain.Chunk{Text: text}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return chunks, nil
}
