package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/palaverhq/palaver/domain"
	"github.com/palaverhq/palaver/utils/log"
	"go.uber.org/zap"
)

// StreamState tracks one streamed generation.
type StreamState int

const (
	StreamEmpty StreamState = iota
	StreamGenerating
	StreamCompleted
	StreamFailed
)

func (s StreamState) String() string {
	switch s {
	case StreamEmpty:
		return "empty"
	case StreamGenerating:
		return "generating"
	case StreamCompleted:
		return "completed"
	case StreamFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Streamer delivers the model's output incrementally: a provisional empty bot
// message is pushed first so the caller has an id to track, every chunk
// appends and pushes an update, and the finalized message is persisted once
// the stream ends.
type Streamer struct {
	llm       domain.Llm
	messages  domain.MessageStore
	notifier  domain.Notifier
	tokenizer domain.Tokenizer
	profile   domain.SamplingProfile
	now       func() time.Time
	newID     func() string
}

func NewStreamer(llm domain.Llm, messages domain.MessageStore, notifier domain.Notifier, tokenizer domain.Tokenizer, profile domain.SamplingProfile, newID func() string) *Streamer {
	return &Streamer{
		llm:       llm,
		messages:  messages,
		notifier:  notifier,
		tokenizer: tokenizer,
		profile:   profile,
		now:       time.Now,
		newID:     newID,
	}
}

// StreamInput identifies the bot author and carries the assembled prompt plus
// the token usage accumulated by earlier stages.
type StreamInput struct {
	ChatID  string
	BotID   string
	BotName string
	Prompt  *domain.BotResponsePrompt
	Usage   domain.TokenUsage
}

// Stream runs the generation to completion. On failure mid-stream, the
// partial content already pushed to the transport remains the last known
// state and persistence of the partial message is still attempted.
func (s *Streamer) Stream(ctx context.Context, in StreamInput) (*domain.ChatMessage, error) {
	state := StreamEmpty

	msg := &domain.ChatMessage{
		ID:         s.newID(),
		ChatID:     in.ChatID,
		AuthorID:   in.BotID,
		AuthorName: in.BotName,
		Role:       domain.BotRole,
		Kind:       domain.KindMessage,
		Prompt:     in.Prompt.Rendered,
		CreatedAt:  s.now(),
	}

	chunks, err := s.llm.StreamChat(ctx, in.Prompt.Rendered, s.profile)
	if err != nil {
		// Nothing was produced or pushed; the turn yields no bot message.
		return nil, fmt.Errorf("%w: starting stream: %v", domain.ErrStreamingFailed, err)
	}

	state = StreamGenerating
	s.notifier.PushMessage(ctx, domain.EventMessageCreated, msg)

	var streamErr error
loop:
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				break loop
			}
			if chunk.Err != nil {
				streamErr = chunk.Err
				break loop
			}
			msg.Content += chunk.Text
			s.notifier.PushMessage(ctx, domain.EventMessageUpdated, msg)
		case <-ctx.Done():
			// Cancellation aborts the turn without partial persistence.
			return nil, ctx.Err()
		}
	}

	usage := in.Usage.Clone()
	usage.Add(domain.StageSystemCompletion, s.tokenizer.CountTokens(msg.Content))
	msg.TokenUsage = usage

	if streamErr != nil {
		state = StreamFailed
		log.WithCtx(ctx).Error("stream failed, persisting partial content",
			zap.String("state", state.String()),
			zap.String("message_id", msg.ID),
			zap.Error(streamErr))
		if persistErr := s.messages.AppendMessage(ctx, msg); persistErr != nil {
			log.WithCtx(ctx).Error("failed to persist partial message", zap.Error(persistErr))
		} else {
			s.notifier.PushMessage(ctx, domain.EventMessageUpdated, msg)
		}
		return msg, fmt.Errorf("%w: %v", domain.ErrStreamingFailed, streamErr)
	}

	if err := s.messages.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("persisting bot message: %w", err)
	}
	state = StreamCompleted
	s.notifier.PushMessage(ctx, domain.EventMessageUpdated, msg)

	log.WithCtx(ctx).Info("stream completed",
		zap.String("state", state.String()),
		zap.String("message_id", msg.ID),
		zap.Int("completion_tokens", usage[domain.StageSystemCompletion]))
	return msg, nil
}
