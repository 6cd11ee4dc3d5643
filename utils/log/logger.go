package log

import (
	"context"
	"os"

	"go.uber.org/zap"
)

type ctxKey string

const (
	CtxChatID ctxKey = "chat_id"
	CtxUserID ctxKey = "user_id"
	CtxTurnID ctxKey = "turn_id"
)

var logger *zap.Logger

func init() {
	if os.Getenv("DEBUG") == "true" {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
}

// WithChat stamps chat/user identifiers into the context for later logging.
func WithChat(ctx context.Context, chatID, userID string) context.Context {
	ctx = context.WithValue(ctx, CtxChatID, chatID)
	return context.WithValue(ctx, CtxUserID, userID)
}

func WithCtx(ctx context.Context) *zap.Logger {
	fields := []zap.Field{}

	if v := ctx.Value(CtxChatID); v != nil {
		fields = append(fields, zap.Any("chat_id", v))
	}
	if v := ctx.Value(CtxUserID); v != nil {
		fields = append(fields, zap.Any("user_id", v))
	}
	if v := ctx.Value(CtxTurnID); v != nil {
		fields = append(fields, zap.Any("turn_id", v))
	}

	return logger.With(fields...)
}

func With(fields ...zap.Field) *zap.Logger {
	return logger.With(fields...)
}
