package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/palaverhq/palaver/domain"
	"github.com/palaverhq/palaver/usecase"
	"github.com/palaverhq/palaver/utils/log"
	"go.uber.org/zap"
)

const (
	// MaxConcurrent bounds in-flight generation requests.
	MaxConcurrent = 10
)

// ResponseGenerator is the single operation the orchestrator exposes.
type ResponseGenerator interface {
	GenerateResponse(ctx context.Context, in usecase.GenerateInput) (*domain.ChatMessage, error)
}

// SessionCreator provisions new chat sessions.
type SessionCreator interface {
	CreateSession(ctx context.Context, session *domain.ChatSession) error
}

// MessageLister reads a chat timeline.
type MessageLister interface {
	ListMessages(ctx context.Context, chatID string) ([]*domain.ChatMessage, error)
}

// MemoryImporter feeds snippets into the long-term memory indexes.
type MemoryImporter interface {
	Upsert(ctx context.Context, kind domain.MemoryKind, chatID, id, content string) error
}

// ChatHandler serves the REST surface in front of the orchestrator.
type ChatHandler struct {
	generator ResponseGenerator
	sessions  SessionCreator
	messages  MessageLister
	memories  MemoryImporter

	apiKey    string
	apiSecret string
	jwtSecret []byte
	jwtExpiry time.Duration
}

func NewChatHandler(generator ResponseGenerator, sessions SessionCreator, messages MessageLister, memories MemoryImporter, apiKey, apiSecret, jwtSecret string, jwtExpiry time.Duration) *ChatHandler {
	return &ChatHandler{
		generator: generator,
		sessions:  sessions,
		messages:  messages,
		memories:  memories,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		jwtSecret: []byte(jwtSecret),
		jwtExpiry: jwtExpiry,
	}
}

type JWTClaims struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	jwt.RegisteredClaims
}

type tokenRequest struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// GenerateJWT creates a JWT token for authenticated clients.
func (h *ChatHandler) GenerateJWT(c echo.Context) error {
	key := c.Request().Header.Get("X-API-Key")
	secret := c.Request().Header.Get("X-API-Secret")
	if h.apiKey == "" || key != h.apiKey || secret != h.apiSecret {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	}

	var req tokenRequest
	if err := c.Bind(&req); err != nil || req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	claims := &JWTClaims{
		UserID:   req.UserID,
		UserName: req.UserName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(h.jwtExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "palaver",
			Subject:   req.UserID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(h.jwtSecret)
	if err != nil {
		log.With(zap.Error(err)).Error("failed to sign JWT")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"token": tokenString,
		"type":  "Bearer",
	})
}

// JWTMiddleware authenticates requests and stamps the user into the context.
func (h *ChatHandler) JWTMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization format")
		}

		token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return h.jwtSecret, nil
		})
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
		}

		if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
			c.Set("user_id", claims.UserID)
			c.Set("user_name", claims.UserName)
			return next(c)
		}
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token claims")
	}
}

// RateLimitMiddleware caps concurrent generation requests.
func (h *ChatHandler) RateLimitMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	semaphore := make(chan struct{}, MaxConcurrent)
	return func(c echo.Context) error {
		select {
		case semaphore <- struct{}{}:
			defer func() { <-semaphore }()
			return next(c)
		default:
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many concurrent requests")
		}
	}
}

type createChatRequest struct {
	SystemDescription string `json:"system_description"`
}

// CreateChat provisions a new chat session.
func (h *ChatHandler) CreateChat(c echo.Context) error {
	var req createChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	session := &domain.ChatSession{
		ID:                uuid.NewString(),
		SystemDescription: req.SystemDescription,
		CreatedAt:         time.Now(),
	}
	if err := h.sessions.CreateSession(c.Request().Context(), session); err != nil {
		log.With(zap.Error(err)).Error("failed to create session")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create chat")
	}
	return c.JSON(http.StatusCreated, session)
}

type sendMessageRequest struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`

	// Plan resolution round trip.
	PlanJSON  string `json:"plan_json,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

// SendMessage runs one generation turn and returns the final bot message.
// The incremental stream arrives over the websocket.
func (h *ChatHandler) SendMessage(c echo.Context) error {
	chatID := c.Param("chatID")
	userID, _ := c.Get("user_id").(string)
	userName, _ := c.Get("user_name").(string)

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if req.Message == "" && req.PlanJSON == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	msg, err := h.generator.GenerateResponse(c.Request().Context(), usecase.GenerateInput{
		Message:          req.Message,
		UserID:           userID,
		UserName:         userName,
		ChatID:           chatID,
		Kind:             domain.MessageKind(req.Kind),
		ApprovedPlanJSON: req.PlanJSON,
		MessageID:        req.MessageID,
	})
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, msg)
}

// ListMessages returns the chat timeline ordered by timestamp.
func (h *ChatHandler) ListMessages(c echo.Context) error {
	chatID := c.Param("chatID")
	msgs, err := h.messages.ListMessages(c.Request().Context(), chatID)
	if err != nil {
		log.With(zap.Error(err)).Error("failed to list messages")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list messages")
	}
	return c.JSON(http.StatusOK, msgs)
}

type importDocumentRequest struct {
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

// ImportDocument indexes a snippet into a chat's long-term memory.
func (h *ChatHandler) ImportDocument(c echo.Context) error {
	chatID := c.Param("chatID")

	var req importDocumentRequest
	if err := c.Bind(&req); err != nil || req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}

	kind := domain.MemoryKind(req.Kind)
	if kind != domain.SemanticMemory && kind != domain.DocumentMemory {
		kind = domain.DocumentMemory
	}

	id := uuid.NewString()
	if err := h.memories.Upsert(c.Request().Context(), kind, chatID, id, req.Content); err != nil {
		log.With(zap.Error(err)).Error("failed to import document")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to import document")
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

// HealthCheck reports service liveness.
func (h *ChatHandler) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "palaver",
	})
}

func (h *ChatHandler) mapError(err error) error {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Chat not found")
	default:
		log.With(zap.Error(err)).Error("generation turn failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate response")
	}
}
