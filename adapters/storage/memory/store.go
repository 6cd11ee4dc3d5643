package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/palaverhq/palaver/domain"
)

// SessionStore keeps chat sessions in memory. Used for development and tests.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.ChatSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*domain.ChatSession)}
}

func (s *SessionStore) CreateSession(ctx context.Context, session *domain.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *SessionStore) GetSession(ctx context.Context, chatID string) (*domain.ChatSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[chatID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

// MessageStore keeps chat messages in memory, ordered by timestamp.
type MessageStore struct {
	mu       sync.RWMutex
	messages map[string][]*domain.ChatMessage // chatID -> messages
}

func NewMessageStore() *MessageStore {
	return &MessageStore{messages: make(map[string][]*domain.ChatMessage)}
}

func (s *MessageStore) AppendMessage(ctx context.Context, msg *domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *msg
	copied.TokenUsage = msg.TokenUsage.Clone()
	s.messages[msg.ChatID] = append(s.messages[msg.ChatID], &copied)
	return nil
}

func (s *MessageStore) UpdateMessage(ctx context.Context, msg *domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, stored := range s.messages[msg.ChatID] {
		if stored.ID == msg.ID {
			copied := *msg
			copied.TokenUsage = msg.TokenUsage.Clone()
			s.messages[msg.ChatID][i] = &copied
			return nil
		}
	}
	return fmt.Errorf("message %s not found in chat %s", msg.ID, msg.ChatID)
}

func (s *MessageStore) ListMessages(ctx context.Context, chatID string) ([]*domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.messages[chatID]
	out := make([]*domain.ChatMessage, len(stored))
	for i, msg := range stored {
		copied := *msg
		copied.TokenUsage = msg.TokenUsage.Clone()
		out[i] = &copied
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Touch is a test helper that backdates a stored message.
func (s *MessageStore) Touch(chatID, messageID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msg := range s.messages[chatID] {
		if msg.ID == messageID {
			msg.CreatedAt = at
		}
	}
}
