package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/palaverhq/palaver/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id                 TEXT PRIMARY KEY,
	system_description TEXT NOT NULL,
	created_at         TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id          TEXT PRIMARY KEY,
	chat_id     TEXT NOT NULL,
	author_id   TEXT NOT NULL,
	author_name TEXT NOT NULL,
	role        TEXT NOT NULL,
	kind        TEXT NOT NULL,
	content     TEXT NOT NULL,
	prompt      TEXT NOT NULL DEFAULT '',
	token_usage TEXT NOT NULL DEFAULT '{}',
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_chat_time ON messages (chat_id, created_at);
`

// Store implements both domain.SessionStore and domain.MessageStore on a
// single sqlite database.
type Store struct {
	db *sql.DB
}

func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateSession(ctx context.Context, session *domain.ChatSession) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, system_description, created_at) VALUES (?, ?, ?)`,
		session.ID, session.SystemDescription, session.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, chatID string) (*domain.ChatSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, system_description, created_at FROM sessions WHERE id = ?`, chatID)

	var session domain.ChatSession
	err := row.Scan(&session.ID, &session.SystemDescription, &session.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	return &session, nil
}

func (s *Store) AppendMessage(ctx context.Context, msg *domain.ChatMessage) error {
	usage, err := encodeUsage(msg.TokenUsage)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (id, chat_id, author_id, author_name, role, kind, content, prompt, token_usage, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ChatID, msg.AuthorID, msg.AuthorName,
		string(msg.Role), string(msg.Kind), msg.Content, msg.Prompt, usage, msg.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

func (s *Store) UpdateMessage(ctx context.Context, msg *domain.ChatMessage) error {
	usage, err := encodeUsage(msg.TokenUsage)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE messages SET content = ?, prompt = ?, token_usage = ? WHERE id = ?`,
		msg.Content, msg.Prompt, usage, msg.ID)
	if err != nil {
		return fmt.Errorf("updating message: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("message %s not found", msg.ID)
	}
	return nil
}

func (s *Store) ListMessages(ctx context.Context, chatID string) ([]*domain.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, author_id, author_name, role, kind, content, prompt, token_usage, created_at
		 FROM messages WHERE chat_id = ? ORDER BY created_at ASC`, chatID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var out []*domain.ChatMessage
	for rows.Next() {
		var (
			msg       domain.ChatMessage
			role      string
			kind      string
			usage     string
			createdAt time.Time
		)
		err := rows.Scan(&msg.ID, &msg.ChatID, &msg.AuthorID, &msg.AuthorName,
			&role, &kind, &msg.Content, &msg.Prompt, &usage, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.Role = domain.Role(role)
		msg.Kind = domain.MessageKind(kind)
		msg.CreatedAt = createdAt
		if msg.TokenUsage, err = decodeUsage(usage); err != nil {
			return nil, err
		}
		out = append(out, &msg)
	}
	return out, rows.Err()
}

func encodeUsage(usage domain.TokenUsage) (string, error) {
	if usage == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(usage)
	if err != nil {
		return "", fmt.Errorf("encoding token usage: %w", err)
	}
	return string(raw), nil
}

func decodeUsage(raw string) (domain.TokenUsage, error) {
	var usage domain.TokenUsage
	if err := json.Unmarshal([]byte(raw), &usage); err != nil {
		return nil, fmt.Errorf("decoding token usage: %w", err)
	}
	if len(usage) == 0 {
		return nil, nil
	}
	return usage, nil
}
