// ABOUTME: Chat log facade with conversations and their messages
// ABOUTME: Messages reference conversations by id; deletes cascade in code
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/harper/toolbox/internal/apps"
	"github.com/harper/toolbox/internal/storage/sqlite"
)

const AppName = "chat"

const Schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	message_count INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at);
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);
`

// Role is who wrote a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

var (
	ErrNotFound    = errors.New("conversation not found")
	ErrInvalidRole = errors.New("invalid message role")
)

// Conversation is a titled message thread.
type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int64     `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Message is one entry in a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Service reads and writes conversations.
type Service struct {
	store apps.Store
	now   func() time.Time
}

func New(store apps.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Init creates the chat tables.
func (s *Service) Init(ctx context.Context) error {
	return apps.Setup(ctx, s.store, AppName, Schema)
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// CreateConversation starts an empty conversation.
func (s *Service) CreateConversation(ctx context.Context, title string) (Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "New conversation"
	}
	now := s.timestamp()
	c := Conversation{ID: uuid.NewString(), Title: title, CreatedAt: now, UpdatedAt: now}

	_, err := apps.Exec(ctx, s.store, sq.Insert("conversations").
		Columns("id", "title", "message_count", "created_at", "updated_at").
		Values(c.ID, c.Title, 0, sqlite.FormatTime(now), sqlite.FormatTime(now)))
	if err != nil {
		return Conversation{}, fmt.Errorf("failed to create conversation: %w", err)
	}
	return c, nil
}

// Conversation returns one conversation.
func (s *Service) Conversation(ctx context.Context, id string) (Conversation, error) {
	row, ok, err := apps.First(ctx, s.store, sq.Select("*").From("conversations").Where(sq.Eq{"id": id}))
	if err != nil {
		return Conversation{}, fmt.Errorf("failed to load conversation: %w", err)
	}
	if !ok {
		return Conversation{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return conversationFromRow(row), nil
}

// Conversations lists conversations, most recently updated first.
func (s *Service) Conversations(ctx context.Context) ([]Conversation, error) {
	rows, err := apps.Query(ctx, s.store, sq.Select("*").From("conversations").OrderBy("updated_at DESC", "created_at DESC"))
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	out := make([]Conversation, 0, len(rows))
	for _, r := range rows {
		out = append(out, conversationFromRow(r))
	}
	return out, nil
}

// AddMessage appends a message and then bumps the conversation's count and
// updated time. The two writes are separate statements.
func (s *Service) AddMessage(ctx context.Context, conversationID string, role Role, content string) (Message, error) {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
	default:
		return Message{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if _, err := s.Conversation(ctx, conversationID); err != nil {
		return Message{}, err
	}

	msg := Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      s.timestamp(),
	}
	_, err := apps.Exec(ctx, s.store, sq.Insert("messages").
		Columns("id", "conversation_id", "role", "content", "created_at").
		Values(msg.ID, msg.ConversationID, string(msg.Role), msg.Content, sqlite.FormatTime(msg.CreatedAt)))
	if err != nil {
		return Message{}, fmt.Errorf("failed to add message: %w", err)
	}

	_, err = apps.Exec(ctx, s.store, sq.Update("conversations").
		Set("message_count", sq.Expr("message_count + 1")).
		Set("updated_at", sqlite.FormatTime(msg.CreatedAt)).
		Where(sq.Eq{"id": conversationID}))
	if err != nil {
		return Message{}, fmt.Errorf("failed to update conversation: %w", err)
	}
	return msg, nil
}

// Messages returns a conversation's messages in the order they were added.
func (s *Service) Messages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := apps.Query(ctx, s.store, sq.Select("*").
		From("messages").
		Where(sq.Eq{"conversation_id": conversationID}).
		OrderBy("created_at", "rowid"))
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	out := make([]Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, Message{
			ID:             r.String("id"),
			ConversationID: r.String("conversation_id"),
			Role:           Role(r.String("role")),
			Content:        r.String("content"),
			CreatedAt:      r.Time("created_at"),
		})
	}
	return out, nil
}

// RenameConversation changes a conversation's title.
func (s *Service) RenameConversation(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("conversation title is empty")
	}
	res, err := apps.Exec(ctx, s.store, sq.Update("conversations").
		Set("title", title).
		Set("updated_at", sqlite.FormatTime(s.timestamp())).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("failed to rename conversation: %w", err)
	}
	if res.Changes == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// DeleteConversation removes a conversation and its messages.
func (s *Service) DeleteConversation(ctx context.Context, id string) error {
	if _, err := apps.Exec(ctx, s.store, sq.Delete("messages").Where(sq.Eq{"conversation_id": id})); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	res, err := apps.Exec(ctx, s.store, sq.Delete("conversations").Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if res.Changes == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func conversationFromRow(r sqlite.Row) Conversation {
	return Conversation{
		ID:           r.String("id"),
		Title:        r.String("title"),
		MessageCount: r.Int("message_count"),
		CreatedAt:    r.Time("created_at"),
		UpdatedAt:    r.Time("updated_at"),
	}
}
