// ABOUTME: Tests for the chat facade
// ABOUTME: Covers message counts, ordering, renames, and cascading deletes
package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/toolbox/internal/storage"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	m := storage.NewManager(storage.Options{KVInMemory: true})
	t.Cleanup(func() { _ = m.Close() })

	s := New(m)
	clock := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	require.NoError(t, s.Init(context.Background()))
	return s
}

func TestConversationLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	first, err := s.CreateConversation(ctx, "Planning")
	require.NoError(t, err)
	second, err := s.CreateConversation(ctx, "  ")
	require.NoError(t, err)
	assert.Equal(t, "New conversation", second.Title)
	assert.NotEqual(t, first.ID, second.ID)

	_, err = s.AddMessage(ctx, first.ID, RoleUser, "hello")
	require.NoError(t, err)
	_, err = s.AddMessage(ctx, first.ID, RoleAssistant, "hi, it's me")
	require.NoError(t, err)

	conv, err := s.Conversation(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), conv.MessageCount)
	assert.True(t, conv.UpdatedAt.After(conv.CreatedAt))

	// most recently updated first
	list, err := s.Conversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)

	msgs, err := s.Messages(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, "hi, it's me", msgs[1].Content)

	require.NoError(t, s.RenameConversation(ctx, first.ID, "Q3 planning"))
	conv, err = s.Conversation(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Q3 planning", conv.Title)

	require.NoError(t, s.DeleteConversation(ctx, first.ID))
	msgs, err = s.Messages(ctx, first.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	_, err = s.Conversation(ctx, first.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestAddMessageValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	_, err := s.AddMessage(ctx, "missing", RoleUser, "hello")
	assert.True(t, errors.Is(err, ErrNotFound))

	conv, err := s.CreateConversation(ctx, "x")
	require.NoError(t, err)
	_, err = s.AddMessage(ctx, conv.ID, Role("robot"), "beep")
	assert.True(t, errors.Is(err, ErrInvalidRole))
}

func TestMissingConversationOperations(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	assert.True(t, errors.Is(s.RenameConversation(ctx, "nope", "title"), ErrNotFound))
	assert.True(t, errors.Is(s.DeleteConversation(ctx, "nope"), ErrNotFound))
}
