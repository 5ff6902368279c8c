package storage

import (
	"context"
	"testing"
	"time"

	"github.com/anything-ai/anything-ai/internal/config"
	"github.com/anything-ai/anything-ai/internal/models"
	"github.com/anything-ai/anything-ai/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	ops []string
}

func (o *recordingObserver) RecordStorageOperation(operation, status string) {
	o.ops = append(o.ops, operation+":"+status)
}

func newTestManager(t *testing.T) (*Manager, *recordingObserver) {
	obs := &recordingObserver{}
	m, err := NewManager(&config.StorageConfig{Type: "memory"}, logger.Discard(), obs)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m, obs
}

func TestUnsupportedStorageType(t *testing.T) {
	_, err := NewManager(&config.StorageConfig{Type: "sqlite"}, logger.Discard(), nil)
	assert.Error(t, err)
}

func TestUsers(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	user := &models.User{Username: "Alice", PasswordHash: "hash", DepartmentID: "eng"}
	require.NoError(t, m.CreateUser(ctx, user))
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())

	err := m.CreateUser(ctx, &models.User{Username: "alice"})
	assert.ErrorIs(t, err, ErrConflict, "usernames are case-insensitive")

	byName, err := m.GetUserByUsername(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)
	assert.Equal(t, "hash", byName.PasswordHash)

	_, err = m.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDepartments(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.SaveDepartment(ctx, &models.Department{ID: "sales", Name: "Sales"}))
	require.NoError(t, m.SaveDepartment(ctx, &models.Department{ID: "eng", Name: "Engineering", AccessCodeHash: "h"}))
	require.NoError(t, m.SaveDepartment(ctx, &models.Department{ID: "sales", Name: "Sales Team"}))

	depts, err := m.ListDepartments(ctx)
	require.NoError(t, err)
	require.Len(t, depts, 2)
	assert.Equal(t, "Engineering", depts[0].Name)
	assert.Equal(t, "Sales Team", depts[1].Name, "save upserts")

	eng, err := m.GetDepartment(ctx, "eng")
	require.NoError(t, err)
	assert.True(t, eng.RequiresAccessCode())
}

func TestConversationsAndMessages(t *testing.T) {
	m, obs := newTestManager(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	first := &models.Conversation{UserID: "u1", DepartmentID: "eng", Title: "first", CreatedAt: base}
	second := &models.Conversation{UserID: "u1", DepartmentID: "sales", Title: "second", CreatedAt: base.Add(time.Minute)}
	other := &models.Conversation{UserID: "u2", DepartmentID: "eng", Title: "other", CreatedAt: base}
	for _, c := range []*models.Conversation{first, second, other} {
		require.NoError(t, m.CreateConversation(ctx, c))
	}

	convs, err := m.ListConversations(ctx, "u1", "")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "second", convs[0].Title)

	// a new message moves the conversation to the top
	require.NoError(t, m.AppendMessage(ctx, &models.Message{ConversationID: first.ID, Role: models.RoleUser, Text: "hi", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, m.AppendMessage(ctx, &models.Message{ConversationID: first.ID, Role: models.RoleModel, Text: "hello", CreatedAt: base.Add(time.Hour + time.Second)}))

	convs, err = m.ListConversations(ctx, "u1", "")
	require.NoError(t, err)
	assert.Equal(t, "first", convs[0].Title)

	engOnly, err := m.ListConversations(ctx, "u1", "eng")
	require.NoError(t, err)
	require.Len(t, engOnly, 1)
	assert.Equal(t, first.ID, engOnly[0].ID)

	msgs, err := m.ListMessages(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Text)
	assert.Equal(t, models.RoleModel, msgs[1].Role)

	err = m.AppendMessage(ctx, &models.Message{ConversationID: "missing", Text: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.DeleteConversation(ctx, first.ID))
	_, err = m.GetConversation(ctx, first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	msgs, err = m.ListMessages(ctx, first.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.ErrorIs(t, m.DeleteConversation(ctx, first.ID), ErrNotFound)

	assert.Contains(t, obs.ops, "append_message:success")
	assert.Contains(t, obs.ops, "get_conversation:not_found")
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	conv := &models.Conversation{UserID: "u1", Title: "original"}
	require.NoError(t, m.CreateConversation(ctx, conv))

	got, err := m.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	got.Title = "changed"

	again, err := m.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Title)
}
