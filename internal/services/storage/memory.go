package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/anything-ai/anything-ai/internal/models"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// MemoryStorage implements storage using in-memory cache
type MemoryStorage struct {
	mu            sync.RWMutex
	users         *cache.Cache
	usernames     *cache.Cache
	departments   *cache.Cache
	conversations *cache.Cache
	messages      *cache.Cache
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:         cache.New(cache.NoExpiration, cache.NoExpiration),
		usernames:     cache.New(cache.NoExpiration, cache.NoExpiration),
		departments:   cache.New(cache.NoExpiration, cache.NoExpiration),
		conversations: cache.New(cache.NoExpiration, cache.NoExpiration),
		messages:      cache.New(cache.NoExpiration, cache.NoExpiration),
	}
}

func usernameKey(username string) string {
	return strings.ToLower(username)
}

func (m *MemoryStorage) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, found := m.usernames.Get(usernameKey(user.Username)); found {
		return ErrConflict
	}
	prepareUser(user, uuid.NewString)

	stored := *user
	m.users.Set(user.ID, &stored, cache.NoExpiration)
	m.usernames.Set(usernameKey(user.Username), user.ID, cache.NoExpiration)
	return nil
}

func (m *MemoryStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if val, found := m.users.Get(id); found {
		user := *val.(*models.User)
		return &user, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	id, found := m.usernames.Get(usernameKey(username))
	m.mu.RUnlock()
	if !found {
		return nil, ErrNotFound
	}
	return m.GetUser(ctx, id.(string))
}

func (m *MemoryStorage) SaveDepartment(ctx context.Context, dept *models.Department) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prepareDepartment(dept, uuid.NewString)
	stored := *dept
	m.departments.Set(dept.ID, &stored, cache.NoExpiration)
	return nil
}

func (m *MemoryStorage) GetDepartment(ctx context.Context, id string) (*models.Department, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if val, found := m.departments.Get(id); found {
		dept := *val.(*models.Department)
		return &dept, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStorage) ListDepartments(ctx context.Context) ([]*models.Department, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	depts := make([]*models.Department, 0, m.departments.ItemCount())
	for _, item := range m.departments.Items() {
		dept := *item.Object.(*models.Department)
		depts = append(depts, &dept)
	}
	sort.Slice(depts, func(i, j int) bool {
		return depts[i].Name < depts[j].Name
	})
	return depts, nil
}

func (m *MemoryStorage) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prepareConversation(conv, uuid.NewString)
	stored := *conv
	m.conversations.Set(conv.ID, &stored, cache.NoExpiration)
	return nil
}

func (m *MemoryStorage) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if val, found := m.conversations.Get(id); found {
		conv := *val.(*models.Conversation)
		return &conv, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStorage) ListConversations(ctx context.Context, userID, departmentID string) ([]*models.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var convs []*models.Conversation
	for _, item := range m.conversations.Items() {
		conv := *item.Object.(*models.Conversation)
		if conv.UserID != userID {
			continue
		}
		if departmentID != "" && conv.DepartmentID != departmentID {
			continue
		}
		convs = append(convs, &conv)
	}
	sort.Slice(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
	return convs, nil
}

func (m *MemoryStorage) DeleteConversation(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, found := m.conversations.Get(id); !found {
		return ErrNotFound
	}
	m.conversations.Delete(id)
	m.messages.Delete(id)
	return nil
}

func (m *MemoryStorage) AppendMessage(ctx context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	val, found := m.conversations.Get(msg.ConversationID)
	if !found {
		return ErrNotFound
	}
	prepareMessage(msg, uuid.NewString)

	var msgs []*models.Message
	if existing, ok := m.messages.Get(msg.ConversationID); ok {
		msgs = existing.([]*models.Message)
	}
	stored := *msg
	m.messages.Set(msg.ConversationID, append(msgs, &stored), cache.NoExpiration)

	conv := *val.(*models.Conversation)
	if msg.CreatedAt.After(conv.UpdatedAt) {
		conv.UpdatedAt = msg.CreatedAt
	}
	m.conversations.Set(conv.ID, &conv, cache.NoExpiration)
	return nil
}

func (m *MemoryStorage) ListMessages(ctx context.Context, conversationID string) ([]*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	existing, ok := m.messages.Get(conversationID)
	if !ok {
		return []*models.Message{}, nil
	}
	stored := existing.([]*models.Message)
	msgs := make([]*models.Message, len(stored))
	for i, msg := range stored {
		copied := *msg
		msgs[i] = &copied
	}
	return msgs, nil
}

func (m *MemoryStorage) Close() error {
	return nil
}
