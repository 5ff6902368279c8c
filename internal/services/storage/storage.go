package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anything-ai/anything-ai/internal/config"
	"github.com/anything-ai/anything-ai/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique field is already taken
	ErrConflict = errors.New("already exists")
)

// Storage interface defines storage operations
type Storage interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// Department operations
	SaveDepartment(ctx context.Context, dept *models.Department) error
	GetDepartment(ctx context.Context, id string) (*models.Department, error)
	ListDepartments(ctx context.Context) ([]*models.Department, error)

	// Conversation operations
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	// ListConversations returns the user's conversations, most recently
	// updated first. An empty departmentID matches every department.
	ListConversations(ctx context.Context, userID, departmentID string) ([]*models.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error

	// Message operations
	AppendMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]*models.Message, error)

	Close() error
}

// Observer is told about every storage call
type Observer interface {
	RecordStorageOperation(operation, status string)
}

// Manager wraps a storage backend with logging and metrics
type Manager struct {
	storage  Storage
	logger   *logrus.Logger
	observer Observer
}

// NewManager creates a manager for the configured backend
func NewManager(cfg *config.StorageConfig, logger *logrus.Logger, observer Observer) (*Manager, error) {
	var storage Storage

	switch cfg.Type {
	case "redis":
		redisStorage, err := NewRedisStorage(&cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		storage = redisStorage
	case "mongo":
		mongoStorage, err := NewMongoStorage(&cfg.Mongo, logger)
		if err != nil {
			return nil, err
		}
		storage = mongoStorage
	case "memory", "":
		storage = NewMemoryStorage()
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}

	logger.WithField("type", cfg.Type).Info("Storage initialized")
	return NewManagerFor(storage, logger, observer), nil
}

// NewManagerFor wraps an existing backend
func NewManagerFor(storage Storage, logger *logrus.Logger, observer Observer) *Manager {
	return &Manager{storage: storage, logger: logger, observer: observer}
}

func (m *Manager) observe(operation string, err error) error {
	if m.observer != nil {
		status := "success"
		switch {
		case errors.Is(err, ErrNotFound):
			status = "not_found"
		case err != nil:
			status = "error"
		}
		m.observer.RecordStorageOperation(operation, status)
	}
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrConflict) {
		m.logger.WithError(err).WithField("operation", operation).Error("Storage operation failed")
	}
	return err
}

// Delegate methods to underlying storage
func (m *Manager) CreateUser(ctx context.Context, user *models.User) error {
	return m.observe("create_user", m.storage.CreateUser(ctx, user))
}

func (m *Manager) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := m.storage.GetUser(ctx, id)
	return user, m.observe("get_user", err)
}

func (m *Manager) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := m.storage.GetUserByUsername(ctx, username)
	return user, m.observe("get_user", err)
}

func (m *Manager) SaveDepartment(ctx context.Context, dept *models.Department) error {
	return m.observe("save_department", m.storage.SaveDepartment(ctx, dept))
}

func (m *Manager) GetDepartment(ctx context.Context, id string) (*models.Department, error) {
	dept, err := m.storage.GetDepartment(ctx, id)
	return dept, m.observe("get_department", err)
}

func (m *Manager) ListDepartments(ctx context.Context) ([]*models.Department, error) {
	depts, err := m.storage.ListDepartments(ctx)
	return depts, m.observe("list_departments", err)
}

func (m *Manager) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	return m.observe("create_conversation", m.storage.CreateConversation(ctx, conv))
}

func (m *Manager) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	conv, err := m.storage.GetConversation(ctx, id)
	return conv, m.observe("get_conversation", err)
}

func (m *Manager) ListConversations(ctx context.Context, userID, departmentID string) ([]*models.Conversation, error) {
	convs, err := m.storage.ListConversations(ctx, userID, departmentID)
	return convs, m.observe("list_conversations", err)
}

func (m *Manager) DeleteConversation(ctx context.Context, id string) error {
	return m.observe("delete_conversation", m.storage.DeleteConversation(ctx, id))
}

func (m *Manager) AppendMessage(ctx context.Context, msg *models.Message) error {
	return m.observe("append_message", m.storage.AppendMessage(ctx, msg))
}

func (m *Manager) ListMessages(ctx context.Context, conversationID string) ([]*models.Message, error) {
	msgs, err := m.storage.ListMessages(ctx, conversationID)
	return msgs, m.observe("list_messages", err)
}

func (m *Manager) Close() error {
	return m.storage.Close()
}

// prepareConversation fills the ID and timestamps the caller left empty
func prepareConversation(conv *models.Conversation, newID func() string) {
	if conv.ID == "" {
		conv.ID = newID()
	}
	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = conv.CreatedAt
	}
}

func prepareMessage(msg *models.Message, newID func() string) {
	if msg.ID == "" {
		msg.ID = newID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
}

func prepareUser(user *models.User, newID func() string) {
	if user.ID == "" {
		user.ID = newID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
}

func prepareDepartment(dept *models.Department, newID func() string) {
	if dept.ID == "" {
		dept.ID = newID()
	}
	if dept.CreatedAt.IsZero() {
		dept.CreatedAt = time.Now().UTC()
	}
}
