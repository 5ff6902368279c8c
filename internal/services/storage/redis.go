package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/anything-ai/anything-ai/internal/config"
	"github.com/anything-ai/anything-ai/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RedisStorage implements storage using Redis. Records are JSON strings;
// per-user conversation lists are sorted sets scored by update time.
type RedisStorage struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewRedisStorage(cfg *config.RedisConfig, logger *logrus.Logger) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStorageWithClient(client, logger), nil
}

// NewRedisStorageWithClient uses an already configured client
func NewRedisStorageWithClient(client *redis.Client, logger *logrus.Logger) *RedisStorage {
	return &RedisStorage{
		client: client,
		logger: logger,
	}
}

func userKey(id string) string { return "user:" + id }
func usernameIndexKey(name string) string { return "username:" + usernameKey(name) }
func departmentKey(id string) string { return "department:" + id }
func conversationKey(id string) string { return "conversation:" + id }
func messagesKey(convID string) string { return "conversation:" + convID + ":messages" }
func userConversationsKey(uid string) string { return "user:" + uid + ":conversations" }

const departmentsKey = "departments"

func (r *RedisStorage) getJSON(ctx context.Context, key string, out interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (r *RedisStorage) CreateUser(ctx context.Context, user *models.User) error {
	prepareUser(user, uuid.NewString)

	ok, err := r.client.SetNX(ctx, usernameIndexKey(user.Username), user.ID, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}

	data, err := json.Marshal(redisUser{User: *user, PasswordHash: user.PasswordHash})
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, userKey(user.ID), data, 0).Err(); err != nil {
		r.client.Del(ctx, usernameIndexKey(user.Username))
		return err
	}
	return nil
}

// redisUser keeps the password hash that API JSON omits
type redisUser struct {
	models.User
	PasswordHash string `json:"passwordHash"`
}

func (r *RedisStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	var stored redisUser
	if err := r.getJSON(ctx, userKey(id), &stored); err != nil {
		return nil, err
	}
	user := stored.User
	user.PasswordHash = stored.PasswordHash
	return &user, nil
}

func (r *RedisStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	id, err := r.client.Get(ctx, usernameIndexKey(username)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.GetUser(ctx, id)
}

func (r *RedisStorage) SaveDepartment(ctx context.Context, dept *models.Department) error {
	prepareDepartment(dept, uuid.NewString)

	data, err := json.Marshal(redisDepartment{Department: *dept, AccessCodeHash: dept.AccessCodeHash, SystemInstruction: dept.SystemInstruction})
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, departmentKey(dept.ID), data, 0)
		pipe.SAdd(ctx, departmentsKey, dept.ID)
		return nil
	})
	return err
}

// redisDepartment keeps the fields hidden from API JSON
type redisDepartment struct {
	models.Department
	AccessCodeHash    string `json:"accessCodeHash,omitempty"`
	SystemInstruction string `json:"systemInstruction,omitempty"`
}

func (d redisDepartment) toModel() *models.Department {
	dept := d.Department
	dept.AccessCodeHash = d.AccessCodeHash
	dept.SystemInstruction = d.SystemInstruction
	return &dept
}

func (r *RedisStorage) GetDepartment(ctx context.Context, id string) (*models.Department, error) {
	var dept redisDepartment
	if err := r.getJSON(ctx, departmentKey(id), &dept); err != nil {
		return nil, err
	}
	return dept.toModel(), nil
}

func (r *RedisStorage) ListDepartments(ctx context.Context) ([]*models.Department, error) {
	ids, err := r.client.SMembers(ctx, departmentsKey).Result()
	if err != nil {
		return nil, err
	}

	depts := make([]*models.Department, 0, len(ids))
	for _, id := range ids {
		dept, err := r.GetDepartment(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		depts = append(depts, dept)
	}
	sort.Slice(depts, func(i, j int) bool {
		return depts[i].Name < depts[j].Name
	})
	return depts, nil
}

func (r *RedisStorage) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	prepareConversation(conv, uuid.NewString)
	return r.saveConversation(ctx, conv)
}

func (r *RedisStorage) saveConversation(ctx context.Context, conv *models.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, conversationKey(conv.ID), data, 0)
		pipe.ZAdd(ctx, userConversationsKey(conv.UserID), &redis.Z{
			Score:  float64(conv.UpdatedAt.UnixNano()),
			Member: conv.ID,
		})
		return nil
	})
	return err
}

func (r *RedisStorage) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.getJSON(ctx, conversationKey(id), &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *RedisStorage) ListConversations(ctx context.Context, userID, departmentID string) ([]*models.Conversation, error) {
	ids, err := r.client.ZRevRange(ctx, userConversationsKey(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*models.Conversation{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = conversationKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	convs := make([]*models.Conversation, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var conv models.Conversation
		if err := json.Unmarshal([]byte(raw), &conv); err != nil {
			r.logger.WithError(err).Warn("Skipping unreadable conversation")
			continue
		}
		if departmentID != "" && conv.DepartmentID != departmentID {
			continue
		}
		convs = append(convs, &conv)
	}
	return convs, nil
}

func (r *RedisStorage) DeleteConversation(ctx context.Context, id string) error {
	conv, err := r.GetConversation(ctx, id)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, conversationKey(id), messagesKey(id))
		pipe.ZRem(ctx, userConversationsKey(conv.UserID), id)
		return nil
	})
	return err
}

func (r *RedisStorage) AppendMessage(ctx context.Context, msg *models.Message) error {
	conv, err := r.GetConversation(ctx, msg.ConversationID)
	if err != nil {
		return err
	}
	prepareMessage(msg, uuid.NewString)

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := r.client.RPush(ctx, messagesKey(msg.ConversationID), data).Err(); err != nil {
		return err
	}

	if msg.CreatedAt.After(conv.UpdatedAt) {
		conv.UpdatedAt = msg.CreatedAt
	}
	return r.saveConversation(ctx, conv)
}

func (r *RedisStorage) ListMessages(ctx context.Context, conversationID string) ([]*models.Message, error) {
	values, err := r.client.LRange(ctx, messagesKey(conversationID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	msgs := make([]*models.Message, 0, len(values))
	for _, raw := range values {
		var msg models.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			r.logger.WithError(err).Warn("Skipping unreadable message")
			continue
		}
		msgs = append(msgs, &msg)
	}
	return msgs, nil
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}
