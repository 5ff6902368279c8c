package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anything-ai/anything-ai/internal/config"
	"github.com/anything-ai/anything-ai/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoStorage implements storage using MongoDB collections
type MongoStorage struct {
	client        *mongo.Client
	users         *mongo.Collection
	departments   *mongo.Collection
	conversations *mongo.Collection
	messages      *mongo.Collection
	logger        *logrus.Logger
}

func NewMongoStorage(cfg *config.MongoConfig, logger *logrus.Logger) (*MongoStorage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &MongoStorage{
		client:        client,
		users:         db.Collection("users"),
		departments:   db.Collection("departments"),
		conversations: db.Collection("conversations"),
		messages:      db.Collection("messages"),
		logger:        logger,
	}

	if err := s.ensureIndexes(ctx); err != nil {
		logger.WithError(err).Warn("Failed to create mongodb indexes")
	}
	return s, nil
}

func (s *MongoStorage) ensureIndexes(ctx context.Context) error {
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username_lower", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}
	if _, err := s.conversations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "updated_at", Value: -1}},
	}); err != nil {
		return err
	}
	_, err := s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	return err
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter interface{}) (*T, error) {
	var out T
	err := coll.FindOne(ctx, filter).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter interface{}, opts ...*options.FindOptions) ([]*T, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	out := []*T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// mongoUser adds the case-folded username used by the unique index
type mongoUser struct {
	models.User   `bson:",inline"`
	UsernameLower string `bson:"username_lower"`
}

func (s *MongoStorage) CreateUser(ctx context.Context, user *models.User) error {
	prepareUser(user, uuid.NewString)

	_, err := s.users.InsertOne(ctx, mongoUser{User: *user, UsernameLower: usernameKey(user.Username)})
	if mongo.IsDuplicateKeyError(err) {
		return ErrConflict
	}
	return err
}

func (s *MongoStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	return findOne[models.User](ctx, s.users, bson.M{"_id": id})
}

func (s *MongoStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return findOne[models.User](ctx, s.users, bson.M{"username_lower": usernameKey(username)})
}

func (s *MongoStorage) SaveDepartment(ctx context.Context, dept *models.Department) error {
	prepareDepartment(dept, uuid.NewString)

	_, err := s.departments.ReplaceOne(ctx, bson.M{"_id": dept.ID}, dept, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStorage) GetDepartment(ctx context.Context, id string) (*models.Department, error) {
	return findOne[models.Department](ctx, s.departments, bson.M{"_id": id})
}

func (s *MongoStorage) ListDepartments(ctx context.Context) ([]*models.Department, error) {
	return findAll[models.Department](ctx, s.departments, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
}

func (s *MongoStorage) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	prepareConversation(conv, uuid.NewString)

	_, err := s.conversations.InsertOne(ctx, conv)
	return err
}

func (s *MongoStorage) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	return findOne[models.Conversation](ctx, s.conversations, bson.M{"_id": id})
}

func (s *MongoStorage) ListConversations(ctx context.Context, userID, departmentID string) ([]*models.Conversation, error) {
	filter := bson.M{"user_id": userID}
	if departmentID != "" {
		filter["department_id"] = departmentID
	}
	return findAll[models.Conversation](ctx, s.conversations, filter, options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}))
}

func (s *MongoStorage) DeleteConversation(ctx context.Context, id string) error {
	result, err := s.conversations.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	_, err = s.messages.DeleteMany(ctx, bson.M{"conversation_id": id})
	return err
}

func (s *MongoStorage) AppendMessage(ctx context.Context, msg *models.Message) error {
	prepareMessage(msg, uuid.NewString)

	result, err := s.conversations.UpdateByID(ctx, msg.ConversationID, bson.M{
		"$max": bson.M{"updated_at": msg.CreatedAt},
	})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}

	_, err = s.messages.InsertOne(ctx, msg)
	return err
}

func (s *MongoStorage) ListMessages(ctx context.Context, conversationID string) ([]*models.Message, error) {
	return findAll[models.Message](ctx, s.messages, bson.M{"conversation_id": conversationID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

func (s *MongoStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
