package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vovakirdan/chatrelay/internal/store"
)

const (
	usersCollection    = "users"
	messagesCollection = "messages"
)

// MongoStore implements store.Store on a MongoDB database.
type MongoStore struct {
	client   *mongo.Client
	users    *mongo.Collection
	messages *mongo.Collection
}

// New connects to uri, selects database and ensures indexes exist.
func New(ctx context.Context, uri, database string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:   client,
		users:    db.Collection(usersCollection),
		messages: db.Collection(messagesCollection),
	}
	if err := s.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create users index: %w", err)
	}

	_, err = s.messages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "room", Value: 1}, {Key: "time", Value: 1}}},
		{Keys: bson.D{{Key: "isPrivate", Value: 1}, {Key: "time", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create messages indexes: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// CreateUser inserts a new user.
func (s *MongoStore) CreateUser(ctx context.Context, user *store.User) error {
	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert user: %w", store.ErrDuplicate)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByEmail retrieves a user by email.
func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	var user store.User
	if err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("user %q: %w", email, store.ErrNotFound)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// SaveMessage inserts a message document.
func (s *MongoStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	if _, err := s.messages.InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("insert message %q: %w", msg.ID, err)
	}
	return nil
}

// ListPublicMessages returns global, non-private messages oldest first.
func (s *MongoStore) ListPublicMessages(ctx context.Context, limit int) ([]*store.Message, error) {
	return s.find(ctx, bson.M{"room": nil, "isPrivate": false}, limit)
}

// ListRoomMessages returns messages tagged with room oldest first.
func (s *MongoStore) ListRoomMessages(ctx context.Context, room string, limit int) ([]*store.Message, error) {
	return s.find(ctx, bson.M{"room": room}, limit)
}

func (s *MongoStore) find(ctx context.Context, filter bson.M, limit int) ([]*store.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "time", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := s.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	defer cursor.Close(ctx)

	messages := make([]*store.Message, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	for _, m := range messages {
		m.Time = m.Time.UTC()
	}
	return messages, nil
}

var _ store.Store = (*MongoStore)(nil)
