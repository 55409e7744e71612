package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hongminglow/dunes-blog/internal/models"
	"github.com/hongminglow/dunes-blog/internal/storage"
)

const (
	// DefaultDatabase is the database the blog has always used.
	DefaultDatabase = "atlantic_dunes_blog"
	usersCollection = "users"
)

var _ storage.UserStore = (*Store)(nil)

type document struct {
	ID           string     `bson:"id"`
	Username     string     `bson:"username"`
	PasswordHash string     `bson:"passwordHash"`
	Role         string     `bson:"role"`
	CreatedAt    time.Time  `bson:"createdAt"`
	LastLogin    *time.Time `bson:"lastLogin"`
}

// Store provides MongoDB-backed persistence for users.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	opTimeout  time.Duration
}

// NewUserStore connects to MongoDB, verifies the connection and ensures indexes.
// The caller owns the returned store and must Close it.
func NewUserStore(ctx context.Context, uri, database string) (*Store, error) {
	if database == "" {
		database = DefaultDatabase
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	s := &Store{
		client:     client,
		collection: client.Database(database).Collection(usersCollection),
		opTimeout:  5 * time.Second,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("username_unique"),
		},
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("id_unique"),
		},
	})
	if err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// CreateUser inserts a new user document.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	user, err := storage.PrepareNew(user, time.Now())
	if err != nil {
		return models.User{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	_, err = s.collection.InsertOne(ctx, document{
		ID:           user.ID,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		Role:         user.Role,
		CreatedAt:    user.CreatedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return models.User{}, storage.ErrAlreadyExists
	}
	if err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// FindByUsername fetches a user by exact username.
func (s *Store) FindByUsername(ctx context.Context, username string) (models.User, error) {
	return s.findOne(ctx, bson.M{"username": username})
}

// FindByID fetches a user by identifier.
func (s *Store) FindByID(ctx context.Context, id string) (models.User, error) {
	return s.findOne(ctx, bson.M{"id": id})
}

// TouchLastLogin records the time of the latest successful login.
func (s *Store) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return s.set(ctx, id, bson.M{"lastLogin": at.UTC()})
}

// UpdatePassword replaces the stored password hash.
func (s *Store) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return s.set(ctx, id, bson.M{"passwordHash": passwordHash})
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	var doc document
	err := s.collection.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, storage.ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	return models.User{
		ID:           doc.ID,
		Username:     doc.Username,
		PasswordHash: doc.PasswordHash,
		Role:         doc.Role,
		CreatedAt:    doc.CreatedAt,
		LastLogin:    doc.LastLogin,
	}, nil
}

func (s *Store) set(ctx context.Context, id string, fields bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	res, err := s.collection.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}
