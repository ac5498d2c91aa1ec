package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/layer-3/gatekeeper/core"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// DefaultMongoDatabase is the default database of the Mongo identity store.
	DefaultMongoDatabase = "gatekeeper"

	// DefaultMongoCollection is the default collection of the Mongo identity store.
	DefaultMongoCollection = "identities"
)

// identityDoc is the stored form of an identity.
type identityDoc struct {
	ID            string     `bson:"_id"`
	Email         *string    `bson:"email,omitempty"`
	EmailNorm     *string    `bson:"lemail,omitempty"`
	PasswordHash  *string    `bson:"pwd,omitempty"`
	WalletAddress *string    `bson:"wallet,omitempty"`
	CreatedAt     time.Time  `bson:"c"`
	UpdatedAt     time.Time  `bson:"u"`
	LastLoginAt   *time.Time `bson:"login,omitempty"`
}

func (d identityDoc) identity() *core.Identity {
	return &core.Identity{
		ID:            d.ID,
		Email:         d.Email,
		PasswordHash:  d.PasswordHash,
		WalletAddress: d.WalletAddress,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
		LastLoginAt:   d.LastLoginAt,
	}
}

// MongoStore implements the identity store over MongoDB.
// It's safe to use it concurrently from multiple goroutines.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore creates a new Mongo identity store.
// Empty database or collection names take the defaults.
func NewMongoStore(client *mongo.Client, database, collection string) *MongoStore {
	if client == nil {
		panic("client must be provided")
	}
	if database == "" {
		database = DefaultMongoDatabase
	}
	if collection == "" {
		collection = DefaultMongoCollection
	}
	return &MongoStore{coll: client.Database(database).Collection(collection)}
}

// EnsureIndexes creates the unique sparse indexes on the lowered email and the wallet.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "lemail", Value: 1}},
			Options: options.Index().SetName("uq_lemail").SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "wallet", Value: 1}},
			Options: options.Index().SetName("uq_wallet").SetUnique(true).SetSparse(true),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create identity indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (*core.Identity, error) {
	return s.findOne(ctx, "identity.FindByID", bson.M{"_id": id})
}

func (s *MongoStore) FindByEmail(ctx context.Context, email string) (*core.Identity, error) {
	return s.findOne(ctx, "identity.FindByEmail", bson.M{"lemail": core.NormalizeEmail(email)})
}

func (s *MongoStore) FindByWallet(ctx context.Context, address string) (*core.Identity, error) {
	return s.findOne(ctx, "identity.FindByWallet", bson.M{"wallet": address})
}

func (s *MongoStore) findOne(ctx context.Context, op string, filter bson.M) (*core.Identity, error) {
	var doc identityDoc
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, core.ErrIdentityNotFound
		}
		return nil, core.Unavailable(op, err)
	}
	return doc.identity(), nil
}

func (s *MongoStore) Insert(ctx context.Context, identity *core.Identity) error {
	if err := identity.Validate(); err != nil {
		return err
	}

	doc := identityDoc{
		ID:            identity.ID,
		Email:         identity.Email,
		PasswordHash:  identity.PasswordHash,
		WalletAddress: identity.WalletAddress,
		CreatedAt:     identity.CreatedAt,
		UpdatedAt:     identity.UpdatedAt,
		LastLoginAt:   identity.LastLoginAt,
	}
	if identity.Email != nil {
		n := core.NormalizeEmail(*identity.Email)
		doc.EmailNorm = &n
	}

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return core.ConflictError{Field: mongoConflictField(err)}
		}
		return core.Unavailable("identity.Insert", err)
	}
	return nil
}

func (s *MongoStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return s.update(ctx, "identity.UpdateLastLogin", bson.M{"_id": id}, bson.M{"login": at})
}

func (s *MongoStore) UpdatePassword(ctx context.Context, id string, passwordHash string, at time.Time) error {
	return s.update(ctx, "identity.UpdatePassword",
		bson.M{"_id": id, "email": bson.M{"$exists": true}},
		bson.M{"pwd": passwordHash, "u": at},
	)
}

func (s *MongoStore) update(ctx context.Context, op string, filter, set bson.M) error {
	res, err := s.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return core.Unavailable(op, err)
	}
	if res.MatchedCount == 0 {
		return core.ErrIdentityNotFound
	}
	return nil
}

func mongoConflictField(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "lemail"):
		return "email"
	case strings.Contains(msg, "wallet"):
		return "wallet_address"
	case strings.Contains(msg, "_id"):
		return "id"
	default:
		return "unique"
	}
}
