// Package mongo implements store.Store on a MongoDB collection. The same
// store doubles as the remote copy for cloud sync through Remote.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/wordledger/cloudsync"
	"github.com/xraph/wordledger/store"
)

// DefaultCollection is the collection values are stored in.
const DefaultCollection = "wordledger_kv"

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using MongoDB.
type Store struct {
	client *mongo.Client
	col    *mongo.Collection
	owned  bool
}

// New creates a store on an existing database handle. Close does not
// disconnect the caller's client.
func New(db *mongo.Database) *Store {
	return &Store{
		client: db.Client(),
		col:    db.Collection(DefaultCollection),
	}
}

// Connect dials uri and opens a store in database.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("wordledger/mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("wordledger/mongo: ping: %w", err)
	}
	s := New(client.Database(database))
	s.owned = true
	return s, nil
}

// Collection returns the underlying collection for direct access.
func (s *Store) Collection() *mongo.Collection { return s.col }

// Remote exposes the store as a cloud sync remote.
func (s *Store) Remote() cloudsync.Remote { return cloudsync.FromStore(s) }

// Migrate creates the collection indexes.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "updated_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("wordledger/mongo: migrate %s indexes: %w", s.col.Name(), err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client if the store dialed it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var m kvModel
	err := s.col.FindOne(ctx, bson.M{"_id": key}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("wordledger/mongo: get %q: %w", key, err)
	}
	return m.Value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	m := kvModel{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": key}, m, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("wordledger/mongo: set %q: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.col.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("wordledger/mongo: delete %q: %w", key, err)
	}
	return nil
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
