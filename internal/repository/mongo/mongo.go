// Package mongo implements the repository interfaces on MongoDB.
//
// Offerings live in one collection per kind (courses, events, opportunities),
// as named by the kind dispatch table. Users are single documents carrying
// every gamification collection, so a versioned $set on one document is
// already atomic. The two cross-document writes are handled as follows:
//
//   - seat reservation is one FindOneAndUpdate whose filter contains the
//     capacity test ($expr seats_taken < capacity);
//   - a like touches the user and the target. The user side is a
//     conditional $addToSet/$pull, then the counter moves; if the counter
//     write fails the user side is reverted with a bounded retry.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/juju/clock"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/sakif/youthhub/internal/model"
	"github.com/sakif/youthhub/internal/repository"
)

const (
	connectTimeout    = 10 * time.Second
	disconnectTimeout = 5 * time.Second

	usersCollection        = "users"
	achievementsCollection = "achievements"
)

var _ repository.Store = (*Store)(nil)

// Store owns one mongo client and the database it works in.
type Store struct {
	client *mongodriver.Client
	db     *mongodriver.Database
	clock  clock.Clock
	logger *slog.Logger
}

// Option customises a Store.
type Option func(*Store)

// WithLogger sets the logger used for compensation failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open connects, pings and ensures indexes.
func Open(ctx context.Context, uri, database string, opts ...Option) (*Store, error) {
	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongodriver.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connecting: %w", err)
	}
	if err := client.Ping(cctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(cctx)
		return nil, fmt.Errorf("mongo: pinging: %w", err)
	}

	s := &Store{
		client: client,
		db:     client.Database(database),
		clock:  clock.WallClock,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}

	if err := s.EnsureIndexes(cctx); err != nil {
		_ = client.Disconnect(cctx)
		return nil, err
	}
	return s, nil
}

// EnsureIndexes creates the unique and ranking indexes. Safe to repeat.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	nonEmpty := func(field string) bson.M {
		return bson.M{field: bson.M{"$gt": ""}}
	}

	_, err := s.users().Indexes().CreateMany(ctx, []mongodriver.IndexModel{
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("users_email_unique").
				SetPartialFilterExpression(nonEmpty("email")),
		},
		{
			Keys: bson.D{{Key: "provider", Value: 1}, {Key: "provider_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("users_provider_unique").
				SetPartialFilterExpression(nonEmpty("provider")),
		},
		{
			Keys: bson.D{
				{Key: "active", Value: 1},
				{Key: "xp", Value: -1},
				{Key: "level", Value: -1},
				{Key: "created_at", Value: 1},
			},
			Options: options.Index().SetName("users_ranking"),
		},
	})
	if err != nil {
		return fmt.Errorf("mongo: users indexes: %w", err)
	}

	for _, kind := range model.Kinds() {
		_, err := s.offerings(kind).Indexes().CreateOne(ctx, mongodriver.IndexModel{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName(kind.Spec().Collection + "_created_at"),
		})
		if err != nil {
			return fmt.Errorf("mongo: %s indexes: %w", kind, err)
		}
	}

	_, err = s.achievements().Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("achievements_name_unique"),
	})
	if err != nil {
		return fmt.Errorf("mongo: achievements indexes: %w", err)
	}
	return nil
}

// Ping is the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) users() *mongodriver.Collection {
	return s.db.Collection(usersCollection)
}

func (s *Store) achievements() *mongodriver.Collection {
	return s.db.Collection(achievementsCollection)
}

// offerings resolves the collection through the kind dispatch table.
func (s *Store) offerings(kind model.Kind) *mongodriver.Collection {
	return s.db.Collection(kind.Spec().Collection)
}

func utcNow() time.Time {
	return time.Now().UTC()
}
