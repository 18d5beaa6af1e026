package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/juju/retry"
	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/youthhub/internal/apperror"
	"github.com/sakif/youthhub/internal/model"
)

const (
	revertAttempts = 3
	revertDelay    = 50 * time.Millisecond
)

// summaryProjection drops the collections from ranking reads.
var summaryProjection = bson.M{
	"enrollments":     0,
	"reminders":       0,
	"checkin_history": 0,
	"likes":           0,
	"achievements":    0,
}

var rankingSort = bson.D{
	{Key: "xp", Value: -1},
	{Key: "level", Value: -1},
	{Key: "created_at", Value: 1},
	{Key: "_id", Value: 1},
}

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	now := utcNow()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = now
	user.Version = 1
	if user.Level < 1 {
		user.Level = model.LevelForXP(user.XP)
	}

	if _, err := s.users().InsertOne(ctx, newUserDoc(user)); err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("mongo: insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.findUser(ctx, bson.M{"_id": id}, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if email == "" {
		return nil, apperror.NotFound("user", email)
	}
	return s.findUser(ctx, bson.M{"email": email}, email)
}

func (s *Store) GetUserByProvider(ctx context.Context, provider, providerID string) (*model.User, error) {
	return s.findUser(ctx, bson.M{"provider": provider, "provider_id": providerID}, providerID)
}

func (s *Store) findUser(ctx context.Context, filter bson.M, label string) (*model.User, error) {
	var d userDoc
	if err := s.users().FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, apperror.NotFound("user", label)
		}
		return nil, fmt.Errorf("mongo: find user: %w", err)
	}
	return d.model(), nil
}

// SaveUser is a single-document $set guarded by the version field. Likes,
// active and role are deliberately left out of the $set.
func (s *Store) SaveUser(ctx context.Context, user *model.User) error {
	now := utcNow()
	user.Level = model.LevelForXP(user.XP)
	d := newUserDoc(user)

	res, err := s.users().UpdateOne(ctx,
		bson.M{"_id": user.ID, "version": user.Version},
		bson.M{"$set": bson.M{
			"name":            d.Name,
			"email":           d.Email,
			"avatar_url":      d.AvatarURL,
			"xp":              d.XP,
			"level":           d.Level,
			"enrollments":     d.Enrollments,
			"reminders":       d.Reminders,
			"checkin_history": d.CheckIns,
			"achievements":    d.Achievements,
			"version":         user.Version + 1,
			"updated_at":      now,
		}},
	)
	if err != nil {
		return fmt.Errorf("mongo: update user %s: %w", user.ID, err)
	}
	if res.MatchedCount == 0 {
		n, err := s.users().CountDocuments(ctx, bson.M{"_id": user.ID})
		if err != nil {
			return fmt.Errorf("mongo: post-check user %s: %w", user.ID, err)
		}
		if n == 0 {
			return apperror.NotFound("user", user.ID)
		}
		return apperror.Conflict("user", user.ID)
	}

	user.Version++
	user.UpdatedAt = now
	return nil
}

func (s *Store) SetActive(ctx context.Context, id string, active bool) error {
	res, err := s.users().UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"active": active, "updated_at": utcNow()}},
	)
	if err != nil {
		return fmt.Errorf("mongo: set active on %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

func (s *Store) ListActiveUsers(ctx context.Context) ([]model.User, error) {
	return s.listRanked(ctx, options.Find().SetSort(rankingSort).SetProjection(summaryProjection))
}

func (s *Store) TopActiveUsers(ctx context.Context, n int) ([]model.User, error) {
	return s.listRanked(ctx, options.Find().SetSort(rankingSort).SetProjection(summaryProjection).SetLimit(int64(n)))
}

func (s *Store) listRanked(ctx context.Context, opts *options.FindOptions) ([]model.User, error) {
	cur, err := s.users().Find(ctx, bson.M{"active": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: list ranked users: %w", err)
	}
	defer cur.Close(ctx)

	users := []model.User{}
	for cur.Next(ctx) {
		var d userDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("mongo: decode user: %w", err)
		}
		users = append(users, *d.model())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongo: ranked users cursor: %w", err)
	}
	return users, nil
}

// SetLike flips like-set membership, then moves the counter.
//
// The user-side update is conditional on the current membership, so a
// repeated call matches nothing and changes nothing. If the counter update
// then fails, the membership change is undone with a bounded retry. A failed
// undo is logged; it leaves exactly the recoverable drift that a later toggle
// or a recount repairs.
func (s *Store) SetLike(ctx context.Context, userID string, kind model.Kind, targetID string, liked bool) (int, error) {
	if !kind.Valid() {
		return 0, apperror.NotFound(string(kind), targetID)
	}
	field := "likes." + string(kind)

	var (
		filter, apply, undo bson.M
		delta               int
	)
	if liked {
		filter = bson.M{"_id": userID, field: bson.M{"$ne": targetID}}
		apply = bson.M{"$addToSet": bson.M{field: targetID}}
		undo = bson.M{"$pull": bson.M{field: targetID}}
		delta = 1
	} else {
		filter = bson.M{"_id": userID, field: targetID}
		apply = bson.M{"$pull": bson.M{field: targetID}}
		undo = bson.M{"$addToSet": bson.M{field: targetID}}
		delta = -1
	}

	res, err := s.users().UpdateOne(ctx, filter, apply)
	if err != nil {
		return 0, fmt.Errorf("mongo: like set of %s: %w", userID, err)
	}
	if res.MatchedCount == 0 {
		// Already in the requested state, or no such user.
		if _, err := s.GetUserByID(ctx, userID); err != nil {
			return 0, err
		}
		o, err := s.GetOffering(ctx, kind, targetID)
		if err != nil {
			return 0, err
		}
		return o.LikesCount, nil
	}

	o, err := s.bumpCounter(ctx, kind, targetID, "likes_count", delta)
	if err != nil {
		s.revertLike(userID, kind, targetID, undo)
		return 0, err
	}
	return o.LikesCount, nil
}

func (s *Store) revertLike(userID string, kind model.Kind, targetID string, undo bson.M) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	err := retry.Call(retry.CallArgs{
		Func: func() error {
			_, err := s.users().UpdateOne(ctx, bson.M{"_id": userID}, undo)
			return err
		},
		Attempts: revertAttempts,
		Delay:    revertDelay,
		Clock:    s.clock,
		NotifyFunc: func(err error, attempt int) {
			s.logger.Warn("like revert attempt failed",
				slog.String("user_id", userID),
				slog.String("kind", kind.String()),
				slog.String("target_id", targetID),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		},
	})
	if err != nil {
		s.logger.Error("like set and counter out of sync",
			slog.String("user_id", userID),
			slog.String("kind", kind.String()),
			slog.String("target_id", targetID),
			slog.String("error", err.Error()),
		)
	}
}
