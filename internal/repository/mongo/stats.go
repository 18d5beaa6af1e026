package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/youthhub/internal/model"
)

func (s *Store) CountUsers(ctx context.Context, role model.Role) (int64, error) {
	n, err := s.users().CountDocuments(ctx, bson.M{"role": string(role)})
	if err != nil {
		return 0, fmt.Errorf("mongo: count users: %w", err)
	}
	return n, nil
}

// AverageXP runs a $match/$group pipeline. An empty match yields no group
// document at all.
func (s *Store) AverageXP(ctx context.Context, role model.Role) (float64, bool, error) {
	cur, err := s.users().Aggregate(ctx, mongodriver.Pipeline{
		{{Key: "$match", Value: bson.M{"role": string(role)}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "avg": bson.M{"$avg": "$xp"}}}},
	})
	if err != nil {
		return 0, false, fmt.Errorf("mongo: average xp: %w", err)
	}
	defer cur.Close(ctx)

	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return 0, false, fmt.Errorf("mongo: average xp cursor: %w", err)
		}
		return 0, false, nil
	}
	var row struct {
		Avg float64 `bson:"avg"`
	}
	if err := cur.Decode(&row); err != nil {
		return 0, false, fmt.Errorf("mongo: decode average xp: %w", err)
	}
	return row.Avg, true, nil
}

func (s *Store) CountOfferings(ctx context.Context, kind model.Kind) (int64, error) {
	if !kind.Valid() {
		return 0, nil
	}
	n, err := s.offerings(kind).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("mongo: count %s: %w", kind, err)
	}
	return n, nil
}

func (s *Store) CountAchievements(ctx context.Context) (int64, error) {
	n, err := s.achievements().CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("mongo: count achievements: %w", err)
	}
	return n, nil
}

// LatestOffering takes the newest document of each kind's collection and
// keeps the newest of those.
func (s *Store) LatestOffering(ctx context.Context) (*model.Offering, error) {
	newest := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	var latest *model.Offering
	for _, kind := range model.Kinds() {
		var d offeringDoc
		if err := s.offerings(kind).FindOne(ctx, bson.M{}, newest).Decode(&d); err != nil {
			if errors.Is(err, mongodriver.ErrNoDocuments) {
				continue
			}
			return nil, fmt.Errorf("mongo: latest %s: %w", kind, err)
		}
		o := d.model()
		if latest == nil || o.CreatedAt.After(latest.CreatedAt) ||
			(o.CreatedAt.Equal(latest.CreatedAt) && o.ID > latest.ID) {
			latest = o
		}
	}
	return latest, nil
}
