package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/youthhub/internal/apperror"
	"github.com/sakif/youthhub/internal/model"
)

func (s *Store) CreateAchievement(ctx context.Context, a *model.Achievement) error {
	a.ID = xid.New().String()
	a.CreatedAt = utcNow()

	_, err := s.achievements().InsertOne(ctx, achievementDoc{
		ID:          a.ID,
		Name:        a.Name,
		Description: a.Description,
		Category:    a.Category,
		Points:      a.Points,
		Criteria:    a.Criteria,
		IconURL:     a.IconURL,
		Hidden:      a.Hidden,
		CreatedAt:   a.CreatedAt,
	})
	if err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return apperror.Conflict("achievement", a.Name)
		}
		return fmt.Errorf("mongo: insert achievement: %w", err)
	}
	return nil
}

func (s *Store) GetAchievement(ctx context.Context, id string) (*model.Achievement, error) {
	var d achievementDoc
	if err := s.achievements().FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, apperror.NotFound("achievement", id)
		}
		return nil, fmt.Errorf("mongo: get achievement %s: %w", id, err)
	}
	return d.model(), nil
}

func (s *Store) ListAchievements(ctx context.Context) ([]model.Achievement, error) {
	cur, err := s.achievements().Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "category", Value: 1}, {Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo: list achievements: %w", err)
	}
	defer cur.Close(ctx)

	out := []model.Achievement{}
	for cur.Next(ctx) {
		var d achievementDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("mongo: decode achievement: %w", err)
		}
		out = append(out, *d.model())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongo: achievements cursor: %w", err)
	}
	return out, nil
}
