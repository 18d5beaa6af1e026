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
	"github.com/sakif/youthhub/internal/repository"
)

func (s *Store) CreateOffering(ctx context.Context, o *model.Offering) error {
	if !o.Kind.Valid() {
		return apperror.ValidationFailed("kind", fmt.Sprintf("unknown kind %q", o.Kind))
	}
	o.ID = xid.New().String()
	now := utcNow()
	o.CreatedAt = now
	o.UpdatedAt = now

	if _, err := s.offerings(o.Kind).InsertOne(ctx, newOfferingDoc(o)); err != nil {
		return fmt.Errorf("mongo: insert %s: %w", o.Kind, err)
	}
	return nil
}

func (s *Store) GetOffering(ctx context.Context, kind model.Kind, id string) (*model.Offering, error) {
	if !kind.Valid() {
		return nil, apperror.NotFound(string(kind), id)
	}
	var d offeringDoc
	if err := s.offerings(kind).FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, apperror.NotFound(string(kind), id)
		}
		return nil, fmt.Errorf("mongo: get %s %s: %w", kind, id, err)
	}
	return d.model(), nil
}

func (s *Store) ListOfferings(ctx context.Context, kind model.Kind, opts repository.ListOptions) ([]model.Offering, error) {
	find := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(opts.Offset))
	if opts.Limit > 0 {
		find.SetLimit(int64(opts.Limit))
	}
	return s.findOfferings(ctx, kind, bson.M{}, find)
}

// ListOfferingsByIDs returns the offerings in the order of ids.
func (s *Store) ListOfferingsByIDs(ctx context.Context, kind model.Kind, ids []string) ([]model.Offering, error) {
	if len(ids) == 0 {
		return []model.Offering{}, nil
	}
	found, err := s.findOfferings(ctx, kind, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
	if err != nil {
		return nil, err
	}

	byID := make(map[string]model.Offering, len(found))
	for _, o := range found {
		byID[o.ID] = o
	}
	out := make([]model.Offering, 0, len(found))
	for _, id := range ids {
		if o, ok := byID[id]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Store) findOfferings(ctx context.Context, kind model.Kind, filter bson.M, opts *options.FindOptions) ([]model.Offering, error) {
	if !kind.Valid() {
		return []model.Offering{}, nil
	}
	cur, err := s.offerings(kind).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: list %s: %w", kind, err)
	}
	defer cur.Close(ctx)

	out := []model.Offering{}
	for cur.Next(ctx) {
		var d offeringDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("mongo: decode %s: %w", kind, err)
		}
		out = append(out, *d.model())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongo: %s cursor: %w", kind, err)
	}
	return out, nil
}

func (s *Store) SetLifecycleState(ctx context.Context, kind model.Kind, id string, state model.LifecycleState) (*model.Offering, error) {
	if !kind.Valid() {
		return nil, apperror.NotFound(string(kind), id)
	}
	var d offeringDoc
	err := s.offerings(kind).FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": string(state), "updated_at": utcNow()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, apperror.NotFound(string(kind), id)
		}
		return nil, fmt.Errorf("mongo: set status of %s %s: %w", kind, id, err)
	}
	return d.model(), nil
}

// UpdateSeats is the compare-and-increment behind the capacity ledger.
//
// The capacity test is part of the FindOneAndUpdate filter, so the server
// evaluates it and applies $inc on the same document in one step. A
// concurrent reservation that loses the race for the last seat no longer
// matches and nothing is written. The post-update document comes back in
// the same round trip (ReturnDocument After).
func (s *Store) UpdateSeats(ctx context.Context, kind model.Kind, id string, delta int) (*model.Offering, bool, error) {
	if !kind.Valid() {
		return nil, false, apperror.NotFound(string(kind), id)
	}

	switch delta {
	case 1:
		var d offeringDoc
		err := s.offerings(kind).FindOneAndUpdate(ctx,
			bson.M{
				"_id": id,
				"$or": bson.A{
					bson.M{"capacity": nil},
					bson.M{"$expr": bson.M{"$lt": bson.A{"$seats_taken", "$capacity"}}},
				},
			},
			bson.M{
				"$inc": bson.M{"seats_taken": 1},
				"$set": bson.M{"updated_at": utcNow()},
			},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&d)
		if err == nil {
			return d.model(), true, nil
		}
		if !errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, false, fmt.Errorf("mongo: reserve seat on %s %s: %w", kind, id, err)
		}
		// Nothing matched: missing offering, or full.
		current, err := s.GetOffering(ctx, kind, id)
		if err != nil {
			return nil, false, err
		}
		return current, false, nil

	case -1:
		o, err := s.bumpCounter(ctx, kind, id, "seats_taken", -1)
		if err != nil {
			return nil, false, err
		}
		return o, true, nil

	default:
		return nil, false, fmt.Errorf("mongo: seat delta must be +1 or -1, got %d", delta)
	}
}

// bumpCounter adds delta to a counter field, floored at zero, with an
// update pipeline so the floor is evaluated server-side.
func (s *Store) bumpCounter(ctx context.Context, kind model.Kind, id, field string, delta int) (*model.Offering, error) {
	pipeline := mongodriver.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: field, Value: bson.M{"$max": bson.A{0, bson.M{"$add": bson.A{"$" + field, delta}}}}},
			{Key: "updated_at", Value: utcNow()},
		}}},
	}

	var d offeringDoc
	err := s.offerings(kind).FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		pipeline,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, apperror.NotFound(string(kind), id)
		}
		return nil, fmt.Errorf("mongo: update %s of %s %s: %w", field, kind, id, err)
	}
	return d.model(), nil
}
