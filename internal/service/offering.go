package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/youthhub/internal/apperror"
	"github.com/sakif/youthhub/internal/model"
	"github.com/sakif/youthhub/internal/repository"
)

// OfferingService is the thin content-management surface over the
// offering store: browse, create, and move through the lifecycle.
type OfferingService struct {
	offerings repository.OfferingRepository
	logger    *slog.Logger
}

func NewOfferingService(offerings repository.OfferingRepository, logger *slog.Logger) *OfferingService {
	return &OfferingService{offerings: offerings, logger: logger}
}

func (s *OfferingService) List(ctx context.Context, kind model.Kind, limit, offset int) ([]model.Offering, error) {
	if offset < 0 {
		offset = 0
	}
	list, err := s.offerings.ListOfferings(ctx, kind, repository.ListOptions{
		Limit:  clampLimit(limit),
		Offset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("service/offering: listing %s: %w", kind, err)
	}
	return list, nil
}

func (s *OfferingService) Get(ctx context.Context, kind model.Kind, id string) (*model.Offering, error) {
	o, err := s.offerings.GetOffering(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("service/offering: loading %s %s: %w", kind, id, err)
	}
	return o, nil
}

// Create validates and stores a new offering. A new offering starts
// Upcoming with no seats taken and no likes, whatever the caller sent.
func (s *OfferingService) Create(ctx context.Context, o *model.Offering) error {
	o.Title = strings.TrimSpace(o.Title)
	switch {
	case !o.Kind.Valid():
		return apperror.ValidationFailed("kind", fmt.Sprintf("unknown kind %q", o.Kind))
	case o.Title == "":
		return apperror.ValidationFailed("title", "title is required")
	case o.Capacity != nil && *o.Capacity < 0:
		return apperror.ValidationFailed("capacity", "capacity must not be negative")
	case o.XPReward < 0:
		return apperror.ValidationFailed("xpReward", "xpReward must not be negative")
	case o.StartsAt != nil && o.EndsAt != nil && o.EndsAt.Before(*o.StartsAt):
		return apperror.ValidationFailed("endsAt", "endsAt must not be before startsAt")
	}
	if !o.Kind.Spec().Enrollable {
		o.Capacity = nil
	}
	o.State = model.StateUpcoming
	o.SeatsTaken = 0
	o.LikesCount = 0

	if err := s.offerings.CreateOffering(ctx, o); err != nil {
		return fmt.Errorf("service/offering: creating %s: %w", o.Kind, err)
	}
	s.logger.Info("offering created",
		slog.String("kind", o.Kind.String()),
		slog.String("offering_id", o.ID),
		slog.String("title", o.Title),
	)
	return nil
}

// SetState moves an offering to another lifecycle state.
func (s *OfferingService) SetState(ctx context.Context, kind model.Kind, id string, state model.LifecycleState) (*model.Offering, error) {
	o, err := s.offerings.SetLifecycleState(ctx, kind, id, state)
	if err != nil {
		return nil, fmt.Errorf("service/offering: setting state of %s %s: %w", kind, id, err)
	}
	s.logger.Info("offering state changed",
		slog.String("kind", kind.String()),
		slog.String("offering_id", id),
		slog.String("state", string(state)),
	)
	return o, nil
}
