package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/juju/clock"

	"github.com/sakif/youthhub/internal/model"
	"github.com/sakif/youthhub/internal/repository"
)

// ReminderResult reports the reminder state after a toggle.
type ReminderResult struct {
	Type     Outcome    `json:"type"`
	Kind     model.Kind `json:"kind"`
	TargetID string     `json:"targetId"`
	Active   bool       `json:"active"`
}

// ReminderView is a stored reminder joined with its offering.
type ReminderView struct {
	model.Reminder
	Offering model.Offering `json:"offering"`
}

// LikeResult reports the like state and the target's counter after a toggle.
type LikeResult struct {
	Type       Outcome    `json:"type"`
	Kind       model.Kind `json:"kind"`
	TargetID   string     `json:"targetId"`
	Liked      bool       `json:"liked"`
	LikesCount int        `json:"likesCount"`
}

// ToggleService flips per-user membership relations: reminders and likes.
// Each call inverts the current state; there are no separate add and
// remove operations.
type ToggleService struct {
	users     repository.UserRepository
	offerings repository.OfferingRepository
	clock     clock.Clock
	logger    *slog.Logger
}

func NewToggleService(
	users repository.UserRepository,
	offerings repository.OfferingRepository,
	clk clock.Clock,
	logger *slog.Logger,
) *ToggleService {
	return &ToggleService{
		users:     users,
		offerings: offerings,
		clock:     clk,
		logger:    logger,
	}
}

// ToggleReminder adds a reminder for the target, or removes the existing
// one. remindAt is optional.
func (s *ToggleService) ToggleReminder(ctx context.Context, userID string, kind model.Kind, targetID string, remindAt *time.Time) (*ReminderResult, error) {
	if _, err := s.offerings.GetOffering(ctx, kind, targetID); err != nil {
		return nil, fmt.Errorf("service/toggle: loading %s %s: %w", kind, targetID, err)
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/toggle: loading user %s: %w", userID, err)
	}

	var active bool
	_, _, err = mutateUser(ctx, s.users, user, func(u *model.User) error {
		if i := u.ReminderIndex(kind, targetID); i >= 0 {
			u.RemoveReminderAt(kind, i)
			active = false
			return nil
		}
		r := model.Reminder{TargetID: targetID, CreatedAt: s.clock.Now().UTC()}
		if remindAt != nil {
			t := remindAt.UTC()
			r.RemindAt = &t
		}
		u.AddReminder(kind, r)
		active = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("service/toggle: saving reminder of %s on %s %s: %w", userID, kind, targetID, err)
	}

	s.logger.Info("reminder toggled",
		slog.String("user_id", userID),
		slog.String("kind", kind.String()),
		slog.String("target_id", targetID),
		slog.Bool("active", active),
	)
	return &ReminderResult{Type: OutcomeSuccess, Kind: kind, TargetID: targetID, Active: active}, nil
}

// ListReminders returns the user's reminders of one kind with their
// offerings, in the order they were set. Reminders whose offering was
// removed are left out.
func (s *ToggleService) ListReminders(ctx context.Context, userID string, kind model.Kind) ([]ReminderView, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/toggle: loading user %s: %w", userID, err)
	}
	reminders := user.Reminders[kind]
	views := make([]ReminderView, 0, len(reminders))
	if len(reminders) == 0 {
		return views, nil
	}

	ids := make([]string, len(reminders))
	for i, r := range reminders {
		ids[i] = r.TargetID
	}
	offerings, err := s.offerings.ListOfferingsByIDs(ctx, kind, ids)
	if err != nil {
		return nil, fmt.Errorf("service/toggle: listing reminded %s of %s: %w", kind, userID, err)
	}
	byID := make(map[string]model.Offering, len(offerings))
	for _, o := range offerings {
		byID[o.ID] = o
	}
	for _, r := range reminders {
		if o, ok := byID[r.TargetID]; ok {
			views = append(views, ReminderView{Reminder: r, Offering: o})
		}
	}
	return views, nil
}

// ToggleLike likes the target if the user has not, and unlikes it
// otherwise. The like set and the target's counter move together in the
// store (SetLike).
func (s *ToggleService) ToggleLike(ctx context.Context, userID string, kind model.Kind, targetID string) (*LikeResult, error) {
	if _, err := s.offerings.GetOffering(ctx, kind, targetID); err != nil {
		return nil, fmt.Errorf("service/toggle: loading %s %s: %w", kind, targetID, err)
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/toggle: loading user %s: %w", userID, err)
	}

	liked := !user.HasLike(kind, targetID)
	count, err := s.users.SetLike(ctx, userID, kind, targetID, liked)
	if err != nil {
		return nil, fmt.Errorf("service/toggle: setting like of %s on %s %s: %w", userID, kind, targetID, err)
	}

	s.logger.Info("like toggled",
		slog.String("user_id", userID),
		slog.String("kind", kind.String()),
		slog.String("target_id", targetID),
		slog.Bool("liked", liked),
		slog.Int("likes_count", count),
	)
	return &LikeResult{Type: OutcomeSuccess, Kind: kind, TargetID: targetID, Liked: liked, LikesCount: count}, nil
}
