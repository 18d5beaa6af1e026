package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/juju/clock"

	"github.com/sakif/youthhub/internal/apperror"
	"github.com/sakif/youthhub/internal/model"
	"github.com/sakif/youthhub/internal/repository"
)

// CheckInResult is the outcome of CheckIn.
//
// A closed window is reported as Type=invalid_status with a Message. It is
// a result and not an error: clients poll check-in before an event opens
// and that is not a failure.
type CheckInResult struct {
	Type       Outcome    `json:"type"`
	Kind       model.Kind `json:"kind"`
	OfferingID string     `json:"offeringId"`
	Message    string     `json:"message,omitempty"`
	XPAwarded  int        `json:"xpAwarded"`
	XP         int        `json:"xp"`
	Level      int        `json:"level"`
	LeveledUp  bool       `json:"leveledUp"`
}

// CheckInService records one-time attendance and awards XP.
type CheckInService struct {
	users     repository.UserRepository
	offerings repository.OfferingRepository
	clock     clock.Clock
	logger    *slog.Logger
}

func NewCheckInService(
	users repository.UserRepository,
	offerings repository.OfferingRepository,
	clk clock.Clock,
	logger *slog.Logger,
) *CheckInService {
	return &CheckInService{
		users:     users,
		offerings: offerings,
		clock:     clk,
		logger:    logger,
	}
}

// CheckIn confirms the user's attendance at an Ongoing offering. The
// history entry, the XP and the recomputed level go out in one SaveUser.
// A second check-in on the same offering awards nothing.
func (s *CheckInService) CheckIn(ctx context.Context, userID string, kind model.Kind, offeringID string) (*CheckInResult, error) {
	if !kind.Spec().CheckIn {
		return nil, apperror.ValidationFailed("kind", fmt.Sprintf("%s does not accept check-in", kind))
	}

	o, err := s.offerings.GetOffering(ctx, kind, offeringID)
	if err != nil {
		return nil, fmt.Errorf("service/checkin: loading %s %s: %w", kind, offeringID, err)
	}
	res := &CheckInResult{Kind: kind, OfferingID: offeringID}
	if o.State != model.StateOngoing {
		res.Type = OutcomeInvalidStatus
		res.Message = checkInClosedMessage(o.State)
		return res, nil
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/checkin: loading user %s: %w", userID, err)
	}
	if user.HasCheckIn(kind, offeringID) {
		res.Type = OutcomeDuplicate
		res.XP, res.Level = user.XP, user.Level
		return res, nil
	}

	levelBefore := user.Level
	saved, changed, err := mutateUser(ctx, s.users, user, func(u *model.User) error {
		if u.HasCheckIn(kind, offeringID) {
			return errUnchanged
		}
		levelBefore = u.Level
		u.CheckIns = append(u.CheckIns, model.CheckIn{
			Kind:       kind,
			TargetID:   offeringID,
			XPAwarded:  o.XPReward,
			OccurredAt: s.clock.Now().UTC(),
		})
		u.AddXP(o.XPReward)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("service/checkin: saving check-in of %s at %s %s: %w", userID, kind, offeringID, err)
	}
	res.XP, res.Level = saved.XP, saved.Level
	if !changed {
		res.Type = OutcomeDuplicate
		return res, nil
	}

	res.Type = OutcomeSuccess
	res.XPAwarded = o.XPReward
	res.LeveledUp = saved.Level > levelBefore

	s.logger.Info("check-in recorded",
		slog.String("user_id", userID),
		slog.String("kind", kind.String()),
		slog.String("offering_id", offeringID),
		slog.Int("xp_awarded", o.XPReward),
		slog.Int("xp", saved.XP),
		slog.Int("level", saved.Level),
	)
	return res, nil
}

func checkInClosedMessage(state model.LifecycleState) string {
	switch state {
	case model.StateUpcoming:
		return "check-in not open yet"
	case model.StateCompleted:
		return "already finished"
	case model.StateCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("check-in not allowed in state %q", state)
}
