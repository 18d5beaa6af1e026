package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/juju/clock"
	"github.com/juju/retry"

	"github.com/sakif/youthhub/internal/apperror"
	"github.com/sakif/youthhub/internal/model"
	"github.com/sakif/youthhub/internal/repository"
)

// EnrollmentResult is returned by Enroll and Cancel. The seat numbers are
// flattened into the JSON body next to the discriminator.
type EnrollmentResult struct {
	Type       Outcome    `json:"type"`
	Kind       model.Kind `json:"kind"`
	OfferingID string     `json:"offeringId"`
	model.Seats
}

// EnrollmentService moves a (user, offering) pair between NotEnrolled and
// Enrolled while keeping the offering's seat count in step.
//
// ORDERING:
// Enroll reserves the seat BEFORE it touches the user. If the user write
// then fails, giving the seat back is a single counter decrement. The
// reverse order would leave a visible enrollment to undo.
type EnrollmentService struct {
	users     repository.UserRepository
	offerings repository.OfferingRepository
	ledger    *CapacityLedger
	logger    *slog.Logger
}

func NewEnrollmentService(
	users repository.UserRepository,
	offerings repository.OfferingRepository,
	ledger *CapacityLedger,
	logger *slog.Logger,
) *EnrollmentService {
	return &EnrollmentService{
		users:     users,
		offerings: offerings,
		ledger:    ledger,
		logger:    logger,
	}
}

// Enroll gives the user a seat in the offering.
//
// A repeated enroll is answered with OutcomeDuplicate and changes nothing.
// A full offering fails with apperror.ErrCapacityExceeded, carrying the
// occupancy that was observed.
func (s *EnrollmentService) Enroll(ctx context.Context, userID string, kind model.Kind, offeringID string) (*EnrollmentResult, error) {
	if err := requireEnrollable(kind); err != nil {
		return nil, err
	}

	o, err := s.offerings.GetOffering(ctx, kind, offeringID)
	if err != nil {
		return nil, fmt.Errorf("service/enrollment: loading %s %s: %w", kind, offeringID, err)
	}
	if err := enrollmentOpen(o.State); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/enrollment: loading user %s: %w", userID, err)
	}
	if user.IsEnrolled(kind, offeringID) {
		return s.result(OutcomeDuplicate, o, o.Seats()), nil
	}

	seats, reservation, err := s.ledger.TryReserveSeat(ctx, kind, offeringID)
	if err != nil {
		return nil, fmt.Errorf("service/enrollment: %w", err)
	}
	if reservation == Full {
		return nil, apperror.CapacityExceeded(seats)
	}

	_, changed, err := mutateUser(ctx, s.users, user, func(u *model.User) error {
		if u.IsEnrolled(kind, offeringID) {
			return errUnchanged
		}
		u.AddEnrollment(kind, offeringID)
		return nil
	})
	if err != nil {
		s.compensate(ctx, userID, kind, offeringID, err)
		return nil, fmt.Errorf("service/enrollment: saving enrollment of %s in %s %s: %w", userID, kind, offeringID, err)
	}
	if !changed {
		// A concurrent request enrolled the same user between our read and
		// our reservation. Hand back the extra seat.
		released, err := s.releaseWithRetry(ctx, kind, offeringID)
		if err != nil {
			s.logSeatLeak(userID, kind, offeringID, err)
			released = seats
		}
		return s.result(OutcomeDuplicate, o, released), nil
	}

	s.logger.Info("user enrolled",
		slog.String("user_id", userID),
		slog.String("kind", kind.String()),
		slog.String("offering_id", offeringID),
		slog.Int("seats_taken", seats.SeatsTaken),
	)
	return s.result(OutcomeSuccess, o, seats), nil
}

// Cancel removes the enrollment and, for bounded offerings, frees the seat.
func (s *EnrollmentService) Cancel(ctx context.Context, userID string, kind model.Kind, offeringID string) (*EnrollmentResult, error) {
	if err := requireEnrollable(kind); err != nil {
		return nil, err
	}

	o, err := s.offerings.GetOffering(ctx, kind, offeringID)
	if err != nil {
		return nil, fmt.Errorf("service/enrollment: loading %s %s: %w", kind, offeringID, err)
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/enrollment: loading user %s: %w", userID, err)
	}
	if !user.IsEnrolled(kind, offeringID) {
		return nil, apperror.NotSubscribed(kind, offeringID)
	}

	_, _, err = mutateUser(ctx, s.users, user, func(u *model.User) error {
		if !u.RemoveEnrollment(kind, offeringID) {
			return apperror.NotSubscribed(kind, offeringID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("service/enrollment: saving cancellation of %s in %s %s: %w", userID, kind, offeringID, err)
	}

	seats := o.Seats()
	if o.Capacity != nil && o.SeatsTaken > 0 {
		released, err := s.ledger.ReleaseSeat(ctx, kind, offeringID)
		if err != nil {
			// The user no longer holds the seat but the counter still does.
			s.logger.Error("seat release failed after cancellation",
				slog.String("user_id", userID),
				slog.String("kind", kind.String()),
				slog.String("offering_id", offeringID),
				slog.String("error", err.Error()),
			)
		} else {
			seats = released
		}
	}

	s.logger.Info("enrollment cancelled",
		slog.String("user_id", userID),
		slog.String("kind", kind.String()),
		slog.String("offering_id", offeringID),
	)
	return s.result(OutcomeSuccess, o, seats), nil
}

// ListMine returns the offerings of one kind the user is enrolled in, in
// enrollment order. Ids whose offering no longer exists are skipped.
func (s *EnrollmentService) ListMine(ctx context.Context, userID string, kind model.Kind) ([]model.Offering, error) {
	if err := requireEnrollable(kind); err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/enrollment: loading user %s: %w", userID, err)
	}
	ids := user.Enrollments[kind]
	if len(ids) == 0 {
		return []model.Offering{}, nil
	}
	offerings, err := s.offerings.ListOfferingsByIDs(ctx, kind, ids)
	if err != nil {
		return nil, fmt.Errorf("service/enrollment: listing %s of %s: %w", kind, userID, err)
	}
	return offerings, nil
}

// compensate gives back the seat reserved for a user write that failed.
func (s *EnrollmentService) compensate(ctx context.Context, userID string, kind model.Kind, offeringID string, cause error) {
	s.logger.Warn("enrollment write failed, releasing reserved seat",
		slog.String("user_id", userID),
		slog.String("kind", kind.String()),
		slog.String("offering_id", offeringID),
		slog.String("error", cause.Error()),
	)
	if _, err := s.releaseWithRetry(ctx, kind, offeringID); err != nil {
		s.logSeatLeak(userID, kind, offeringID, err)
	}
}

// releaseWithRetry runs ReleaseSeat under a context detached from the
// request, so a client that hung up cannot strand the seat.
func (s *EnrollmentService) releaseWithRetry(ctx context.Context, kind model.Kind, offeringID string) (model.Seats, error) {
	ctx = context.WithoutCancel(ctx)
	var seats model.Seats
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			released, err := s.ledger.ReleaseSeat(ctx, kind, offeringID)
			if err != nil {
				return err
			}
			seats = released
			return nil
		},
		IsFatalError: func(err error) bool {
			return errors.Is(err, apperror.ErrNotFound)
		},
		NotifyFunc: func(err error, attempt int) {
			s.logger.Warn("seat release attempt failed",
				slog.String("kind", kind.String()),
				slog.String("offering_id", offeringID),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		},
		Attempts: releaseAttempts,
		Delay:    releaseRetryDelay,
		Clock:    clock.WallClock,
	})
	return seats, err
}

func (s *EnrollmentService) logSeatLeak(userID string, kind model.Kind, offeringID string, err error) {
	s.logger.Error("reserved seat could not be released",
		slog.String("user_id", userID),
		slog.String("kind", kind.String()),
		slog.String("offering_id", offeringID),
		slog.String("error", err.Error()),
	)
}

func (s *EnrollmentService) result(t Outcome, o *model.Offering, seats model.Seats) *EnrollmentResult {
	return &EnrollmentResult{
		Type:       t,
		Kind:       o.Kind,
		OfferingID: o.ID,
		Seats:      seats,
	}
}

func requireEnrollable(kind model.Kind) error {
	if !kind.Spec().Enrollable {
		return apperror.ValidationFailed("kind", fmt.Sprintf("%s does not accept enrollment", kind))
	}
	return nil
}

// enrollmentOpen allows enrollment only while the offering is Upcoming.
func enrollmentOpen(state model.LifecycleState) error {
	switch state {
	case model.StateUpcoming:
		return nil
	case model.StateOngoing:
		return apperror.InvalidStatus("enrollment closed")
	case model.StateCompleted:
		return apperror.InvalidStatus("already finished")
	case model.StateCancelled:
		return apperror.InvalidStatus("cancelled")
	}
	return apperror.InvalidStatus(fmt.Sprintf("unknown state %q", state))
}
