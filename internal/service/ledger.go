package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/youthhub/internal/model"
	"github.com/sakif/youthhub/internal/repository"
)

// Reservation is the outcome of TryReserveSeat. Full is a normal outcome,
// not an error.
type Reservation int

const (
	Reserved Reservation = iota + 1
	Full
)

func (r Reservation) String() string {
	switch r {
	case Reserved:
		return "reserved"
	case Full:
		return "full"
	}
	return "unknown"
}

// CapacityLedger owns seat counting for capacity-bounded offerings.
//
// It never reads and then writes: both operations are a single conditional
// update in the store (OfferingRepository.UpdateSeats), which is what keeps
// 0 <= seatsTaken <= capacity under concurrent enrollment.
type CapacityLedger struct {
	offerings repository.OfferingRepository
	logger    *slog.Logger
}

func NewCapacityLedger(offerings repository.OfferingRepository, logger *slog.Logger) *CapacityLedger {
	return &CapacityLedger{offerings: offerings, logger: logger}
}

// TryReserveSeat takes one seat if one is free (or capacity is unlimited).
// It returns the seat snapshot after the attempt in both outcomes.
func (l *CapacityLedger) TryReserveSeat(ctx context.Context, kind model.Kind, offeringID string) (model.Seats, Reservation, error) {
	o, applied, err := l.offerings.UpdateSeats(ctx, kind, offeringID, 1)
	if err != nil {
		return model.Seats{}, 0, fmt.Errorf("reserving seat on %s %s: %w", kind, offeringID, err)
	}
	if !applied {
		l.logger.Info("seat reservation refused, offering full",
			slog.String("kind", kind.String()),
			slog.String("offering_id", offeringID),
			slog.Int("seats_taken", o.SeatsTaken),
		)
		return o.Seats(), Full, nil
	}
	return o.Seats(), Reserved, nil
}

// ReleaseSeat gives one seat back, never going below zero. Callers decide
// whether a release is due.
func (l *CapacityLedger) ReleaseSeat(ctx context.Context, kind model.Kind, offeringID string) (model.Seats, error) {
	o, _, err := l.offerings.UpdateSeats(ctx, kind, offeringID, -1)
	if err != nil {
		return model.Seats{}, fmt.Errorf("releasing seat on %s %s: %w", kind, offeringID, err)
	}
	return o.Seats(), nil
}
