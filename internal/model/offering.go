package model

import (
	"fmt"
	"time"
)

// LifecycleState is the temporal phase of an offering. It gates which
// operations are valid: enrollment only while Upcoming, check-in only while
// Ongoing.
type LifecycleState string

const (
	StateUpcoming  LifecycleState = "Upcoming"
	StateOngoing   LifecycleState = "Ongoing"
	StateCompleted LifecycleState = "Completed"
	StateCancelled LifecycleState = "Cancelled"
)

// ParseLifecycleState validates a state string coming from a client.
func ParseLifecycleState(s string) (LifecycleState, error) {
	switch st := LifecycleState(s); st {
	case StateUpcoming, StateOngoing, StateCompleted, StateCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown lifecycle state %q", s)
}

// Offering is a course, event or opportunity. Only courses and events have
// capacity semantics (see KindSpec.Enrollable).
//
// Capacity is a pointer because nil has a meaning of its own: unlimited seats.
// A zero capacity is a legitimate (if odd) "no seats at all" offering.
type Offering struct {
	ID          string         `json:"id"`
	Kind        Kind           `json:"kind"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	State       LifecycleState `json:"status"`
	Capacity    *int           `json:"capacity"`
	SeatsTaken  int            `json:"seatsTaken"`
	XPReward    int            `json:"xpReward"`
	LikesCount  int            `json:"likes"`
	StartsAt    *time.Time     `json:"startsAt,omitempty"`
	EndsAt      *time.Time     `json:"endsAt,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Seats returns the occupancy snapshot of the offering as stored.
func (o *Offering) Seats() Seats {
	return NewSeats(o.SeatsTaken, o.Capacity)
}

// Seats is the seat-count snapshot returned to clients after enroll/cancel.
//
// SeatsAvailable is nil (and Unlimited true) when the offering has no
// capacity limit.
type Seats struct {
	SeatsTaken     int  `json:"seatsTaken"`
	Capacity       *int `json:"capacity"`
	SeatsAvailable *int `json:"seatsAvailable"`
	Unlimited      bool `json:"unlimited"`
}

// NewSeats derives seatsAvailable = capacity - seatsTaken, floored at 0.
func NewSeats(taken int, capacity *int) Seats {
	s := Seats{SeatsTaken: taken}
	if capacity == nil {
		s.Unlimited = true
		return s
	}
	c := *capacity
	avail := c - taken
	if avail < 0 {
		avail = 0
	}
	s.Capacity = &c
	s.SeatsAvailable = &avail
	return s
}
