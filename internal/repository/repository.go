// Package repository declares the storage contracts the services depend on.
// Two implementations live in the subpackages: sqlite (embedded, the default)
// and mongo (document store).
package repository

import (
	"context"

	"github.com/sakif/youthhub/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository is the identity store.
type UserRepository interface {
	// CreateUser assigns ID, timestamps and Version 1. A duplicate email or
	// provider id yields apperror.ErrConflict.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByProvider(ctx context.Context, provider, providerID string) (*model.User, error)

	// SaveUser writes xp, level, enrollments, reminders, check-ins and
	// achievements in one write, conditional on user.Version. On success the
	// version is bumped in place. A stale version yields apperror.ErrConflict.
	// Likes are not written here; see SetLike.
	SaveUser(ctx context.Context, user *model.User) error

	SetActive(ctx context.Context, id string, active bool) error

	// ListActiveUsers and TopActiveUsers return summary rows (no collections)
	// ordered by model.RankLess.
	ListActiveUsers(ctx context.Context) ([]model.User, error)
	TopActiveUsers(ctx context.Context, n int) ([]model.User, error)

	// SetLike makes the user's like-set membership for the target equal to
	// liked and moves the target's likes counter with it. It returns the
	// counter afterwards. Calling it with the current state changes nothing.
	SetLike(ctx context.Context, userID string, kind model.Kind, targetID string, liked bool) (int, error)
}

// OfferingRepository is the store for courses, events and opportunities.
type OfferingRepository interface {
	CreateOffering(ctx context.Context, o *model.Offering) error
	GetOffering(ctx context.Context, kind model.Kind, id string) (*model.Offering, error)
	ListOfferings(ctx context.Context, kind model.Kind, opts ListOptions) ([]model.Offering, error)
	ListOfferingsByIDs(ctx context.Context, kind model.Kind, ids []string) ([]model.Offering, error)
	SetLifecycleState(ctx context.Context, kind model.Kind, id string, state model.LifecycleState) (*model.Offering, error)

	// UpdateSeats moves seats_taken by delta (+1 or -1) in one conditional
	// write. +1 applies only while seats_taken < capacity or capacity is
	// unset; -1 never goes below zero. It returns the record after the write,
	// or the current record with applied=false when the condition failed.
	UpdateSeats(ctx context.Context, kind model.Kind, id string, delta int) (o *model.Offering, applied bool, err error)
}

// AchievementRepository stores the achievement catalogue.
type AchievementRepository interface {
	CreateAchievement(ctx context.Context, a *model.Achievement) error
	GetAchievement(ctx context.Context, id string) (*model.Achievement, error)
	ListAchievements(ctx context.Context) ([]model.Achievement, error)
}

// StatsRepository answers the aggregate queries behind the admin dashboard.
type StatsRepository interface {
	// CountUsers counts accounts with the given role, active or not.
	CountUsers(ctx context.Context, role model.Role) (int64, error)
	// AverageXP is the mean xp over accounts with the given role. ok is
	// false when there are none.
	AverageXP(ctx context.Context, role model.Role) (avg float64, ok bool, err error)
	CountOfferings(ctx context.Context, kind model.Kind) (int64, error)
	CountAchievements(ctx context.Context) (int64, error)
	// LatestOffering is the most recently created offering of any kind, or
	// nil when there are none.
	LatestOffering(ctx context.Context) (*model.Offering, error)
}

// Store bundles every repository behind one owned handle.
type Store interface {
	UserRepository
	OfferingRepository
	AchievementRepository
	StatsRepository
	Ping(ctx context.Context) error
	Close() error
}
