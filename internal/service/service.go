// Package service contains the business rules of the platform.
//
//	Handler (HTTP)  → parses requests, writes the typed JSON envelope
//	Service         → validates, enforces the gamification rules, orchestrates
//	Repository      → one atomic primitive per call (seat CAS, versioned save)
//
// Services never import net/http and never touch SQL or BSON. They return
// result values for expected outcomes (success, duplicate, a closed
// check-in window) and *apperror.AppError for failures; the handler turns
// both into the response discriminator.
//
// CONCURRENCY:
// Nothing here holds an in-process lock. Every exclusivity requirement is
// pushed into the store: seat reservation is a conditional update, user
// writes are versioned (see mutateUser), likes move set and counter
// together.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"

	"github.com/sakif/youthhub/internal/apperror"
	"github.com/sakif/youthhub/internal/model"
	"github.com/sakif/youthhub/internal/repository"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100

	// saveAttempts bounds how often a user write is reloaded and re-applied
	// after losing an optimistic-concurrency race.
	saveAttempts   = 3
	saveRetryDelay = 10 * time.Millisecond

	// releaseAttempts bounds compensating seat releases.
	releaseAttempts   = 3
	releaseRetryDelay = 50 * time.Millisecond
)

// Outcome is the result discriminator for operations whose non-failure
// outcomes differ (first time vs. repeat, window open vs. closed).
type Outcome string

const (
	OutcomeSuccess       Outcome = "success"
	OutcomeDuplicate     Outcome = "duplicate"
	OutcomeInvalidStatus Outcome = "invalid_status"
)

// errUnchanged is returned by a mutateUser callback when the user is
// already in the requested state and nothing needs saving.
var errUnchanged = errors.New("unchanged")

// mutateUser applies fn to user and saves it.
//
// If the save loses a version race (ErrConflict), the user is reloaded and
// fn is applied again to the fresh copy, up to saveAttempts times. fn must
// therefore be idempotent and decide from the user it is given, not from
// state captured earlier. It returns the saved user, or changed=false when
// fn reported errUnchanged. When every attempt loses the race the error no
// longer matches apperror.ErrConflict.
func mutateUser(ctx context.Context, users repository.UserRepository, user *model.User, fn func(*model.User) error) (saved *model.User, changed bool, err error) {
	current := user
	var lastErr error
	err = retry.Call(retry.CallArgs{
		Func: func() error {
			if current == nil {
				u, err := users.GetUserByID(ctx, user.ID)
				if err != nil {
					return err
				}
				current = u
			}
			if err := fn(current); err != nil {
				return err
			}
			if err := users.SaveUser(ctx, current); err != nil {
				if errors.Is(err, apperror.ErrConflict) {
					current = nil
				}
				return err
			}
			return nil
		},
		IsFatalError: func(err error) bool {
			return !errors.Is(err, apperror.ErrConflict)
		},
		NotifyFunc: func(err error, attempt int) {
			lastErr = err
		},
		Attempts: saveAttempts,
		Delay:    saveRetryDelay,
		Clock:    clock.WallClock,
	})
	if retry.IsAttemptsExceeded(err) {
		// %v, not %w: exhausted retries surface as a server error.
		return nil, false, fmt.Errorf("saving user %s after %d attempts: %v", user.ID, saveAttempts, lastErr)
	}
	if errors.Is(err, errUnchanged) {
		return current, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return current, true, nil
}

// clampLimit applies the list defaults.
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
