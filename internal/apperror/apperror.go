// Package apperror defines the domain errors the services return and the
// handlers translate into HTTP responses.
//
// Services never import net/http. They return an *AppError that wraps one of
// the sentinels below, and the handler layer picks a status code with
// errors.Is. Keeping the mapping in one place means a new service never has to
// know what a 409 is.
package apperror

import (
	"errors"
	"fmt"

	"github.com/sakif/youthhub/internal/model"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("Validation Error")
	ErrConflict         = errors.New("conflict")
	ErrForbidden        = errors.New("forbidden")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrNotSubscribed    = errors.New("not subscribed")
)

type AppError struct {
	Err     error        // actual error
	Message string       // Human-readable error message
	Field   string       // Optional: field causing the error
	Seats   *model.Seats // Optional: seat snapshot, set on capacity errors
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized means no valid identity was presented. Maps to 401.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// InvalidStatus means the offering's lifecycle state does not allow the
// operation (e.g. enrolling in a course that already started).
func InvalidStatus(message string) *AppError {
	return &AppError{
		Err:     ErrInvalidStatus,
		Message: message,
	}
}

// CapacityExceeded carries the seat snapshot observed when the reservation
// was refused, so the client can render "0 of N seats left".
func CapacityExceeded(seats model.Seats) *AppError {
	return &AppError{
		Err:     ErrCapacityExceeded,
		Message: "no seats available",
		Seats:   &seats,
	}
}

// NotSubscribed is returned when cancelling an enrollment the user never had.
func NotSubscribed(kind model.Kind, id string) *AppError {
	return &AppError{
		Err:     ErrNotSubscribed,
		Message: fmt.Sprintf("not enrolled in %s %s", kind, id),
	}
}
