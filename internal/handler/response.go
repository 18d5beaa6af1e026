// Package handler turns HTTP requests into service calls and service results
// into JSON.
//
// RESPONSE CONTRACT:
// Every body carries a "type" discriminator and the frontend branches on it,
// not on the status code alone:
//
//	{"type":"success", ...}                 operation applied
//	{"type":"duplicate", ...}               repeat of an applied operation, nothing changed
//	{"type":"invalid_status", ...}          check-in outside the Ongoing window (200)
//	{"type":"full","seatsTaken":2,...}      no seats left (409)
//	{"type":"not_found","message":"..."}    404
//
// Services return result structs that already carry Type; errors are mapped
// once, in writeError.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/youthhub/internal/apperror"
	"github.com/sakif/youthhub/internal/model"
)

// Discriminator values that only appear on error responses.
const (
	TypeValidation    = "validation_error"
	TypeNotFound      = "not_found"
	TypeInvalidStatus = "invalid_status"
	TypeFull          = "full"
	TypeNotSubscribed = "not_subscribed"
	TypeConflict      = "conflict"
	TypeUnauthorized  = "unauthorized"
	TypeForbidden     = "forbidden"
	TypeServerError   = "server_error"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// ErrorResponse is the error envelope. Error repeats Type for clients that
// read the older "error" field. Seats is set on "full" responses.
type ErrorResponse struct {
	Type    string `json:"type"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	*model.Seats
}

// successResponse wraps payloads that do not carry their own Type.
type successResponse struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// listResponse wraps list payloads.
type listResponse[T any] struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
	Items []T    `json:"items"`
}

func newList[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Type: "success", Count: len(items), Items: items}
}

// writeJSON sends a JSON response with the given status code.
//
// Headers and status must be set BEFORE the body: once Encode writes, the
// headers are gone.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, successResponse{Type: "success", Data: data})
}

// writeError maps a service error to a status code and discriminator.
//
// errors.Is walks the whole chain, so a service may wrap the *AppError with
// context ("service/enrollment: loading ...: %w") and the mapping still
// finds the sentinel. Errors that are not *AppError are logged with full
// detail and answered with a generic message.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		logger.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Type:    TypeServerError,
			Error:   TypeServerError,
			Message: "an internal error occurred",
		})
		return
	}

	status, typ := classify(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", slog.String("error", err.Error()))
	}
	writeJSON(w, status, ErrorResponse{
		Type:    typ,
		Error:   typ,
		Message: appErr.Message,
		Field:   appErr.Field,
		Seats:   appErr.Seats,
	})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, TypeValidation
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, TypeNotFound
	case errors.Is(err, apperror.ErrInvalidStatus):
		return http.StatusBadRequest, TypeInvalidStatus
	case errors.Is(err, apperror.ErrCapacityExceeded):
		return http.StatusConflict, TypeFull
	case errors.Is(err, apperror.ErrNotSubscribed):
		return http.StatusBadRequest, TypeNotSubscribed
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, TypeConflict
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, TypeUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, TypeForbidden
	}
	return http.StatusInternalServerError, TypeServerError
}

// decodeJSON reads a JSON body into dst. Unknown fields and wrongly typed
// values are rejected rather than coerced.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "invalid JSON body: "+err.Error())
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for routes whose body may be absent. An
// empty body leaves dst untouched, whether or not the client sent a
// Content-Length.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperror.ValidationFailed("body", "invalid JSON body: "+err.Error())
	}
	return nil
}
