package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/youthhub/internal/apperror"
	"github.com/sakif/youthhub/internal/auth"
	"github.com/sakif/youthhub/internal/model"
)

// kindParam resolves a URL segment ("cursos", "evento", "course"...) to a
// Kind. Anything else is a validation error.
func kindParam(r *http.Request, name string) (model.Kind, error) {
	raw := chi.URLParam(r, name)
	kind, err := model.ParseKind(raw)
	if err != nil {
		return "", apperror.ValidationFailed(name, err.Error())
	}
	return kind, nil
}

// callerID returns the authenticated user. Routes using it sit behind
// auth.RequireAuth, so a miss means the router is misconfigured.
func callerID(r *http.Request) (string, error) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return "", apperror.Unauthorized("valid authentication required")
	}
	return id, nil
}

// intQuery reads an optional integer query parameter.
func intQuery(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, name+" must be an integer")
	}
	return n, nil
}
