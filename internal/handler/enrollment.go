package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/youthhub/internal/apperror"
	"github.com/sakif/youthhub/internal/model"
	"github.com/sakif/youthhub/internal/service"
)

// EnrollmentHandler serves enrollment and check-in on courses and events.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
	checkins    *service.CheckInService
	logger      *slog.Logger
}

func NewEnrollmentHandler(enrollments *service.EnrollmentService, checkins *service.CheckInService, logger *slog.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, checkins: checkins, logger: logger}
}

// HandleEnroll serves POST /api/{kind}/{id}/enrollment
//
// 200 {"type":"success"|"duplicate","seatsTaken":..,"capacity":..,"seatsAvailable":..}
// 409 {"type":"full",...seat numbers}
func (h *EnrollmentHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	userID, kind, ok := h.target(w, r)
	if !ok {
		return
	}
	res, err := h.enrollments.Enroll(r.Context(), userID, kind, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleCancel serves DELETE /api/{kind}/{id}/enrollment
func (h *EnrollmentHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	userID, kind, ok := h.target(w, r)
	if !ok {
		return
	}
	res, err := h.enrollments.Cancel(r.Context(), userID, kind, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleListMine serves GET /api/{kind}/meus-{mine}
//
// The two segments must name the same kind: /api/cursos/meus-cursos.
func (h *EnrollmentHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	userID, kind, ok := h.target(w, r)
	if !ok {
		return
	}
	mine, err := kindParam(r, "mine")
	if err != nil || mine != kind {
		writeError(w, h.logger, apperror.ValidationFailed("kind", "path kinds do not match"))
		return
	}
	list, err := h.enrollments.ListMine(r.Context(), userID, kind)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(list))
}

// HandleCheckIn serves POST /api/{kind}/{id}/checkin
//
// A closed window answers 200 with {"type":"invalid_status"}: it is an
// outcome the client expects, not a failure.
func (h *EnrollmentHandler) HandleCheckIn(w http.ResponseWriter, r *http.Request) {
	userID, kind, ok := h.target(w, r)
	if !ok {
		return
	}
	res, err := h.checkins.CheckIn(r.Context(), userID, kind, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *EnrollmentHandler) target(w http.ResponseWriter, r *http.Request) (string, model.Kind, bool) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return "", "", false
	}
	kind, err := kindParam(r, "kind")
	if err != nil {
		writeError(w, h.logger, err)
		return "", "", false
	}
	return userID, kind, true
}
