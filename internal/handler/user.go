package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/youthhub/internal/apperror"
	"github.com/sakif/youthhub/internal/service"
)

// Leaderboard sizes.
const (
	podiumSize       = 3
	defaultRankLimit = 10
)

// UserHandler serves the per-user routes under /api/users: reminders,
// likes, the ranking and account activation.
type UserHandler struct {
	toggles  *service.ToggleService
	ranking  *service.RankingService
	accounts *service.AuthService
	logger   *slog.Logger
}

func NewUserHandler(toggles *service.ToggleService, ranking *service.RankingService, accounts *service.AuthService, logger *slog.Logger) *UserHandler {
	return &UserHandler{toggles: toggles, ranking: ranking, accounts: accounts, logger: logger}
}

type reminderRequest struct {
	RemindAt *time.Time `json:"remindAt"`
}

// HandleToggleReminder serves POST /api/users/{kind}/{id}/lembrar
//
// Body is optional: {"remindAt":"2026-05-01T09:00:00Z"}.
func (h *UserHandler) HandleToggleReminder(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	kind, err := kindParam(r, "kind")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req reminderRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.toggles.ToggleReminder(r.Context(), userID, kind, chi.URLParam(r, "id"), req.RemindAt)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleListReminders serves GET /api/users/{kind}/lembrados
func (h *UserHandler) HandleListReminders(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	kind, err := kindParam(r, "kind")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	views, err := h.toggles.ListReminders(r.Context(), userID, kind)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(views))
}

// HandleToggleLike serves POST /api/users/like/{tipo}/{id}
func (h *UserHandler) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	kind, err := kindParam(r, "tipo")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	res, err := h.toggles.ToggleLike(r.Context(), userID, kind, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleTop3 serves GET /api/users/ranking/top3
func (h *UserHandler) HandleTop3(w http.ResponseWriter, r *http.Request) {
	h.writeTop(w, r, podiumSize)
}

// HandleRanking serves GET /api/users/ranking?limit=N
func (h *UserHandler) HandleRanking(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", defaultRankLimit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.writeTop(w, r, limit)
}

func (h *UserHandler) writeTop(w http.ResponseWriter, r *http.Request, n int) {
	top, err := h.ranking.TopN(r.Context(), n)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(top))
}

// HandleMyPosition serves GET /api/users/ranking/me
func (h *UserHandler) HandleMyPosition(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	pos, err := h.ranking.MyPosition(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, pos)
}

type activeRequest struct {
	Active *bool `json:"active"`
}

// HandleSetActive serves PUT /api/users/{id}/active (administrador)
//
// The flag must be a JSON boolean; "true" as a string is rejected.
func (h *UserHandler) HandleSetActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Active == nil {
		writeError(w, h.logger, apperror.ValidationFailed("active", "active is required"))
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.accounts.SetActive(r.Context(), id, *req.Active); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"id": id, "active": *req.Active})
}
