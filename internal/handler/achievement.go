package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/youthhub/internal/model"
	"github.com/sakif/youthhub/internal/service"
)

type AchievementHandler struct {
	achievements *service.AchievementService
	logger       *slog.Logger
}

func NewAchievementHandler(achievements *service.AchievementService, logger *slog.Logger) *AchievementHandler {
	return &AchievementHandler{achievements: achievements, logger: logger}
}

// HandleList serves GET /api/achievements
func (h *AchievementHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.achievements.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(list))
}

type createAchievementRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Points      int    `json:"points"`
	Criteria    string `json:"criteria"`
	IconURL     string `json:"iconUrl"`
	Hidden      bool   `json:"hidden"`
}

// HandleCreate serves POST /api/achievements (administrador)
func (h *AchievementHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createAchievementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	a := &model.Achievement{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Points:      req.Points,
		Criteria:    req.Criteria,
		IconURL:     req.IconURL,
		Hidden:      req.Hidden,
	}
	if err := h.achievements.Create(r.Context(), a); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusCreated, a)
}

// HandleUnlock serves POST /api/achievements/{id}/unlock/{userId} (administrador)
func (h *AchievementHandler) HandleUnlock(w http.ResponseWriter, r *http.Request) {
	res, err := h.achievements.Unlock(r.Context(), chi.URLParam(r, "userId"), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
