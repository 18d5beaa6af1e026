package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/youthhub/internal/apperror"
	"github.com/sakif/youthhub/internal/model"
	"github.com/sakif/youthhub/internal/service"
)

// OfferingHandler is the content-management surface for courses, events
// and opportunities.
type OfferingHandler struct {
	offerings *service.OfferingService
	logger    *slog.Logger
}

func NewOfferingHandler(offerings *service.OfferingService, logger *slog.Logger) *OfferingHandler {
	return &OfferingHandler{offerings: offerings, logger: logger}
}

// HandleList serves GET /api/{kind}?limit=&offset=
func (h *OfferingHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r, "kind")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	offset, err := intQuery(r, "offset", 0)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	list, err := h.offerings.List(r.Context(), kind, limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(list))
}

// HandleGet serves GET /api/{kind}/{id}
func (h *OfferingHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r, "kind")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	o, err := h.offerings.Get(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, o)
}

type createOfferingRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Capacity    *int       `json:"capacity"`
	XPReward    int        `json:"xpReward"`
	StartsAt    *time.Time `json:"startsAt"`
	EndsAt      *time.Time `json:"endsAt"`
}

// HandleCreate serves POST /api/{kind} (administrador, editor)
func (h *OfferingHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r, "kind")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req createOfferingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	o := &model.Offering{
		Kind:        kind,
		Title:       req.Title,
		Description: req.Description,
		Capacity:    req.Capacity,
		XPReward:    req.XPReward,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	}
	if err := h.offerings.Create(r.Context(), o); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusCreated, o)
}

type setStatusRequest struct {
	Status string `json:"status"`
}

// HandleSetStatus serves PUT /api/{kind}/{id}/status (administrador, editor)
func (h *OfferingHandler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r, "kind")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req setStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	state, err := model.ParseLifecycleState(req.Status)
	if err != nil {
		writeError(w, h.logger, apperror.ValidationFailed("status", err.Error()))
		return
	}
	o, err := h.offerings.SetState(r.Context(), kind, chi.URLParam(r, "id"), state)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, o)
}
