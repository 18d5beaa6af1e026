package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/youthhub/internal/service"
)

type DashboardHandler struct {
	dashboard *service.DashboardService
	logger    *slog.Logger
}

func NewDashboardHandler(dashboard *service.DashboardService, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, logger: logger}
}

// HandleSummary serves GET /api/dashboard/summary (administrador)
func (h *DashboardHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.dashboard.Summary(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, sum)
}
