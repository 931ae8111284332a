package transport

import (
	"net/http"

	"fishmarket/internal/domain"
	"fishmarket/internal/middleware"
	"fishmarket/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ReportHandler struct {
	reports service.ReportService
	logger  *zap.Logger
}

func NewReportHandler(reports service.ReportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, logger: logger}
}

func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/reports", func(r chi.Router) {
		r.Use(middleware.RequireRole(h.logger, domain.RoleBuyer))
		r.Post("/", h.Generate)
		r.Get("/mine", h.ListMine)
	})
}

func (h *ReportHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/reports", h.ListAll)
}

// Generate snapshots the caller's purchases into a stored report
func (h *ReportHandler) Generate(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	report, err := h.reports.Generate(r.Context(), actor)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	report.Data.TotalSpent = round2(report.Data.TotalSpent)
	middleware.RespondWithJSON(w, http.StatusCreated, report)
}

func (h *ReportHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	reports, err := h.reports.ListMine(r.Context(), actor)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (h *ReportHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	reports, err := h.reports.ListAll(r.Context(), actor)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, map[string]any{"reports": reports})
}
