package transport

import (
	"net/http"

	"fishmarket/internal/domain"
	"fishmarket/internal/middleware"
	"fishmarket/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type DashboardHandler struct {
	stats  service.StatsService
	logger *zap.Logger
}

func NewDashboardHandler(stats service.StatsService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{stats: stats, logger: logger}
}

func (h *DashboardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/dashboard", h.Dashboard)
}

func (h *DashboardHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/stats", h.Dashboard)
}

// Dashboard always answers 200; a failed fetch shows up as defaults plus a notice.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, roundDashboard(h.stats.Dashboard(r.Context(), actor)))
}

func roundDashboard(d *domain.Dashboard) *domain.Dashboard {
	switch {
	case d.Seller != nil:
		d.Seller.TotalEarnings = round2(d.Seller.TotalEarnings)
		d.Seller.OrderRevenue = round2(d.Seller.OrderRevenue)
	case d.Buyer != nil:
		d.Buyer.TotalSpent = round2(d.Buyer.TotalSpent)
		d.Buyer.OrderSpend = round2(d.Buyer.OrderSpend)
	case d.Admin != nil:
		d.Admin.TransactionValue = round2(d.Admin.TransactionValue)
	}
	return d
}
