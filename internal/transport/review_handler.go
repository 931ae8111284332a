package transport

import (
	"net/http"

	"fishmarket/internal/domain"
	"fishmarket/internal/middleware"
	"fishmarket/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CreateReviewRequest struct {
	OrderID   string `json:"order_id" validate:"required,uuid"`
	ListingID string `json:"listing_id" validate:"required,uuid"`
	Rating    int    `json:"rating" validate:"required,min=1,max=5"`
	Comment   string `json:"comment,omitempty" validate:"max=2000"`
}

type ReviewHandler struct {
	reviews service.ReviewService
	logger  *zap.Logger
}

func NewReviewHandler(reviews service.ReviewService, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, logger: logger}
}

func (h *ReviewHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireRole(h.logger, domain.RoleBuyer)).Post("/api/reviews", h.Create)
	r.Get("/api/reviews/mine", h.ListMine)
	r.Get("/api/sellers/{id}/reviews", h.ListForSeller)
}

func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req CreateReviewRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	review, err := h.reviews.Create(r.Context(), actor, service.ReviewInput{
		OrderID:   uuid.MustParse(req.OrderID),
		ListingID: uuid.MustParse(req.ListingID),
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, review)
}

func (h *ReviewHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	reviews, err := h.reviews.ListMine(r.Context(), actor)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, map[string]any{"reviews": reviews})
}

func (h *ReviewHandler) ListForSeller(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.reviews.ListForSeller(r.Context(), sellerID)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	result.AverageRating = round2(result.AverageRating)
	middleware.RespondWithJSON(w, http.StatusOK, result)
}
