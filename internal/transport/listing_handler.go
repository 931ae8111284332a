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

// ListingRequest is the body of create and update. Quantity may be zero for a sold-out lot.
type ListingRequest struct {
	Category    string  `json:"category" validate:"required,max=100"`
	Title       string  `json:"title" validate:"required,max=200"`
	Description string  `json:"description" validate:"max=4000"`
	Quality     string  `json:"quality" validate:"max=100"`
	Location    string  `json:"location" validate:"max=200"`
	Quantity    int     `json:"quantity" validate:"gte=0"`
	UnitPrice   float64 `json:"unit_price" validate:"required,gt=0"`
}

func (req ListingRequest) input() service.ListingInput {
	return service.ListingInput{
		Category:    req.Category,
		Title:       req.Title,
		Description: req.Description,
		Quality:     req.Quality,
		Location:    req.Location,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
	}
}

// ListingPage is one page of listing results
type ListingPage struct {
	Listings []*domain.Listing `json:"listings"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

type ListingHandler struct {
	listings service.ListingService
	logger   *zap.Logger
}

func NewListingHandler(listings service.ListingService, logger *zap.Logger) *ListingHandler {
	return &ListingHandler{listings: listings, logger: logger}
}

// RegisterRoutes mounts the listing routes on an authenticated router. Writes need the seller role.
// nested registers routes that live below /api/listings, such as conversations.
func (h *ListingHandler) RegisterRoutes(r chi.Router, nested ...func(chi.Router)) {
	r.Route("/api/listings", func(r chi.Router) {
		for _, register := range nested {
			register(r)
		}
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(h.logger, domain.RoleSeller))
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Post("/{id}/withdraw", h.Withdraw)
		})

		r.With(middleware.RequireRole(h.logger, domain.RoleSeller, domain.RoleAdmin)).Delete("/{id}", h.Delete)
	})
}

// RegisterAdminRoutes mounts listing moderation under an admin-only router
func (h *ListingHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/listings/{id}/verify", h.Verify)
}

// List supports ?category, ?quality, ?status, ?search, ?seller_id, ?page and ?page_size
func (h *ListingHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ListingFilter{
		Category: q.Get("category"),
		Quality:  q.Get("quality"),
		Status:   domain.ListingStatus(q.Get("status")),
		Search:   q.Get("search"),
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "page_size", 20),
	}
	if raw := q.Get("seller_id"); raw != "" {
		sellerID, err := uuid.Parse(raw)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid seller_id")
			return
		}
		filter.SellerID = &sellerID
	}

	listings, total, err := h.listings.List(r.Context(), filter)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ListingPage{
		Listings: listings,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	})
}

func (h *ListingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	listing, err := h.listings.Get(r.Context(), id)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, listing)
}

func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req ListingRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	listing, err := h.listings.Create(r.Context(), actor, req.input())
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, listing)
}

func (h *ListingHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req ListingRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	listing, err := h.listings.Update(r.Context(), actor, id, req.input())
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, listing)
}

func (h *ListingHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	listing, err := h.listings.Withdraw(r.Context(), actor, id)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, listing)
}

func (h *ListingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.listings.Delete(r.Context(), actor, id); err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ListingHandler) Verify(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	listing, err := h.listings.Verify(r.Context(), actor, id)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, listing)
}
