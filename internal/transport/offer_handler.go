package transport

import (
	"context"
	"net/http"

	"fishmarket/internal/domain"
	"fishmarket/internal/middleware"
	"fishmarket/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CreateOfferRequest struct {
	ListingID string  `json:"listing_id" validate:"required,uuid"`
	Quantity  int     `json:"quantity" validate:"required,gt=0"`
	UnitPrice float64 `json:"unit_price" validate:"required,gt=0"`
	Message   string  `json:"message,omitempty" validate:"max=1000"`
}

type RespondOfferRequest struct {
	Decision string `json:"decision" validate:"required,oneof=accept reject"`
}

// OfferResponse adds the derived total, rendered to two decimals.
type OfferResponse struct {
	*domain.Offer
	TotalValue string `json:"total_value"`
}

func offerResponse(offer *domain.Offer) OfferResponse {
	return OfferResponse{Offer: offer, TotalValue: amount(offer.TotalValue())}
}

func offerResponses(offers []*domain.Offer) []OfferResponse {
	out := make([]OfferResponse, 0, len(offers))
	for _, o := range offers {
		out = append(out, offerResponse(o))
	}
	return out
}

// TransactionsResponse is the admin view of accepted offers
type TransactionsResponse struct {
	Transactions   []OfferResponse `json:"transactions"`
	AcceptedOffers int             `json:"accepted_offers"`
	PendingOffers  int             `json:"pending_offers"`
	TotalValue     string          `json:"total_value"`
}

type OfferHandler struct {
	offers service.OfferService
	logger *zap.Logger
}

func NewOfferHandler(offers service.OfferService, logger *zap.Logger) *OfferHandler {
	return &OfferHandler{offers: offers, logger: logger}
}

func (h *OfferHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/offers", func(r chi.Router) {
		r.With(middleware.RequireRole(h.logger, domain.RoleBuyer)).Post("/", h.Create)
		r.With(middleware.RequireRole(h.logger, domain.RoleBuyer)).Get("/mine", h.ListMine)
		r.With(middleware.RequireRole(h.logger, domain.RoleSeller)).Get("/received", h.ListReceived)
		r.Get("/{id}", h.Get)
		// Ownership is checked after offer state, so no role guard here.
		r.Post("/{id}/respond", h.Respond)
	})
}

func (h *OfferHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/transactions", h.Transactions)
}

func (h *OfferHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req CreateOfferRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	offer, err := h.offers.Create(r.Context(), actor, domain.OfferInput{
		ListingID: uuid.MustParse(req.ListingID),
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
		Message:   req.Message,
	})
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, offerResponse(offer))
}

// Respond applies the seller's accept or reject decision to a pending offer
func (h *OfferHandler) Respond(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req RespondOfferRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	offer, err := h.offers.Respond(r.Context(), actor, id, domain.OfferDecision(req.Decision))
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, offerResponse(offer))
}

func (h *OfferHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	offer, err := h.offers.Get(r.Context(), actor, id)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, offerResponse(offer))
}

func (h *OfferHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.offers.ListForBuyer)
}

func (h *OfferHandler) ListReceived(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.offers.ListForSeller)
}

type offerLister func(ctx context.Context, actor domain.Actor, status domain.OfferStatus) ([]*domain.Offer, error)

// list serves both offer listings; ?status narrows the result.
func (h *OfferHandler) list(w http.ResponseWriter, r *http.Request, fetch offerLister) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var status domain.OfferStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := domain.ParseOfferStatus(raw)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		status = parsed
	}

	offers, err := fetch(r.Context(), actor, status)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, map[string]any{"offers": offerResponses(offers)})
}

func (h *OfferHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	summary, err := h.offers.ListTransactions(r.Context(), actor)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, TransactionsResponse{
		Transactions:   offerResponses(summary.Transactions),
		AcceptedOffers: summary.AcceptedOffers,
		PendingOffers:  summary.PendingOffers,
		TotalValue:     amount(summary.TotalValue),
	})
}
