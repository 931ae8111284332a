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

type OrderLineRequest struct {
	ListingID string `json:"listing_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type PlaceOrderRequest struct {
	Items           []OrderLineRequest `json:"items" validate:"required,min=1,dive"`
	DeliveryAddress string             `json:"delivery_address" validate:"required,max=500"`
	PaymentMethod   string             `json:"payment_method,omitempty" validate:"omitempty,oneof=cod card"`
}

type AdvanceOrderRequest struct {
	Status string `json:"status" validate:"required"`
}

// OrderResponse adds the derived order total, rendered to two decimals.
type OrderResponse struct {
	*domain.Order
	Total string `json:"total"`
}

func orderResponse(order *domain.Order) OrderResponse {
	return OrderResponse{Order: order, Total: amount(order.Total())}
}

func orderResponses(orders []*domain.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderResponse(o))
	}
	return out
}

type OrderHandler struct {
	orders service.OrderService
	logger *zap.Logger
}

func NewOrderHandler(orders service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/orders", func(r chi.Router) {
		r.With(middleware.RequireRole(h.logger, domain.RoleBuyer)).Post("/", h.Place)
		r.With(middleware.RequireRole(h.logger, domain.RoleBuyer)).Get("/mine", h.ListMine)
		r.With(middleware.RequireRole(h.logger, domain.RoleSeller)).Get("/selling", h.ListSelling)
		r.Get("/{id}", h.Get)
		r.With(middleware.RequireRole(h.logger, domain.RoleSeller, domain.RoleAdmin)).Post("/{id}/status", h.Advance)
	})
}

func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req PlaceOrderRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	lines := make([]domain.OrderLine, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, domain.OrderLine{
			ListingID: uuid.MustParse(item.ListingID),
			Quantity:  item.Quantity,
		})
	}

	order, err := h.orders.Place(r.Context(), actor, domain.PlaceOrderInput{
		Lines:           lines,
		DeliveryAddress: req.DeliveryAddress,
		PaymentMethod:   domain.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, orderResponse(order))
}

// Advance moves an order to the next status in its sequence
func (h *OrderHandler) Advance(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req AdvanceOrderRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	order, err := h.orders.Advance(r.Context(), actor, id, domain.OrderStatus(req.Status))
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, orderResponse(order))
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	order, err := h.orders.Get(r.Context(), actor, id)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, orderResponse(order))
}

func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	orders, err := h.orders.ListForBuyer(r.Context(), actor)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, map[string]any{"orders": orderResponses(orders)})
}

func (h *OrderHandler) ListSelling(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	orders, err := h.orders.ListForSeller(r.Context(), actor)
	if err != nil {
		middleware.RespondWithAppError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, map[string]any{"orders": orderResponses(orders)})
}
