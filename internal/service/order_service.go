package service

import (
	"context"
	"time"

	"fishmarket/internal/apperror"
	"fishmarket/internal/domain"
	"fishmarket/internal/events"
	"fishmarket/internal/metrics"
	"fishmarket/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderService runs checkout and the forward-only order status sequence
type OrderService interface {
	Place(ctx context.Context, actor domain.Actor, in domain.PlaceOrderInput) (*domain.Order, error)
	Advance(ctx context.Context, actor domain.Actor, orderID uuid.UUID, next domain.OrderStatus) (*domain.Order, error)
	Get(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (*domain.Order, error)
	ListForBuyer(ctx context.Context, actor domain.Actor) ([]*domain.Order, error)
	ListForSeller(ctx context.Context, actor domain.Actor) ([]*domain.Order, error)
}

type orderService struct {
	orders   repository.OrderRepository
	listings repository.ListingRepository
	metrics  *metrics.Lifecycle
	events   *events.Emitter
	logger   *zap.Logger
	now      func() time.Time
}

func NewOrderService(
	orders repository.OrderRepository,
	listings repository.ListingRepository,
	m *metrics.Lifecycle,
	emitter *events.Emitter,
	logger *zap.Logger,
) OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &orderService{
		orders:   orders,
		listings: listings,
		metrics:  m,
		events:   emitter,
		logger:   logger,
		now:      time.Now,
	}
}

// Place checks out every line in one transaction. Listings are read first so that obvious
// failures are reported precisely; the repository re-checks stock under the row lock.
func (s *orderService) Place(ctx context.Context, actor domain.Actor, in domain.PlaceOrderInput) (*domain.Order, error) {
	if actor.Role != domain.RoleBuyer {
		return nil, apperror.New(apperror.CodeUnauthorized, "only buyers can place orders")
	}
	in.BuyerID = actor.UserID
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	order := &domain.Order{
		ID:              uuid.New(),
		BuyerID:         actor.UserID,
		Status:          domain.OrderStatusPending,
		DeliveryAddress: in.DeliveryAddress,
		PaymentMethod:   in.PaymentMethod,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for _, line := range in.Lines {
		listing, err := s.listings.FindByID(ctx, line.ListingID)
		if err != nil {
			return nil, translate(err, "failed to load listing")
		}
		if listing.SellerID == actor.UserID {
			return nil, apperror.New(apperror.CodeValidation, "cannot order your own listing").
				WithDetails(map[string]any{"listing_id": listing.ID})
		}
		if !listing.IsOpen() || listing.Quantity < line.Quantity {
			return nil, apperror.New(apperror.CodeInvalidState, "listing does not have enough quantity left").
				WithDetails(map[string]any{"listing_id": listing.ID, "requested": line.Quantity, "available": listing.Quantity})
		}
		order.Items = append(order.Items, domain.OrderItem{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ListingID: listing.ID,
			SellerID:  listing.SellerID,
			Quantity:  line.Quantity,
			UnitPrice: listing.UnitPrice,
		})
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, translate(err, "failed to place order")
	}

	s.metrics.OrderTransition("", string(domain.OrderStatusPending))
	s.events.Emit(ctx, events.OrderPlaced, order.ID, actor.UserID, orderEventData(order, ""))
	s.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.Int("items", len(order.Items)),
		zap.Float64("total", order.Total()),
	)
	return order, nil
}

// Advance moves an order to the immediate successor of its current status
func (s *orderService) Advance(ctx context.Context, actor domain.Actor, orderID uuid.UUID, next domain.OrderStatus) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, translate(err, "failed to load order")
	}
	if !order.CanAdvance(actor) {
		return nil, apperror.New(apperror.CodeUnauthorized, "only an admin or a seller on this order can update it")
	}
	if err := domain.ValidateOrderAdvance(order.Status, next); err != nil {
		return nil, err
	}

	from := order.Status
	updated, err := s.orders.Advance(ctx, orderID, from, next)
	if err != nil {
		return nil, translate(err, "failed to advance order")
	}

	s.metrics.OrderTransition(string(from), string(next))
	s.events.Emit(ctx, events.OrderAdvanced, updated.ID, actor.UserID, orderEventData(updated, from))
	s.logger.Info("Order advanced",
		zap.String("order_id", orderID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(next)),
	)
	return updated, nil
}

func (s *orderService) Get(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, translate(err, "failed to get order")
	}
	if !actor.IsAdmin() && order.BuyerID != actor.UserID && !order.HasSeller(actor.UserID) {
		return nil, apperror.New(apperror.CodeUnauthorized, "not a participant of this order")
	}
	return order, nil
}

func (s *orderService) ListForBuyer(ctx context.Context, actor domain.Actor) ([]*domain.Order, error) {
	if actor.Role != domain.RoleBuyer {
		return nil, apperror.New(apperror.CodeUnauthorized, "buyer role required")
	}
	orders, err := s.orders.ListByBuyer(ctx, actor.UserID)
	if err != nil {
		return nil, translate(err, "failed to list orders")
	}
	return orders, nil
}

func (s *orderService) ListForSeller(ctx context.Context, actor domain.Actor) ([]*domain.Order, error) {
	if actor.Role != domain.RoleSeller {
		return nil, apperror.New(apperror.CodeUnauthorized, "seller role required")
	}
	orders, err := s.orders.ListBySeller(ctx, actor.UserID)
	if err != nil {
		return nil, translate(err, "failed to list orders")
	}
	return orders, nil
}

func orderEventData(order *domain.Order, from domain.OrderStatus) events.TransactionData {
	data := events.TransactionData{
		BuyerID:    order.BuyerID,
		FromStatus: string(from),
		ToStatus:   string(order.Status),
		TotalValue: order.Total(),
	}
	seen := make(map[uuid.UUID]bool, len(order.Items))
	for _, item := range order.Items {
		data.Quantity += item.Quantity
		if !seen[item.SellerID] {
			seen[item.SellerID] = true
			data.SellerIDs = append(data.SellerIDs, item.SellerID.String())
		}
	}
	if len(order.Items) == 1 {
		data.ListingID = order.Items[0].ListingID
	}
	return data
}
