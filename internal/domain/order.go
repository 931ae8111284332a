package domain

import (
	"fmt"
	"strings"
	"time"

	"fishmarket/internal/apperror"

	"github.com/google/uuid"
)

// OrderStatus follows a fixed forward-only sequence ending in delivered.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
)

// orderSequence is ordered; index is the stage.
var orderSequence = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
}

func (s OrderStatus) String() string {
	return string(s)
}

func (s OrderStatus) stage() int {
	for i, candidate := range orderSequence {
		if candidate == s {
			return i
		}
	}
	return -1
}

func (s OrderStatus) IsValid() bool {
	return s.stage() >= 0
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered
}

// Next returns the immediate successor, false for delivered or unknown values.
func (s OrderStatus) Next() (OrderStatus, bool) {
	i := s.stage()
	if i < 0 || i == len(orderSequence)-1 {
		return "", false
	}
	return orderSequence[i+1], true
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range orderSequence {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

// ValidateOrderAdvance accepts only the immediate successor of current.
func ValidateOrderAdvance(current, next OrderStatus) error {
	if !next.IsValid() {
		return apperror.New(apperror.CodeValidation, "unknown order status").
			WithDetails(map[string]any{"status": next})
	}
	expected, ok := current.Next()
	if !ok {
		return apperror.New(apperror.CodeInvalidTransition, "order is already in a terminal status").
			WithDetails(map[string]any{"from": current, "to": next})
	}
	if next != expected {
		return apperror.New(apperror.CodeInvalidTransition, "order status must advance one step at a time").
			WithDetails(map[string]any{"from": current, "to": next, "expected": expected})
	}
	return nil
}

// PaymentMethod is how the buyer pays for an order.
type PaymentMethod string

const (
	PaymentMethodCOD  PaymentMethod = "cod"
	PaymentMethodCard PaymentMethod = "card"
)

func (p PaymentMethod) IsValid() bool {
	return p == PaymentMethodCOD || p == PaymentMethodCard
}

// Order is a checkout of one or more listings by a buyer.
type Order struct {
	ID              uuid.UUID     `json:"id" db:"id"`
	BuyerID         uuid.UUID     `json:"buyer_id" db:"buyer_id"`
	Status          OrderStatus   `json:"status" db:"order_status"`
	DeliveryAddress string        `json:"delivery_address" db:"delivery_address"`
	PaymentMethod   PaymentMethod `json:"payment_method" db:"payment_method"`
	Items           []OrderItem   `json:"items"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// OrderItem snapshots the price of a listing at checkout time.
type OrderItem struct {
	ID        uuid.UUID `json:"id" db:"id"`
	OrderID   uuid.UUID `json:"order_id" db:"order_id"`
	ListingID uuid.UUID `json:"listing_id" db:"listing_id"`
	SellerID  uuid.UUID `json:"seller_id" db:"seller_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	UnitPrice float64   `json:"unit_price" db:"price"`
}

func (i OrderItem) Subtotal() float64 {
	return float64(i.Quantity) * i.UnitPrice
}

// Total is the sum of item subtotals.
func (o *Order) Total() float64 {
	var total float64
	for _, item := range o.Items {
		total += item.Subtotal()
	}
	return total
}

// HasSeller reports whether sellerID owns at least one item of the order.
func (o *Order) HasSeller(sellerID uuid.UUID) bool {
	for _, item := range o.Items {
		if item.SellerID == sellerID {
			return true
		}
	}
	return false
}

// SellerTotal sums the items belonging to sellerID.
func (o *Order) SellerTotal(sellerID uuid.UUID) float64 {
	var total float64
	for _, item := range o.Items {
		if item.SellerID == sellerID {
			total += item.Subtotal()
		}
	}
	return total
}

// CanAdvance reports whether actor may move the order along its sequence.
func (o *Order) CanAdvance(actor Actor) bool {
	if actor.IsAdmin() {
		return true
	}
	return actor.Role == RoleSeller && o.HasSeller(actor.UserID)
}

// OrderLine is one requested line of a checkout.
type OrderLine struct {
	ListingID uuid.UUID
	Quantity  int
}

// PlaceOrderInput carries a checkout request.
type PlaceOrderInput struct {
	BuyerID         uuid.UUID
	Lines           []OrderLine
	DeliveryAddress string
	PaymentMethod   PaymentMethod
}

// Validate checks the request shape and merges duplicate listing lines.
func (in *PlaceOrderInput) Validate() error {
	if in.BuyerID == uuid.Nil {
		return apperror.New(apperror.CodeUnauthenticated, "buyer identity missing")
	}
	in.DeliveryAddress = strings.TrimSpace(in.DeliveryAddress)
	if in.DeliveryAddress == "" {
		return apperror.New(apperror.CodeValidation, "delivery address required")
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = PaymentMethodCOD
	}
	if !in.PaymentMethod.IsValid() {
		return apperror.New(apperror.CodeValidation, "payment method must be cod or card")
	}
	if len(in.Lines) == 0 {
		return apperror.New(apperror.CodeValidation, "order must have at least one item")
	}

	merged := make([]OrderLine, 0, len(in.Lines))
	index := make(map[uuid.UUID]int, len(in.Lines))
	for _, line := range in.Lines {
		if line.ListingID == uuid.Nil {
			return apperror.New(apperror.CodeValidation, "listing id required")
		}
		if line.Quantity <= 0 {
			return apperror.New(apperror.CodeValidation, "quantity must be greater than zero").
				WithDetails(map[string]any{"listing_id": line.ListingID, "quantity": line.Quantity})
		}
		if i, ok := index[line.ListingID]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.ListingID] = len(merged)
		merged = append(merged, line)
	}
	in.Lines = merged
	return nil
}
