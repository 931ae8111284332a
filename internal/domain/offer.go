package domain

import (
	"fmt"
	"strings"
	"time"

	"fishmarket/internal/apperror"

	"github.com/google/uuid"
)

// OfferStatus tracks a price offer. pending is the only non-terminal state.
type OfferStatus string

const (
	OfferStatusPending  OfferStatus = "pending"
	OfferStatusAccepted OfferStatus = "accepted"
	OfferStatusRejected OfferStatus = "rejected"
)

var validOfferStatuses = []OfferStatus{OfferStatusPending, OfferStatusAccepted, OfferStatusRejected}

func (s OfferStatus) String() string {
	return string(s)
}

func (s OfferStatus) IsValid() bool {
	for _, candidate := range validOfferStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func (s OfferStatus) IsTerminal() bool {
	return s == OfferStatusAccepted || s == OfferStatusRejected
}

// ParseOfferStatus converts raw input into an OfferStatus.
func ParseOfferStatus(value string) (OfferStatus, error) {
	for _, candidate := range validOfferStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid offer status %q", value)
}

// OfferDecision is the seller's answer to a pending offer.
type OfferDecision string

const (
	OfferDecisionAccept OfferDecision = "accept"
	OfferDecisionReject OfferDecision = "reject"
)

// TargetStatus maps a decision to the status it produces.
func (d OfferDecision) TargetStatus() (OfferStatus, error) {
	switch d {
	case OfferDecisionAccept:
		return OfferStatusAccepted, nil
	case OfferDecisionReject:
		return OfferStatusRejected, nil
	default:
		return "", apperror.New(apperror.CodeValidation, "decision must be accept or reject")
	}
}

// Offer is a buyer's proposal to purchase a quantity of a listing at a price.
// The total value is always derived, never stored.
type Offer struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	ListingID uuid.UUID   `json:"listing_id" db:"listing_id"`
	BuyerID   uuid.UUID   `json:"buyer_id" db:"buyer_id"`
	SellerID  uuid.UUID   `json:"seller_id" db:"seller_id"`
	Quantity  int         `json:"quantity" db:"quantity"`
	UnitPrice float64     `json:"unit_price" db:"offered_price"`
	Message   string      `json:"message,omitempty" db:"message"`
	Status    OfferStatus `json:"status" db:"status"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

// TotalValue is quantity × unit price.
func (o *Offer) TotalValue() float64 {
	return float64(o.Quantity) * o.UnitPrice
}

// OfferInput carries a buyer's offer request.
type OfferInput struct {
	ListingID uuid.UUID
	BuyerID   uuid.UUID
	Quantity  int
	UnitPrice float64
	Message   string
}

// Validate checks the input independent of the listing it targets.
func (in OfferInput) Validate() error {
	if in.ListingID == uuid.Nil {
		return apperror.New(apperror.CodeValidation, "listing id required")
	}
	if in.BuyerID == uuid.Nil {
		return apperror.New(apperror.CodeUnauthenticated, "buyer identity missing")
	}
	if in.Quantity <= 0 {
		return apperror.New(apperror.CodeValidation, "quantity must be greater than zero").
			WithDetails(map[string]any{"field": "quantity", "value": in.Quantity})
	}
	if in.UnitPrice <= 0 {
		return apperror.New(apperror.CodeValidation, "unit price must be greater than zero").
			WithDetails(map[string]any{"field": "unit_price", "value": in.UnitPrice})
	}
	return nil
}

// NewOffer builds a pending offer against listing. It does not touch the listing quantity.
func NewOffer(in OfferInput, listing *Listing, now time.Time) (*Offer, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if listing == nil || listing.ID != in.ListingID {
		return nil, apperror.New(apperror.CodeNotFound, "listing not found")
	}
	if listing.SellerID == in.BuyerID {
		return nil, apperror.New(apperror.CodeValidation, "cannot make an offer on your own listing")
	}
	if !listing.IsOpen() {
		return nil, apperror.New(apperror.CodeInvalidState, "listing is not available")
	}
	if in.Quantity > listing.Quantity {
		return nil, apperror.New(apperror.CodeValidation, "quantity exceeds quantity available").
			WithDetails(map[string]any{"requested": in.Quantity, "available": listing.Quantity})
	}
	return &Offer{
		ID:        uuid.New(),
		ListingID: listing.ID,
		BuyerID:   in.BuyerID,
		SellerID:  listing.SellerID,
		Quantity:  in.Quantity,
		UnitPrice: in.UnitPrice,
		Message:   strings.TrimSpace(in.Message),
		Status:    OfferStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Respond validates a seller decision against the offer and returns the target status.
// A terminal offer reports INVALID_STATE to every actor; ownership is checked only on pending offers.
func (o *Offer) Respond(actorID uuid.UUID, decision OfferDecision) (OfferStatus, error) {
	target, err := decision.TargetStatus()
	if err != nil {
		return "", err
	}
	if o.Status != OfferStatusPending {
		return "", apperror.New(apperror.CodeInvalidState, "offer is no longer pending").
			WithDetails(map[string]any{"status": o.Status})
	}
	if actorID == uuid.Nil || actorID != o.SellerID {
		return "", apperror.New(apperror.CodeUnauthorized, "only the listing seller can respond to this offer")
	}
	return target, nil
}

// OfferFilter narrows offer queries. Nil and empty fields match everything.
type OfferFilter struct {
	BuyerID  *uuid.UUID
	SellerID *uuid.UUID
	Status   OfferStatus
}
