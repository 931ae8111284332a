package domain

import (
	"time"

	"github.com/google/uuid"
)

// ListingStatus tracks whether a listing can still be bought.
type ListingStatus string

const (
	ListingStatusAvailable   ListingStatus = "available"
	ListingStatusUnavailable ListingStatus = "unavailable"
)

func (s ListingStatus) IsValid() bool {
	return s == ListingStatusAvailable || s == ListingStatusUnavailable
}

// Listing is a sellable unit owned by a seller: a fish lot or a catalog product.
type Listing struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	SellerID    uuid.UUID     `json:"seller_id" db:"seller_id"`
	Category    string        `json:"category" db:"category"`
	Title       string        `json:"title" db:"title"`
	Description string        `json:"description" db:"description"`
	Quality     string        `json:"quality" db:"quality"`
	Location    string        `json:"location" db:"location"`
	Quantity    int           `json:"quantity" db:"quantity"`
	UnitPrice   float64       `json:"unit_price" db:"unit_price"`
	Status      ListingStatus `json:"status" db:"status"`
	Verified    bool          `json:"verified" db:"verified"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
}

// StatusForQuantity is the status a listing falls into for a given remaining quantity.
func StatusForQuantity(quantity int) ListingStatus {
	if quantity > 0 {
		return ListingStatusAvailable
	}
	return ListingStatusUnavailable
}

// IsOpen reports whether buyers can still make offers or orders against the listing.
func (l *Listing) IsOpen() bool {
	return l.Status == ListingStatusAvailable && l.Quantity > 0
}

// ListingFilter narrows listing queries. Zero values mean "any".
type ListingFilter struct {
	SellerID *uuid.UUID
	Category string
	Quality  string
	Status   ListingStatus
	Search   string
	Page     int
	PageSize int
}
