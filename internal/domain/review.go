package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Review is a buyer's rating of a listing bought through a delivered order.
type Review struct {
	ID        uuid.UUID `json:"id" db:"id"`
	OrderID   uuid.UUID `json:"order_id" db:"order_id"`
	ListingID uuid.UUID `json:"listing_id" db:"listing_id"`
	BuyerID   uuid.UUID `json:"buyer_id" db:"buyer_id"`
	SellerID  uuid.UUID `json:"seller_id" db:"seller_id"`
	Rating    int       `json:"rating" db:"rating"`
	Comment   string    `json:"comment,omitempty" db:"comment"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// AverageRating returns the mean rating, 0 for no reviews.
func AverageRating(reviews []*Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return float64(sum) / float64(len(reviews))
}
