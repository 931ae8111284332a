package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is one line of a two-party conversation scoped to a listing. Messages are append-only.
type Message struct {
	ID         uuid.UUID `json:"id" db:"id"`
	ListingID  uuid.UUID `json:"listing_id" db:"listing_id"`
	SenderID   uuid.UUID `json:"sender_id" db:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id" db:"receiver_id"`
	Body       string    `json:"message" db:"message"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Involves reports whether userID is a party of the message.
func (m *Message) Involves(userID uuid.UUID) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}
