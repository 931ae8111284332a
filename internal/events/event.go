package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type names a committed lifecycle transition.
type Type string

const (
	OfferCreated  Type = "offer.created"
	OfferAccepted Type = "offer.accepted"
	OfferRejected Type = "offer.rejected"
	OrderPlaced   Type = "order.placed"
	OrderAdvanced Type = "order.advanced"
)

// Event is the envelope published after a transition commits. Consumers key on ID for idempotency.
type Event struct {
	ID          uuid.UUID       `json:"id"`
	Type        Type            `json:"type"`
	AggregateID uuid.UUID       `json:"aggregate_id"`
	ActorID     uuid.UUID       `json:"actor_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Data        json.RawMessage `json:"data"`
}

// New builds an event, encoding data as the payload.
func New(eventType Type, aggregateID, actorID uuid.UUID, data any) (Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:          uuid.New(),
		Type:        eventType,
		AggregateID: aggregateID,
		ActorID:     actorID,
		OccurredAt:  time.Now().UTC(),
		Data:        payload,
	}, nil
}

// Decode parses an event envelope.
func Decode(raw []byte) (Event, error) {
	var evt Event
	err := json.Unmarshal(raw, &evt)
	return evt, err
}

// TransactionData is the payload of offer and order events.
type TransactionData struct {
	ListingID  uuid.UUID `json:"listing_id"`
	BuyerID    uuid.UUID `json:"buyer_id"`
	SellerIDs  []string  `json:"seller_ids"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	Quantity   int       `json:"quantity"`
	TotalValue float64   `json:"total_value"`
}
