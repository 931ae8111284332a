// Package analytics copies the lifecycle event stream into a ClickHouse transaction ledger.
package analytics

import (
	"encoding/json"
	"fmt"
	"time"

	"fishmarket/internal/events"
)

// Row is one line of the marketplace_transactions table.
type Row struct {
	EventID     string
	EventType   string
	AggregateID string
	ActorID     string
	ListingID   string
	BuyerID     string
	SellerIDs   []string
	FromStatus  string
	ToStatus    string
	Quantity    uint32
	TotalValue  float64
	OccurredAt  time.Time
}

// RowFromEvent flattens an event envelope and its transaction payload.
func RowFromEvent(evt events.Event) (Row, error) {
	var data events.TransactionData
	if len(evt.Data) > 0 {
		if err := json.Unmarshal(evt.Data, &data); err != nil {
			return Row{}, fmt.Errorf("failed to decode %s payload: %w", evt.Type, err)
		}
	}
	if data.Quantity < 0 {
		return Row{}, fmt.Errorf("negative quantity %d in %s", data.Quantity, evt.ID)
	}

	sellers := data.SellerIDs
	if sellers == nil {
		sellers = []string{}
	}

	return Row{
		EventID:     evt.ID.String(),
		EventType:   string(evt.Type),
		AggregateID: evt.AggregateID.String(),
		ActorID:     evt.ActorID.String(),
		ListingID:   data.ListingID.String(),
		BuyerID:     data.BuyerID.String(),
		SellerIDs:   sellers,
		FromStatus:  data.FromStatus,
		ToStatus:    data.ToStatus,
		Quantity:    uint32(data.Quantity),
		TotalValue:  data.TotalValue,
		OccurredAt:  evt.OccurredAt.UTC(),
	}, nil
}
