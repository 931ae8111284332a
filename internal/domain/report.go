package domain

import (
	"time"

	"github.com/google/uuid"
)

// PurchaseReport is a point-in-time snapshot of a buyer's purchases.
type PurchaseReport struct {
	ID        uuid.UUID          `json:"id" db:"id"`
	BuyerID   uuid.UUID          `json:"buyer_id" db:"buyer_id"`
	Data      PurchaseReportData `json:"report_data" db:"report_data"`
	CreatedAt time.Time          `json:"created_at" db:"created_at"`
}

// PurchaseReportData is stored as jsonb.
type PurchaseReportData struct {
	AcceptedOffers  int                  `json:"accepted_offers"`
	DeliveredOrders int                  `json:"delivered_orders"`
	TotalSpent      float64              `json:"total_spent"`
	Lines           []PurchaseReportLine `json:"lines"`
}

// PurchaseReportLine is one purchase inside a report.
type PurchaseReportLine struct {
	Source    string    `json:"source"`
	Reference uuid.UUID `json:"reference"`
	ListingID uuid.UUID `json:"listing_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
	Total     float64   `json:"total"`
	At        time.Time `json:"at"`
}

const (
	ReportSourceOffer = "offer"
	ReportSourceOrder = "order"
)

// BuildPurchaseReportData snapshots a buyer's accepted offers and delivered orders.
// Pending, rejected and undelivered rows are left out.
func BuildPurchaseReportData(offers []*Offer, orders []*Order) PurchaseReportData {
	data := PurchaseReportData{Lines: []PurchaseReportLine{}}
	for _, o := range offers {
		if o.Status != OfferStatusAccepted {
			continue
		}
		data.AcceptedOffers++
		data.TotalSpent += o.TotalValue()
		data.Lines = append(data.Lines, PurchaseReportLine{
			Source:    ReportSourceOffer,
			Reference: o.ID,
			ListingID: o.ListingID,
			Quantity:  o.Quantity,
			UnitPrice: o.UnitPrice,
			Total:     o.TotalValue(),
			At:        o.UpdatedAt,
		})
	}
	for _, o := range orders {
		if o.Status != OrderStatusDelivered {
			continue
		}
		data.DeliveredOrders++
		for _, item := range o.Items {
			data.TotalSpent += item.Subtotal()
			data.Lines = append(data.Lines, PurchaseReportLine{
				Source:    ReportSourceOrder,
				Reference: o.ID,
				ListingID: item.ListingID,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
				Total:     item.Subtotal(),
				At:        o.UpdatedAt,
			})
		}
	}
	return data
}
