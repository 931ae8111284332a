package domain

import "github.com/google/uuid"

// OfferPartition splits a set of offers by status. The three sets are disjoint.
type OfferPartition struct {
	Pending  []*Offer
	Accepted []*Offer
	Rejected []*Offer
}

// Total is the number of partitioned offers.
func (p OfferPartition) Total() int {
	return len(p.Pending) + len(p.Accepted) + len(p.Rejected)
}

// AcceptedValue sums quantity × unit price over accepted offers. No rounding happens here.
func (p OfferPartition) AcceptedValue() float64 {
	var total float64
	for _, o := range p.Accepted {
		total += o.TotalValue()
	}
	return total
}

// PartitionOffers groups offers by status. Offers with an unknown status are dropped.
func PartitionOffers(offers []*Offer) OfferPartition {
	var p OfferPartition
	for _, o := range offers {
		switch o.Status {
		case OfferStatusPending:
			p.Pending = append(p.Pending, o)
		case OfferStatusAccepted:
			p.Accepted = append(p.Accepted, o)
		case OfferStatusRejected:
			p.Rejected = append(p.Rejected, o)
		}
	}
	return p
}

// SellerStatistics is the seller dashboard summary.
type SellerStatistics struct {
	TotalListings  int     `json:"total_listings"`
	PendingOffers  int     `json:"pending_offers"`
	AcceptedOffers int     `json:"accepted_offers"`
	RejectedOffers int     `json:"rejected_offers"`
	TotalEarnings  float64 `json:"total_earnings"`
	OpenOrders     int     `json:"open_orders"`
	OrderRevenue   float64 `json:"order_revenue"`
}

// BuyerStatistics is the buyer dashboard summary.
type BuyerStatistics struct {
	TotalPurchases int     `json:"total_purchases"`
	ActiveOffers   int     `json:"active_offers"`
	RejectedOffers int     `json:"rejected_offers"`
	TotalOffers    int     `json:"total_offers"`
	TotalSpent     float64 `json:"total_spent"`
	OpenOrders     int     `json:"open_orders"`
	OrderSpend     float64 `json:"order_spend"`
}

// AdminStatistics is the marketplace-wide summary.
type AdminStatistics struct {
	UsersByRole      map[Role]int `json:"users_by_role"`
	TotalUsers       int          `json:"total_users"`
	TotalListings    int          `json:"total_listings"`
	PendingOffers    int          `json:"pending_offers"`
	AcceptedOffers   int          `json:"accepted_offers"`
	RejectedOffers   int          `json:"rejected_offers"`
	TransactionValue float64      `json:"transaction_value"`
	TotalOrders      int          `json:"total_orders"`
}

// Dashboard is the role-aware view; exactly one of Seller, Buyer, Admin is set.
// Notice is non-empty when the figures are defaults because a fetch failed.
type Dashboard struct {
	Role   Role              `json:"role"`
	Seller *SellerStatistics `json:"seller,omitempty"`
	Buyer  *BuyerStatistics  `json:"buyer,omitempty"`
	Admin  *AdminStatistics  `json:"admin,omitempty"`
	Notice string            `json:"notice,omitempty"`
}

// BuildSellerStatistics derives seller figures from the seller's rows.
func BuildSellerStatistics(sellerID uuid.UUID, listingCount int, offers []*Offer, orders []*Order) SellerStatistics {
	p := PartitionOffers(offers)
	stats := SellerStatistics{
		TotalListings:  listingCount,
		PendingOffers:  len(p.Pending),
		AcceptedOffers: len(p.Accepted),
		RejectedOffers: len(p.Rejected),
		TotalEarnings:  p.AcceptedValue(),
	}
	for _, o := range orders {
		if !o.Status.IsTerminal() {
			stats.OpenOrders++
		}
		stats.OrderRevenue += o.SellerTotal(sellerID)
	}
	return stats
}

// BuildBuyerStatistics derives buyer figures from the buyer's rows.
func BuildBuyerStatistics(offers []*Offer, orders []*Order) BuyerStatistics {
	p := PartitionOffers(offers)
	stats := BuyerStatistics{
		TotalPurchases: len(p.Accepted),
		ActiveOffers:   len(p.Pending),
		RejectedOffers: len(p.Rejected),
		TotalOffers:    p.Total(),
		TotalSpent:     p.AcceptedValue(),
	}
	for _, o := range orders {
		if !o.Status.IsTerminal() {
			stats.OpenOrders++
		}
		stats.OrderSpend += o.Total()
	}
	return stats
}

// BuildAdminStatistics derives marketplace figures.
func BuildAdminStatistics(usersByRole map[Role]int, listingCount, orderCount int, offers []*Offer) AdminStatistics {
	p := PartitionOffers(offers)
	stats := AdminStatistics{
		UsersByRole:      make(map[Role]int, len(validRoles)),
		TotalListings:    listingCount,
		PendingOffers:    len(p.Pending),
		AcceptedOffers:   len(p.Accepted),
		RejectedOffers:   len(p.Rejected),
		TransactionValue: p.AcceptedValue(),
		TotalOrders:      orderCount,
	}
	for _, role := range validRoles {
		stats.UsersByRole[role] = usersByRole[role]
		stats.TotalUsers += usersByRole[role]
	}
	return stats
}

// TransactionSummary is the admin view of completed offer trades.
type TransactionSummary struct {
	Transactions   []*Offer `json:"transactions"`
	AcceptedOffers int      `json:"accepted_offers"`
	PendingOffers  int      `json:"pending_offers"`
	TotalValue     float64  `json:"total_value"`
}

// SummarizeTransactions lists accepted offers with pending and accepted counts.
func SummarizeTransactions(offers []*Offer) TransactionSummary {
	p := PartitionOffers(offers)
	accepted := p.Accepted
	if accepted == nil {
		accepted = []*Offer{}
	}
	return TransactionSummary{
		Transactions:   accepted,
		AcceptedOffers: len(p.Accepted),
		PendingOffers:  len(p.Pending),
		TotalValue:     p.AcceptedValue(),
	}
}
