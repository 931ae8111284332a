package repository

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"fishmarket/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderStatusConflict = errors.New("order status changed concurrently")
)

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	// Create checks out every item in one transaction: listing quantities are decremented and
	// item seller and price are snapshotted from the locked listing rows.
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.Order, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Order, error)
	Count(ctx context.Context) (int, error)
	// Advance moves an order from one status to the next only if it still holds from.
	Advance(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) (*domain.Order, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `o.id, o.buyer_id, o.order_status, o.delivery_address, o.payment_method, o.created_at, o.updated_at`

func scanOrder(row rowScanner) (*domain.Order, error) {
	order := &domain.Order{}
	err := row.Scan(
		&order.ID,
		&order.BuyerID,
		&order.Status,
		&order.DeliveryAddress,
		&order.PaymentMethod,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	return order, err
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Lock listing rows in a fixed order so crossed checkouts cannot deadlock.
	slices.SortFunc(order.Items, func(a, b domain.OrderItem) int {
		return bytes.Compare(a.ListingID[:], b.ListingID[:])
	})
	for i := range order.Items {
		item := &order.Items[i]
		listing, err := decrementListingQuantity(ctx, tx, item.ListingID, item.Quantity)
		if err != nil {
			return err
		}
		item.OrderID = order.ID
		item.SellerID = listing.SellerID
		item.UnitPrice = listing.UnitPrice
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, buyer_id, order_status, delivery_address, payment_method, total_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		order.ID,
		order.BuyerID,
		order.Status,
		order.DeliveryAddress,
		order.PaymentMethod,
		order.Total(),
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	for _, item := range order.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, listing_id, seller_id, quantity, price)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, item.ID, item.OrderID, item.ListingID, item.SellerID, item.Quantity, item.UnitPrice)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}
	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	orders, err := r.listWhere(ctx, "o.id = $1", id)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ErrOrderNotFound
	}
	return orders[0], nil
}

func (r *orderRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.Order, error) {
	return r.listWhere(ctx, "o.buyer_id = $1", buyerID)
}

// ListBySeller returns every order containing at least one of the seller's items, with all of its items
func (r *orderRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Order, error) {
	return r.listWhere(ctx, "o.id IN (SELECT order_id FROM order_items WHERE seller_id = $1)", sellerID)
}

func (r *orderRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return total, nil
}

func (r *orderRepository) Advance(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	order, err := scanOrder(tx.QueryRowContext(ctx, `
		UPDATE orders o
		SET order_status = $3
		WHERE o.id = $1 AND o.order_status = $2
		RETURNING `+orderColumns, id, from, to))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to advance order: %w", err)
		}
		// Either the order vanished or someone else moved it first.
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check order: %w", err)
		}
		if !exists {
			return nil, ErrOrderNotFound
		}
		return nil, ErrOrderStatusConflict
	}

	order.Items = []domain.OrderItem{}
	if err := attachItems(ctx, tx, map[uuid.UUID]*domain.Order{order.ID: order}, "o.id = $1", id); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order status: %w", err)
	}
	return order, nil
}

// listWhere loads orders and their items with two queries sharing the same predicate over alias o.
func (r *orderRepository) listWhere(ctx context.Context, predicate string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders o WHERE `+predicate+` ORDER BY o.created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	byID := make(map[uuid.UUID]*domain.Order)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		order.Items = []domain.OrderItem{}
		orders = append(orders, order)
		byID[order.ID] = order
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	if err := attachItems(ctx, r.db, byID, predicate, args...); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachItems appends the items of every order matching predicate to its entry in byID.
func attachItems(ctx context.Context, q DBTX, byID map[uuid.UUID]*domain.Order, predicate string, args ...any) error {
	itemRows, err := q.QueryContext(ctx, `
		SELECT i.id, i.order_id, i.listing_id, i.seller_id, i.quantity, i.price
		FROM order_items i
		JOIN orders o ON o.id = i.order_id
		WHERE `+predicate+`
		ORDER BY i.id`, args...)
	if err != nil {
		return fmt.Errorf("failed to list order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item domain.OrderItem
		if err := itemRows.Scan(&item.ID, &item.OrderID, &item.ListingID, &item.SellerID, &item.Quantity, &item.UnitPrice); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		if order, ok := byID[item.OrderID]; ok {
			order.Items = append(order.Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return fmt.Errorf("error iterating order items: %w", err)
	}
	return nil
}
