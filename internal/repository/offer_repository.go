package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"fishmarket/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrOfferNotFound       = errors.New("offer not found")
	ErrOfferStatusConflict = errors.New("offer status changed concurrently")
)

// OfferRepository defines the interface for offer data access
type OfferRepository interface {
	Create(ctx context.Context, offer *domain.Offer) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Offer, error)
	List(ctx context.Context, filter domain.OfferFilter) ([]*domain.Offer, error)
	// Transition moves an offer from one status to another only if it still holds from.
	// Moving to accepted also consumes the offered quantity from the listing in the same transaction.
	Transition(ctx context.Context, id uuid.UUID, from, to domain.OfferStatus) (*domain.Offer, error)
}

type offerRepository struct {
	db *sql.DB
}

// NewOfferRepository creates a new instance of OfferRepository
func NewOfferRepository(db *sql.DB) OfferRepository {
	return &offerRepository{db: db}
}

const offerColumns = `id, listing_id, buyer_id, seller_id, quantity, offered_price, message, status, created_at, updated_at`

func scanOffer(row rowScanner) (*domain.Offer, error) {
	offer := &domain.Offer{}
	err := row.Scan(
		&offer.ID,
		&offer.ListingID,
		&offer.BuyerID,
		&offer.SellerID,
		&offer.Quantity,
		&offer.UnitPrice,
		&offer.Message,
		&offer.Status,
		&offer.CreatedAt,
		&offer.UpdatedAt,
	)
	return offer, err
}

func (r *offerRepository) Create(ctx context.Context, offer *domain.Offer) error {
	query := `
		INSERT INTO offers (` + offerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		offer.ID,
		offer.ListingID,
		offer.BuyerID,
		offer.SellerID,
		offer.Quantity,
		offer.UnitPrice,
		offer.Message,
		offer.Status,
		offer.CreatedAt,
		offer.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrListingNotFound
		}
		return fmt.Errorf("failed to create offer: %w", err)
	}

	return nil
}

func (r *offerRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1`

	offer, err := scanOffer(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOfferNotFound
		}
		return nil, fmt.Errorf("failed to find offer by ID: %w", err)
	}

	return offer, nil
}

// List returns matching offers, newest first
func (r *offerRepository) List(ctx context.Context, filter domain.OfferFilter) ([]*domain.Offer, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.BuyerID != nil {
		args = append(args, *filter.BuyerID)
		conditions = append(conditions, fmt.Sprintf("buyer_id = $%d", len(args)))
	}
	if filter.SellerID != nil {
		args = append(args, *filter.SellerID)
		conditions = append(conditions, fmt.Sprintf("seller_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + offerColumns + ` FROM offers`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}
	defer rows.Close()

	offers := []*domain.Offer{}
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan offer: %w", err)
		}
		offers = append(offers, offer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating offers: %w", err)
	}

	return offers, nil
}

func (r *offerRepository) Transition(ctx context.Context, id uuid.UUID, from, to domain.OfferStatus) (*domain.Offer, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		UPDATE offers
		SET status = $3
		WHERE id = $1 AND status = $2
		RETURNING ` + offerColumns

	offer, err := scanOffer(tx.QueryRowContext(ctx, query, id, from, to))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to update offer status: %w", err)
		}
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM offers WHERE id = $1)`, id).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check offer: %w", err)
		}
		if !exists {
			return nil, ErrOfferNotFound
		}
		return nil, ErrOfferStatusConflict
	}

	if to == domain.OfferStatusAccepted {
		if _, err := decrementListingQuantity(ctx, tx, offer.ListingID, offer.Quantity); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit offer transition: %w", err)
	}

	return offer, nil
}
