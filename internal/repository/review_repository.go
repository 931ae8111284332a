package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fishmarket/internal/domain"

	"github.com/google/uuid"
)

var ErrReviewAlreadyExists = errors.New("listing already reviewed for this order")

type ReviewRepository interface {
	Create(ctx context.Context, review *domain.Review) error
	ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Review, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.Review, error)
}

type reviewRepository struct {
	db *sql.DB
}

func NewReviewRepository(db *sql.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

const reviewColumns = `id, order_id, listing_id, buyer_id, seller_id, rating, comment, created_at`

func (r *reviewRepository) Create(ctx context.Context, review *domain.Review) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reviews (`+reviewColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		review.ID,
		review.OrderID,
		review.ListingID,
		review.BuyerID,
		review.SellerID,
		review.Rating,
		review.Comment,
		review.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrReviewAlreadyExists
		}
		return fmt.Errorf("failed to create review: %w", err)
	}
	return nil
}

func (r *reviewRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Review, error) {
	return r.list(ctx, "seller_id", sellerID)
}

func (r *reviewRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.Review, error) {
	return r.list(ctx, "buyer_id", buyerID)
}

// column is always one of the fixed names above, never caller input.
func (r *reviewRepository) list(ctx context.Context, column string, id uuid.UUID) ([]*domain.Review, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE `+column+` = $1 ORDER BY created_at DESC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []*domain.Review{}
	for rows.Next() {
		rv := &domain.Review{}
		if err := rows.Scan(&rv.ID, &rv.OrderID, &rv.ListingID, &rv.BuyerID, &rv.SellerID, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reviews: %w", err)
	}
	return reviews, nil
}
