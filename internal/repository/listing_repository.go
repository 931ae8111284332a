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
	ErrListingNotFound      = errors.New("listing not found")
	ErrListingInUse         = errors.New("listing is referenced by offers or orders")
	ErrInsufficientQuantity = errors.New("listing quantity is insufficient")
)

// ListingRepository defines the interface for listing data access
type ListingRepository interface {
	Create(ctx context.Context, listing *domain.Listing) error
	Update(ctx context.Context, listing *domain.Listing) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error)
	List(ctx context.Context, filter domain.ListingFilter) ([]*domain.Listing, int, error)
	SetStatus(ctx context.Context, id uuid.UUID, status domain.ListingStatus) error
	SetVerified(ctx context.Context, id uuid.UUID, verified bool) error
	Count(ctx context.Context, sellerID *uuid.UUID) (int, error)
}

type listingRepository struct {
	db *sql.DB
}

// NewListingRepository creates a new instance of ListingRepository
func NewListingRepository(db *sql.DB) ListingRepository {
	return &listingRepository{db: db}
}

const listingColumns = `id, seller_id, category, title, description, quality, location, quantity, unit_price, status, verified, created_at, updated_at`

func scanListing(row rowScanner) (*domain.Listing, error) {
	listing := &domain.Listing{}
	err := row.Scan(
		&listing.ID,
		&listing.SellerID,
		&listing.Category,
		&listing.Title,
		&listing.Description,
		&listing.Quality,
		&listing.Location,
		&listing.Quantity,
		&listing.UnitPrice,
		&listing.Status,
		&listing.Verified,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	)
	return listing, err
}

func (r *listingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	query := `
		INSERT INTO listings (` + listingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		listing.ID,
		listing.SellerID,
		listing.Category,
		listing.Title,
		listing.Description,
		listing.Quality,
		listing.Location,
		listing.Quantity,
		listing.UnitPrice,
		listing.Status,
		listing.Verified,
		listing.CreatedAt,
		listing.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}

	return nil
}

// Update rewrites the seller-editable fields. Verification is left to SetVerified.
func (r *listingRepository) Update(ctx context.Context, listing *domain.Listing) error {
	query := `
		UPDATE listings
		SET category = $2, title = $3, description = $4, quality = $5, location = $6,
		    quantity = $7, unit_price = $8, status = $9
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		listing.ID,
		listing.Category,
		listing.Title,
		listing.Description,
		listing.Quality,
		listing.Location,
		listing.Quantity,
		listing.UnitPrice,
		listing.Status,
	).Scan(&listing.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrListingNotFound
		}
		return fmt.Errorf("failed to update listing: %w", err)
	}

	return nil
}

// Delete hard-deletes a listing unless offers or order items still reference it
func (r *listingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrListingInUse
		}
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	return expectOneRow(result, ErrListingNotFound)
}

func (r *listingRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	listing, err := findListing(ctx, r.db, id, false)
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// List retrieves listings matching filter, newest first, with the total count before pagination
func (r *listingRepository) List(ctx context.Context, filter domain.ListingFilter) ([]*domain.Listing, int, error) {
	var (
		conditions []string
		args       []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filter.SellerID != nil {
		add("seller_id = $%d", *filter.SellerID)
	}
	if filter.Category != "" {
		add("category = $%d", filter.Category)
	}
	if filter.Quality != "" {
		add("quality = $%d", filter.Quality)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d OR location ILIKE $%d)", n, n, n))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM listings %s", whereClause)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count listings: %w", err)
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`
		SELECT %s
		FROM listings
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, listingColumns, whereClause, len(args)+1, len(args)+2)
	args = append(args, pageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()

	listings := []*domain.Listing{}
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating listings: %w", err)
	}

	return listings, total, nil
}

func (r *listingRepository) SetStatus(ctx context.Context, id uuid.UUID, status domain.ListingStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE listings SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to set listing status: %w", err)
	}
	return expectOneRow(result, ErrListingNotFound)
}

func (r *listingRepository) SetVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE listings SET verified = $2 WHERE id = $1`, id, verified)
	if err != nil {
		return fmt.Errorf("failed to verify listing: %w", err)
	}
	return expectOneRow(result, ErrListingNotFound)
}

// Count returns the number of listings, optionally for one seller
func (r *listingRepository) Count(ctx context.Context, sellerID *uuid.UUID) (int, error) {
	var (
		total int
		err   error
	)
	if sellerID != nil {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings WHERE seller_id = $1`, *sellerID).Scan(&total)
	} else {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings`).Scan(&total)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count listings: %w", err)
	}
	return total, nil
}

func findListing(ctx context.Context, q DBTX, id uuid.UUID, forUpdate bool) (*domain.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	listing, err := scanListing(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to find listing by ID: %w", err)
	}
	return listing, nil
}

// decrementListingQuantity takes n units from an available listing and flips it to unavailable at zero.
// The quantity guard in the WHERE clause makes concurrent decrements safe without a prior read.
func decrementListingQuantity(ctx context.Context, q DBTX, id uuid.UUID, n int) (*domain.Listing, error) {
	query := `
		UPDATE listings
		SET quantity = quantity - $2,
		    status = CASE WHEN quantity - $2 > 0 THEN 'available' ELSE 'unavailable' END
		WHERE id = $1 AND status = 'available' AND quantity >= $2
		RETURNING ` + listingColumns

	listing, err := scanListing(q.QueryRowContext(ctx, query, id, n))
	if err == nil {
		return listing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to decrement listing quantity: %w", err)
	}

	// Distinguish a missing listing from one that cannot cover n.
	if _, findErr := findListing(ctx, q, id, false); findErr != nil {
		return nil, findErr
	}
	return nil, ErrInsufficientQuantity
}
