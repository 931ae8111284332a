package service

import (
	"context"
	"strings"
	"time"

	"fishmarket/internal/apperror"
	"fishmarket/internal/domain"
	"fishmarket/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ListingInput carries the editable attributes of a listing.
type ListingInput struct {
	Category    string
	Title       string
	Description string
	Quality     string
	Location    string
	Quantity    int
	UnitPrice   float64
}

func (in ListingInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return apperror.New(apperror.CodeValidation, "title is required")
	}
	if strings.TrimSpace(in.Category) == "" {
		return apperror.New(apperror.CodeValidation, "category is required")
	}
	if in.Quantity < 0 {
		return apperror.New(apperror.CodeValidation, "quantity cannot be negative").
			WithDetails(map[string]any{"field": "quantity", "value": in.Quantity})
	}
	if in.UnitPrice <= 0 {
		return apperror.New(apperror.CodeValidation, "unit price must be greater than zero").
			WithDetails(map[string]any{"field": "unit_price", "value": in.UnitPrice})
	}
	return nil
}

// ListingService manages the seller catalog
type ListingService interface {
	Create(ctx context.Context, actor domain.Actor, in ListingInput) (*domain.Listing, error)
	Update(ctx context.Context, actor domain.Actor, id uuid.UUID, in ListingInput) (*domain.Listing, error)
	Withdraw(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Listing, error)
	Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Listing, error)
	List(ctx context.Context, filter domain.ListingFilter) ([]*domain.Listing, int, error)
	Verify(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Listing, error)
}

type listingService struct {
	listings repository.ListingRepository
	logger   *zap.Logger
	now      func() time.Time
}

func NewListingService(listings repository.ListingRepository, logger *zap.Logger) ListingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &listingService{listings: listings, logger: logger, now: time.Now}
}

func (s *listingService) Create(ctx context.Context, actor domain.Actor, in ListingInput) (*domain.Listing, error) {
	if actor.Role != domain.RoleSeller {
		return nil, apperror.New(apperror.CodeUnauthorized, "only sellers can create listings")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	listing := &domain.Listing{
		ID:        uuid.New(),
		SellerID:  actor.UserID,
		Status:    domain.StatusForQuantity(in.Quantity),
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyListingInput(listing, in)

	if err := s.listings.Create(ctx, listing); err != nil {
		return nil, translate(err, "failed to create listing")
	}

	s.logger.Info("Listing created",
		zap.String("listing_id", listing.ID.String()),
		zap.String("seller_id", actor.UserID.String()),
		zap.Int("quantity", listing.Quantity),
	)
	return listing, nil
}

func (s *listingService) Update(ctx context.Context, actor domain.Actor, id uuid.UUID, in ListingInput) (*domain.Listing, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	listing, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	applyListingInput(listing, in)
	listing.Status = domain.StatusForQuantity(listing.Quantity)
	if err := s.listings.Update(ctx, listing); err != nil {
		return nil, translate(err, "failed to update listing")
	}
	return listing, nil
}

// Withdraw takes a listing off the market without deleting it
func (s *listingService) Withdraw(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Listing, error) {
	listing, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.listings.SetStatus(ctx, id, domain.ListingStatusUnavailable); err != nil {
		return nil, translate(err, "failed to withdraw listing")
	}
	listing.Status = domain.ListingStatusUnavailable
	s.logger.Info("Listing withdrawn", zap.String("listing_id", id.String()))
	return listing, nil
}

// Delete hard-deletes a listing. Listings referenced by offers or orders cannot be deleted.
func (s *listingService) Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		if _, err := s.owned(ctx, actor, id); err != nil {
			return err
		}
	}
	if err := s.listings.Delete(ctx, id); err != nil {
		return translate(err, "failed to delete listing")
	}
	s.logger.Info("Listing deleted", zap.String("listing_id", id.String()), zap.String("by", actor.UserID.String()))
	return nil
}

func (s *listingService) Get(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	listing, err := s.listings.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "failed to get listing")
	}
	return listing, nil
}

func (s *listingService) List(ctx context.Context, filter domain.ListingFilter) ([]*domain.Listing, int, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, apperror.New(apperror.CodeValidation, "unknown listing status filter")
	}
	listings, total, err := s.listings.List(ctx, filter)
	if err != nil {
		return nil, 0, translate(err, "failed to list listings")
	}
	return listings, total, nil
}

// Verify marks a listing's quality tags as checked by an administrator
func (s *listingService) Verify(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Listing, error) {
	if !actor.IsAdmin() {
		return nil, apperror.New(apperror.CodeUnauthorized, "admin role required")
	}
	if err := s.listings.SetVerified(ctx, id, true); err != nil {
		return nil, translate(err, "failed to verify listing")
	}
	return s.Get(ctx, id)
}

func (s *listingService) owned(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Listing, error) {
	listing, err := s.listings.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "failed to load listing")
	}
	if listing.SellerID != actor.UserID {
		return nil, apperror.New(apperror.CodeUnauthorized, "listing belongs to another seller")
	}
	return listing, nil
}

func applyListingInput(listing *domain.Listing, in ListingInput) {
	listing.Category = strings.TrimSpace(in.Category)
	listing.Title = strings.TrimSpace(in.Title)
	listing.Description = strings.TrimSpace(in.Description)
	listing.Quality = strings.TrimSpace(in.Quality)
	listing.Location = strings.TrimSpace(in.Location)
	listing.Quantity = in.Quantity
	listing.UnitPrice = in.UnitPrice
}
