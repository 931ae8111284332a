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

type ReviewInput struct {
	OrderID   uuid.UUID
	ListingID uuid.UUID
	Rating    int
	Comment   string
}

// SellerReviews is a seller's reviews with their mean rating
type SellerReviews struct {
	SellerID      uuid.UUID        `json:"seller_id"`
	AverageRating float64          `json:"average_rating"`
	Reviews       []*domain.Review `json:"reviews"`
}

type ReviewService interface {
	Create(ctx context.Context, actor domain.Actor, in ReviewInput) (*domain.Review, error)
	ListForSeller(ctx context.Context, sellerID uuid.UUID) (*SellerReviews, error)
	ListMine(ctx context.Context, actor domain.Actor) ([]*domain.Review, error)
}

type reviewService struct {
	reviews repository.ReviewRepository
	orders  repository.OrderRepository
	logger  *zap.Logger
	now     func() time.Time
}

func NewReviewService(reviews repository.ReviewRepository, orders repository.OrderRepository, logger *zap.Logger) ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &reviewService{reviews: reviews, orders: orders, logger: logger, now: time.Now}
}

// Create lets a buyer rate a listing from one of their delivered orders, once per order line
func (s *reviewService) Create(ctx context.Context, actor domain.Actor, in ReviewInput) (*domain.Review, error) {
	if actor.Role != domain.RoleBuyer {
		return nil, apperror.New(apperror.CodeUnauthorized, "only buyers can write reviews")
	}
	if in.Rating < domain.MinRating || in.Rating > domain.MaxRating {
		return nil, apperror.New(apperror.CodeValidation, "rating must be between 1 and 5").
			WithDetails(map[string]any{"field": "rating", "value": in.Rating})
	}

	order, err := s.orders.FindByID(ctx, in.OrderID)
	if err != nil {
		return nil, translate(err, "failed to load order")
	}
	if order.BuyerID != actor.UserID {
		return nil, apperror.New(apperror.CodeUnauthorized, "order belongs to another buyer")
	}
	if order.Status != domain.OrderStatusDelivered {
		return nil, apperror.New(apperror.CodeInvalidState, "only delivered orders can be reviewed").
			WithDetails(map[string]any{"status": order.Status})
	}

	var item *domain.OrderItem
	for i := range order.Items {
		if order.Items[i].ListingID == in.ListingID {
			item = &order.Items[i]
			break
		}
	}
	if item == nil {
		return nil, apperror.New(apperror.CodeValidation, "listing is not part of this order")
	}

	review := &domain.Review{
		ID:        uuid.New(),
		OrderID:   order.ID,
		ListingID: item.ListingID,
		BuyerID:   actor.UserID,
		SellerID:  item.SellerID,
		Rating:    in.Rating,
		Comment:   strings.TrimSpace(in.Comment),
		CreatedAt: s.now().UTC(),
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, translate(err, "failed to create review")
	}

	s.logger.Info("Review created",
		zap.String("review_id", review.ID.String()),
		zap.String("seller_id", review.SellerID.String()),
		zap.Int("rating", review.Rating),
	)
	return review, nil
}

func (s *reviewService) ListForSeller(ctx context.Context, sellerID uuid.UUID) (*SellerReviews, error) {
	reviews, err := s.reviews.ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, translate(err, "failed to list reviews")
	}
	return &SellerReviews{
		SellerID:      sellerID,
		AverageRating: domain.AverageRating(reviews),
		Reviews:       reviews,
	}, nil
}

func (s *reviewService) ListMine(ctx context.Context, actor domain.Actor) ([]*domain.Review, error) {
	reviews, err := s.reviews.ListByBuyer(ctx, actor.UserID)
	if err != nil {
		return nil, translate(err, "failed to list reviews")
	}
	return reviews, nil
}
