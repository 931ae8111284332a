package service

import (
	"context"
	"time"

	"fishmarket/internal/apperror"
	"fishmarket/internal/domain"
	"fishmarket/internal/events"
	"fishmarket/internal/metrics"
	"fishmarket/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OfferService runs the offer lifecycle: pending -> accepted | rejected.
type OfferService interface {
	Create(ctx context.Context, actor domain.Actor, in domain.OfferInput) (*domain.Offer, error)
	Respond(ctx context.Context, actor domain.Actor, offerID uuid.UUID, decision domain.OfferDecision) (*domain.Offer, error)
	Get(ctx context.Context, actor domain.Actor, offerID uuid.UUID) (*domain.Offer, error)
	ListForBuyer(ctx context.Context, actor domain.Actor, status domain.OfferStatus) ([]*domain.Offer, error)
	ListForSeller(ctx context.Context, actor domain.Actor, status domain.OfferStatus) ([]*domain.Offer, error)
	ListTransactions(ctx context.Context, actor domain.Actor) (*domain.TransactionSummary, error)
}

type offerService struct {
	offers   repository.OfferRepository
	listings repository.ListingRepository
	metrics  *metrics.Lifecycle
	events   *events.Emitter
	logger   *zap.Logger
	now      func() time.Time
}

func NewOfferService(
	offers repository.OfferRepository,
	listings repository.ListingRepository,
	m *metrics.Lifecycle,
	emitter *events.Emitter,
	logger *zap.Logger,
) OfferService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &offerService{
		offers:   offers,
		listings: listings,
		metrics:  m,
		events:   emitter,
		logger:   logger,
		now:      time.Now,
	}
}

// Create records a pending offer. Input is validated before the listing is read so malformed
// offers never touch storage.
func (s *offerService) Create(ctx context.Context, actor domain.Actor, in domain.OfferInput) (*domain.Offer, error) {
	if actor.Role != domain.RoleBuyer {
		return nil, apperror.New(apperror.CodeUnauthorized, "only buyers can make offers")
	}
	in.BuyerID = actor.UserID
	if err := in.Validate(); err != nil {
		return nil, err
	}

	listing, err := s.listings.FindByID(ctx, in.ListingID)
	if err != nil {
		return nil, translate(err, "failed to load listing")
	}

	offer, err := domain.NewOffer(in, listing, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.offers.Create(ctx, offer); err != nil {
		return nil, translate(err, "failed to create offer")
	}

	s.metrics.OfferTransition("", string(domain.OfferStatusPending))
	s.events.Emit(ctx, events.OfferCreated, offer.ID, actor.UserID, offerEventData(offer, ""))
	s.logger.Info("Offer created",
		zap.String("offer_id", offer.ID.String()),
		zap.String("listing_id", offer.ListingID.String()),
		zap.Int("quantity", offer.Quantity),
		zap.Float64("unit_price", offer.UnitPrice),
	)
	return offer, nil
}

// Respond applies the seller's decision. The write is a compare-and-swap on pending, so a concurrent
// or repeated response fails with INVALID_STATE instead of applying twice.
func (s *offerService) Respond(ctx context.Context, actor domain.Actor, offerID uuid.UUID, decision domain.OfferDecision) (*domain.Offer, error) {
	offer, err := s.offers.FindByID(ctx, offerID)
	if err != nil {
		return nil, translate(err, "failed to load offer")
	}

	target, err := offer.Respond(actor.UserID, decision)
	if err != nil {
		return nil, err
	}

	updated, err := s.offers.Transition(ctx, offerID, domain.OfferStatusPending, target)
	if err != nil {
		s.logger.Info("Offer response not applied",
			zap.String("offer_id", offerID.String()),
			zap.String("decision", string(decision)),
			zap.Error(err),
		)
		return nil, translate(err, "failed to update offer")
	}

	s.metrics.OfferTransition(string(domain.OfferStatusPending), string(target))
	eventType := events.OfferRejected
	if target == domain.OfferStatusAccepted {
		eventType = events.OfferAccepted
	}
	s.events.Emit(ctx, eventType, updated.ID, actor.UserID, offerEventData(updated, domain.OfferStatusPending))
	s.logger.Info("Offer responded",
		zap.String("offer_id", offerID.String()),
		zap.String("status", string(target)),
	)
	return updated, nil
}

func (s *offerService) Get(ctx context.Context, actor domain.Actor, offerID uuid.UUID) (*domain.Offer, error) {
	offer, err := s.offers.FindByID(ctx, offerID)
	if err != nil {
		return nil, translate(err, "failed to get offer")
	}
	if !actor.IsAdmin() && actor.UserID != offer.BuyerID && actor.UserID != offer.SellerID {
		return nil, apperror.New(apperror.CodeUnauthorized, "not a participant of this offer")
	}
	return offer, nil
}

func (s *offerService) ListForBuyer(ctx context.Context, actor domain.Actor, status domain.OfferStatus) ([]*domain.Offer, error) {
	if actor.Role != domain.RoleBuyer {
		return nil, apperror.New(apperror.CodeUnauthorized, "buyer role required")
	}
	return s.list(ctx, domain.OfferFilter{BuyerID: &actor.UserID, Status: status})
}

func (s *offerService) ListForSeller(ctx context.Context, actor domain.Actor, status domain.OfferStatus) ([]*domain.Offer, error) {
	if actor.Role != domain.RoleSeller {
		return nil, apperror.New(apperror.CodeUnauthorized, "seller role required")
	}
	return s.list(ctx, domain.OfferFilter{SellerID: &actor.UserID, Status: status})
}

// ListTransactions is the admin view of accepted offers
func (s *offerService) ListTransactions(ctx context.Context, actor domain.Actor) (*domain.TransactionSummary, error) {
	if !actor.IsAdmin() {
		return nil, apperror.New(apperror.CodeUnauthorized, "admin role required")
	}
	offers, err := s.list(ctx, domain.OfferFilter{})
	if err != nil {
		return nil, err
	}
	summary := domain.SummarizeTransactions(offers)
	return &summary, nil
}

func (s *offerService) list(ctx context.Context, filter domain.OfferFilter) ([]*domain.Offer, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, apperror.New(apperror.CodeValidation, "unknown offer status filter")
	}
	offers, err := s.offers.List(ctx, filter)
	if err != nil {
		return nil, translate(err, "failed to list offers")
	}
	return offers, nil
}

func offerEventData(offer *domain.Offer, from domain.OfferStatus) events.TransactionData {
	return events.TransactionData{
		ListingID:  offer.ListingID,
		BuyerID:    offer.BuyerID,
		SellerIDs:  []string{offer.SellerID.String()},
		FromStatus: string(from),
		ToStatus:   string(offer.Status),
		Quantity:   offer.Quantity,
		TotalValue: offer.TotalValue(),
	}
}
