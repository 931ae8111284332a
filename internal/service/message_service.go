package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"fishmarket/internal/apperror"
	"fishmarket/internal/domain"
	"fishmarket/internal/metrics"
	"fishmarket/internal/realtime"
	"fishmarket/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const MaxMessageLength = 2000

// SendMessageInput is a message about a listing. ReceiverID may be omitted by buyers; it
// defaults to the listing's seller.
type SendMessageInput struct {
	ListingID  uuid.UUID
	ReceiverID uuid.UUID
	Body       string
}

// MessageService stores listing conversations and feeds them to live subscribers
type MessageService interface {
	Send(ctx context.Context, actor domain.Actor, in SendMessageInput) (*domain.Message, error)
	History(ctx context.Context, actor domain.Actor, listingID uuid.UUID) ([]*domain.Message, error)
	// Subscribe returns a live feed. The caller owns the subscription and must close it.
	Subscribe(ctx context.Context, actor domain.Actor, listingID uuid.UUID) (realtime.Subscription, error)
}

type messageService struct {
	messages repository.MessageRepository
	listings repository.ListingRepository
	broker   realtime.Broker
	metrics  *metrics.Lifecycle
	logger   *zap.Logger
	now      func() time.Time
}

func NewMessageService(
	messages repository.MessageRepository,
	listings repository.ListingRepository,
	broker realtime.Broker,
	m *metrics.Lifecycle,
	logger *zap.Logger,
) MessageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &messageService{
		messages: messages,
		listings: listings,
		broker:   broker,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Send stores the message and then fans it out. The insert is the source of truth; a failed
// fan-out is logged and subscribers will see the message in history.
func (s *messageService) Send(ctx context.Context, actor domain.Actor, in SendMessageInput) (*domain.Message, error) {
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return nil, apperror.New(apperror.CodeValidation, "message cannot be empty")
	}
	if utf8.RuneCountInString(body) > MaxMessageLength {
		return nil, apperror.New(apperror.CodeValidation, "message is too long").
			WithDetails(map[string]any{"max_length": MaxMessageLength})
	}

	listing, err := s.listings.FindByID(ctx, in.ListingID)
	if err != nil {
		return nil, translate(err, "failed to load listing")
	}

	receiver := in.ReceiverID
	if receiver == uuid.Nil {
		if actor.UserID == listing.SellerID {
			return nil, apperror.New(apperror.CodeValidation, "receiver is required when the seller writes")
		}
		receiver = listing.SellerID
	}
	if receiver == actor.UserID {
		return nil, apperror.New(apperror.CodeValidation, "cannot message yourself")
	}
	if !actor.IsAdmin() && actor.UserID != listing.SellerID && receiver != listing.SellerID {
		return nil, apperror.New(apperror.CodeUnauthorized, "conversations about a listing must include its seller")
	}

	msg := &domain.Message{
		ID:         uuid.New(),
		ListingID:  listing.ID,
		SenderID:   actor.UserID,
		ReceiverID: receiver,
		Body:       body,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, translate(err, "failed to send message")
	}
	s.metrics.MessageSent()

	if err := s.broker.Publish(ctx, msg); err != nil {
		s.logger.Warn("Failed to fan out message",
			zap.String("message_id", msg.ID.String()),
			zap.String("listing_id", msg.ListingID.String()),
			zap.Error(err),
		)
	}
	return msg, nil
}

// History returns the conversation in insertion order. Non-admins only see messages they are part of.
func (s *messageService) History(ctx context.Context, actor domain.Actor, listingID uuid.UUID) ([]*domain.Message, error) {
	if _, err := s.listings.FindByID(ctx, listingID); err != nil {
		return nil, translate(err, "failed to load listing")
	}
	var participant *uuid.UUID
	if !actor.IsAdmin() {
		participant = &actor.UserID
	}
	messages, err := s.messages.ListByListing(ctx, listingID, participant)
	if err != nil {
		return nil, translate(err, "failed to load messages")
	}
	return messages, nil
}

func (s *messageService) Subscribe(ctx context.Context, actor domain.Actor, listingID uuid.UUID) (realtime.Subscription, error) {
	if _, err := s.listings.FindByID(ctx, listingID); err != nil {
		return nil, translate(err, "failed to load listing")
	}
	sub, err := s.broker.Subscribe(ctx, listingID)
	if err != nil {
		return nil, apperror.Transient(err, "failed to subscribe to messages")
	}
	if actor.IsAdmin() {
		return sub, nil
	}
	userID := actor.UserID
	return realtime.Filter(sub, func(m *domain.Message) bool { return m.Involves(userID) }), nil
}
