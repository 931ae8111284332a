package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"fishmarket/internal/apperror"
	"fishmarket/internal/domain"
	"fishmarket/internal/realtime"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type failingBroker struct{ realtime.Broker }

func (failingBroker) Publish(context.Context, *domain.Message) error {
	return errors.New("redis unavailable")
}

func next(t *testing.T, sub realtime.Subscription) *domain.Message {
	t.Helper()
	select {
	case msg, ok := <-sub.Messages():
		require.True(t, ok)
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestMessages_SubscriberReceivesInSendOrder(t *testing.T) {
	market := newMarketplace()
	broker := realtime.NewMemoryBroker()
	defer broker.Close()
	service := NewMessageService(market.messages, market.listings, broker, nil, nil)
	owner, customer := seller(), buyer()
	listing := market.addListing(owner, 5, 10)
	ctx := context.Background()

	sub, err := service.Subscribe(ctx, owner, listing.ID)
	require.NoError(t, err)
	defer sub.Close()

	first, err := service.Send(ctx, customer, SendMessageInput{ListingID: listing.ID, Body: "  Is the tuna fresh?  "})
	require.NoError(t, err)
	assert.Equal(t, owner.UserID, first.ReceiverID, "buyers write to the listing seller")
	assert.Equal(t, "Is the tuna fresh?", first.Body)

	second, err := service.Send(ctx, owner, SendMessageInput{ListingID: listing.ID, ReceiverID: customer.UserID, Body: "Caught this morning"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, next(t, sub).ID)
	assert.Equal(t, second.ID, next(t, sub).ID)

	history, err := service.History(ctx, customer, listing.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, first.ID, history[0].ID)
}

func TestMessages_SubscribersOnlySeeTheirConversations(t *testing.T) {
	market := newMarketplace()
	broker := realtime.NewMemoryBroker()
	defer broker.Close()
	service := NewMessageService(market.messages, market.listings, broker, nil, nil)
	owner, alice, bob := seller(), buyer(), buyer()
	listing := market.addListing(owner, 5, 10)
	ctx := context.Background()

	sub, err := service.Subscribe(ctx, alice, listing.ID)
	require.NoError(t, err)
	defer sub.Close()

	_, err = service.Send(ctx, bob, SendMessageInput{ListingID: listing.ID, Body: "bob here"})
	require.NoError(t, err)
	mine, err := service.Send(ctx, alice, SendMessageInput{ListingID: listing.ID, Body: "alice here"})
	require.NoError(t, err)

	assert.Equal(t, mine.ID, next(t, sub).ID)

	history, err := service.History(ctx, alice, listing.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	all, err := service.History(ctx, admin(), listing.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMessages_Validation(t *testing.T) {
	market := newMarketplace()
	service := NewMessageService(market.messages, market.listings, realtime.NewMemoryBroker(), nil, nil)
	owner, customer := seller(), buyer()
	listing := market.addListing(owner, 5, 10)
	ctx := context.Background()

	tests := []struct {
		name  string
		actor domain.Actor
		in    SendMessageInput
		code  apperror.Code
	}{
		{"blank", customer, SendMessageInput{ListingID: listing.ID, Body: "   "}, apperror.CodeValidation},
		{"too long", customer, SendMessageInput{ListingID: listing.ID, Body: strings.Repeat("x", MaxMessageLength+1)}, apperror.CodeValidation},
		{"seller without receiver", owner, SendMessageInput{ListingID: listing.ID, Body: "hi"}, apperror.CodeValidation},
		{"to self", customer, SendMessageInput{ListingID: listing.ID, ReceiverID: customer.UserID, Body: "hi"}, apperror.CodeValidation},
		{"bypassing the seller", customer, SendMessageInput{ListingID: listing.ID, ReceiverID: uuid.New(), Body: "hi"}, apperror.CodeUnauthorized},
		{"unknown listing", customer, SendMessageInput{ListingID: uuid.New(), Body: "hi"}, apperror.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Send(ctx, tt.actor, tt.in)
			assert.Equal(t, tt.code, apperror.CodeOf(err))
		})
	}
	assert.Empty(t, market.messages.messages)
}

func TestMessages_FanOutFailureStillStores(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	market := newMarketplace()
	service := NewMessageService(market.messages, market.listings, failingBroker{}, nil, zap.New(core))
	listing := market.addListing(seller(), 5, 10)

	msg, err := service.Send(context.Background(), buyer(), SendMessageInput{ListingID: listing.ID, Body: "hello"})
	require.NoError(t, err)
	assert.Len(t, market.messages.messages, 1)
	assert.Equal(t, msg.ID, market.messages.messages[0].ID)
	assert.Equal(t, 1, logs.FilterMessage("Failed to fan out message").Len())
}
