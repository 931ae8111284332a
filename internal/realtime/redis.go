package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"fishmarket/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroker fans messages out across API instances over Redis pub/sub.
type RedisBroker struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisBroker(client *redis.Client, logger *zap.Logger) *RedisBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBroker{client: client, logger: logger}
}

func channelFor(listingID uuid.UUID) string {
	return fmt.Sprintf("fishmarket:listing:%s:messages", listingID)
}

func (b *RedisBroker) Publish(ctx context.Context, msg *domain.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := b.client.Publish(ctx, channelFor(msg.ListingID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, listingID uuid.UUID) (Subscription, error) {
	pubsub := b.client.Subscribe(ctx, channelFor(listingID))

	// Wait for the subscribe confirmation so nothing published after we return is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to listing feed: %w", err)
	}

	sub := newSubscription(func() { _ = pubsub.Close() })
	go b.forward(pubsub, sub, listingID)
	return sub, nil
}

func (b *RedisBroker) forward(pubsub *redis.PubSub, sub *subscription, listingID uuid.UUID) {
	for raw := range pubsub.Channel() {
		var msg domain.Message
		if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
			b.logger.Warn("Dropping undecodable realtime message",
				zap.String("listing_id", listingID.String()),
				zap.Error(err),
			)
			continue
		}
		sub.deliver(&msg)
	}
	// The channel closes when pubsub is closed; make sure readers see the end too.
	_ = sub.Close()
}

// Close leaves the client open; it is owned by the caller.
func (b *RedisBroker) Close() error {
	return nil
}
