package realtime

import (
	"context"
	"errors"
	"sync"

	"fishmarket/internal/domain"

	"github.com/google/uuid"
)

var ErrBrokerClosed = errors.New("realtime broker closed")

// MemoryBroker serves a single process. It is used when Redis is disabled.
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[*subscription]struct{}
	closed bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[uuid.UUID]map[*subscription]struct{})}
}

func (b *MemoryBroker) Publish(_ context.Context, msg *domain.Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBrokerClosed
	}
	for sub := range b.subs[msg.ListingID] {
		sub.deliver(msg)
	}
	return nil
}

func (b *MemoryBroker) Subscribe(_ context.Context, listingID uuid.UUID) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBrokerClosed
	}

	var sub *subscription
	sub = newSubscription(func() { b.remove(listingID, sub) })
	if b.subs[listingID] == nil {
		b.subs[listingID] = make(map[*subscription]struct{})
	}
	b.subs[listingID][sub] = struct{}{}
	return sub, nil
}

func (b *MemoryBroker) remove(listingID uuid.UUID, sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[listingID], sub)
	if len(b.subs[listingID]) == 0 {
		delete(b.subs, listingID)
	}
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	b.closed = true
	var all []*subscription
	for _, set := range b.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range all {
		_ = sub.Close()
	}
	return nil
}
