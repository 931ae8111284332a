// Package realtime fans out newly stored listing messages to live subscribers.
//
// Delivery is at-least-once from the transport; each Subscription drops duplicates by message id
// and preserves publish order. Nothing is buffered for a subscription after Close.
package realtime

import (
	"context"
	"sync"

	"fishmarket/internal/domain"

	"github.com/google/uuid"
)

// Broker publishes messages to every subscriber of the message's listing.
type Broker interface {
	Publish(ctx context.Context, msg *domain.Message) error
	// Subscribe returns once the subscription is live; messages published afterwards are delivered.
	Subscribe(ctx context.Context, listingID uuid.UUID) (Subscription, error)
	Close() error
}

// Subscription is a scoped feed for one listing. Callers must Close it on every exit path.
type Subscription interface {
	Messages() <-chan *domain.Message
	Close() error
}

const seenWindow = 1024

// subscription decouples publishers from slow readers with an unbounded in-order queue.
type subscription struct {
	out      chan *domain.Message
	mu       sync.Mutex
	queue    []*domain.Message
	seen     map[uuid.UUID]struct{}
	seenRing []uuid.UUID
	wake     chan struct{}
	done     chan struct{}
	once     sync.Once
	onClose  func()
}

func newSubscription(onClose func()) *subscription {
	s := &subscription{
		out:     make(chan *domain.Message),
		seen:    make(map[uuid.UUID]struct{}),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		onClose: onClose,
	}
	go s.pump()
	return s
}

func (s *subscription) Messages() <-chan *domain.Message {
	return s.out
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		if s.onClose != nil {
			s.onClose()
		}
	})
	return nil
}

// deliver enqueues msg unless it was already seen or the subscription is closed.
func (s *subscription) deliver(msg *domain.Message) {
	select {
	case <-s.done:
		return
	default:
	}

	s.mu.Lock()
	if _, dup := s.seen[msg.ID]; dup {
		s.mu.Unlock()
		return
	}
	s.seen[msg.ID] = struct{}{}
	s.seenRing = append(s.seenRing, msg.ID)
	if len(s.seenRing) > seenWindow {
		delete(s.seen, s.seenRing[0])
		s.seenRing = s.seenRing[1:]
	}
	s.queue = append(s.queue, msg)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		var next *domain.Message
		if len(s.queue) > 0 {
			next = s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
		}
		s.mu.Unlock()

		if next == nil {
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}

		select {
		case s.out <- next:
		case <-s.done:
			return
		}
	}
}
