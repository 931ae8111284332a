package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fishmarket/internal/config"
	"fishmarket/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Publisher delivers lifecycle events to a broker.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// NewPublisher selects the broker named by cfg.Driver.
func NewPublisher(cfg config.EventsConfig) (Publisher, error) {
	switch cfg.Driver {
	case "kafka":
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.Topic), nil
	case "rabbitmq":
		return NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	case "", "none":
		return NoopPublisher{}, nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
func (NoopPublisher) Close() error                         { return nil }

var (
	ErrEmitterClosed = errors.New("event emitter is closed")
	ErrQueueFull     = errors.New("event queue is full")
)

const (
	defaultQueueSize      = 1024
	defaultPublishTimeout = 5 * time.Second
)

// Emitter publishes committed transitions in the background, in emit order. A slow or
// unreachable broker never holds up the request that made the change. Failures are logged
// and counted and never reach the caller.
type Emitter struct {
	publisher Publisher
	metrics   *metrics.Lifecycle
	logger    *zap.Logger
	timeout   time.Duration

	mu      sync.RWMutex
	closed  bool
	queue   chan envelope
	stopped chan struct{}
}

// envelope is either an event or a flush marker.
type envelope struct {
	ctx     context.Context
	evt     Event
	flushed chan struct{}
}

type EmitterOption func(*Emitter)

// WithPublishTimeout bounds each broker call.
func WithPublishTimeout(d time.Duration) EmitterOption {
	return func(e *Emitter) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func WithQueueSize(n int) EmitterOption {
	return func(e *Emitter) {
		if n > 0 {
			e.queue = make(chan envelope, n)
		}
	}
}

// NewEmitter starts the background publisher. Close it to drain pending events.
func NewEmitter(publisher Publisher, m *metrics.Lifecycle, logger *zap.Logger, opts ...EmitterOption) *Emitter {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Emitter{
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		timeout:   defaultPublishTimeout,
		queue:     make(chan envelope, defaultQueueSize),
		stopped:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	go e.run()
	return e
}

// Emit queues an event and returns at once. The caller's cancellation does not reach the
// broker call; its values do.
func (e *Emitter) Emit(ctx context.Context, eventType Type, aggregateID, actorID uuid.UUID, data any) {
	if e == nil {
		return
	}
	evt, err := New(eventType, aggregateID, actorID, data)
	if err != nil {
		e.fail(eventType, aggregateID, err)
		return
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.fail(eventType, aggregateID, ErrEmitterClosed)
		return
	}
	select {
	case e.queue <- envelope{ctx: context.WithoutCancel(ctx), evt: evt}:
	default:
		e.fail(eventType, aggregateID, ErrQueueFull)
	}
}

// Flush waits until every event emitted before the call has been handed to the broker.
func (e *Emitter) Flush(ctx context.Context) error {
	if e == nil {
		return nil
	}
	flushed := make(chan struct{})

	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return e.wait(ctx, e.stopped)
	}
	select {
	case e.queue <- envelope{flushed: flushed}:
	case <-ctx.Done():
		e.mu.RUnlock()
		return ctx.Err()
	}
	e.mu.RUnlock()

	return e.wait(ctx, flushed)
}

// Close stops accepting events and waits for the queue to drain.
func (e *Emitter) Close(ctx context.Context) error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()
	return e.wait(ctx, e.stopped)
}

func (e *Emitter) wait(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Emitter) run() {
	defer close(e.stopped)
	for env := range e.queue {
		if env.flushed != nil {
			close(env.flushed)
			continue
		}
		e.publish(env)
	}
}

func (e *Emitter) publish(env envelope) {
	ctx, cancel := context.WithTimeout(env.ctx, e.timeout)
	defer cancel()

	evt := env.evt
	if err := e.publisher.Publish(ctx, evt); err != nil {
		e.fail(evt.Type, evt.AggregateID, err)
		return
	}
	e.logger.Debug("Lifecycle event published",
		zap.String("event_id", evt.ID.String()),
		zap.String("type", string(evt.Type)),
		zap.String("aggregate_id", evt.AggregateID.String()),
	)
}

func (e *Emitter) fail(eventType Type, aggregateID uuid.UUID, err error) {
	e.metrics.PublishFailure(string(eventType))
	e.logger.Warn("Failed to publish lifecycle event",
		zap.String("type", string(eventType)),
		zap.String("aggregate_id", aggregateID.String()),
		zap.Error(err),
	)
}
