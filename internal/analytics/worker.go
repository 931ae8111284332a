package analytics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"fishmarket/internal/config"
	"fishmarket/internal/events"
	"fishmarket/internal/metrics"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const shutdownFlushTimeout = 5 * time.Second

// MessageReader is the part of *kafka.Reader the worker drives.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaReader joins the consumer group that feeds the ledger.
func NewKafkaReader(cfg config.EventsConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
}

// Worker copies lifecycle events into the ledger in batches. Offsets are committed only after
// the batch is stored, so a crash replays the batch and the table collapses the duplicates.
type Worker struct {
	reader        MessageReader
	sink          Sink
	metrics       *metrics.Analytics
	logger        *zap.Logger
	batchSize     int
	flushInterval time.Duration

	rows    []Row
	pending []kafka.Message
}

func NewWorker(reader MessageReader, sink Sink, m *metrics.Analytics, logger *zap.Logger, batchSize int, flushInterval time.Duration) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	return &Worker{
		reader:        reader,
		sink:          sink,
		metrics:       m,
		logger:        logger,
		batchSize:     batchSize,
		flushInterval: flushInterval,
	}
}

// Run consumes until ctx is cancelled or the reader closes. Whatever is buffered at shutdown is
// flushed before returning. A ledger or commit failure stops the worker.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Analytics worker started",
		zap.Int("batch_size", w.batchSize),
		zap.Duration("flush_interval", w.flushInterval),
	)

	deadline := time.Now().Add(w.flushInterval)
	for {
		fetchCtx, cancel := context.WithDeadline(ctx, deadline)
		msg, err := w.reader.FetchMessage(fetchCtx)
		cancel()

		switch {
		case err == nil:
			w.accept(msg)
			if len(w.pending) < w.batchSize {
				continue
			}
		case ctx.Err() != nil, errors.Is(err, io.EOF):
			return w.drain(ctx)
		case errors.Is(err, context.DeadlineExceeded):
		default:
			return fmt.Errorf("failed to fetch message: %w", err)
		}

		if err := w.flush(ctx); err != nil {
			return err
		}
		deadline = time.Now().Add(w.flushInterval)
	}
}

func (w *Worker) drain(ctx context.Context) error {
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownFlushTimeout)
	defer cancel()
	if err := w.flush(flushCtx); err != nil {
		return err
	}
	w.logger.Info("Analytics worker stopped")
	return nil
}

// accept buffers a message. Undecodable messages are committed with the batch so they cannot
// block the partition.
func (w *Worker) accept(msg kafka.Message) {
	w.pending = append(w.pending, msg)

	evt, err := events.Decode(msg.Value)
	if err == nil && evt.ID == uuid.Nil {
		err = errors.New("missing event id")
	}
	var row Row
	if err == nil {
		row, err = RowFromEvent(evt)
	}
	if err != nil {
		w.metrics.Skipped()
		w.logger.Warn("Skipping malformed lifecycle message",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return
	}
	w.rows = append(w.rows, row)
}

func (w *Worker) flush(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}

	if err := w.sink.Insert(ctx, w.rows); err != nil {
		w.metrics.InsertFailed()
		return fmt.Errorf("failed to insert %d rows: %w", len(w.rows), err)
	}
	if err := w.reader.CommitMessages(ctx, w.pending...); err != nil {
		return fmt.Errorf("failed to commit offsets: %w", err)
	}

	w.metrics.RowsWritten(len(w.rows))
	w.logger.Debug("Ledger batch written",
		zap.Int("rows", len(w.rows)),
		zap.Int("messages", len(w.pending)),
	)
	w.rows = w.rows[:0]
	w.pending = w.pending[:0]
	return nil
}
