package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"fishmarket/internal/events"
	"fishmarket/internal/metrics"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader hands out queued messages, then blocks until the fetch context ends. With
// eofWhenEmpty it reports a closed reader instead of blocking.
type fakeReader struct {
	mu           sync.Mutex
	queue        []kafka.Message
	committed    []kafka.Message
	commitErr    error
	eofWhenEmpty bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	eof := r.eofWhenEmpty
	r.mu.Unlock()
	if eof {
		return kafka.Message{}, io.EOF
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.commitErr != nil {
		return r.commitErr
	}
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	offsets := make([]int64, 0, len(r.committed))
	for _, msg := range r.committed {
		offsets = append(offsets, msg.Offset)
	}
	return offsets
}

type fakeSink struct {
	mu      sync.Mutex
	batches [][]Row
	err     error
}

func (s *fakeSink) Insert(_ context.Context, rows []Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, append([]Row(nil), rows...))
	return nil
}

func (s *fakeSink) rowCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, batch := range s.batches {
		n += len(batch)
	}
	return n
}

func eventMessage(t *testing.T, offset int64, eventType events.Type, data events.TransactionData) kafka.Message {
	t.Helper()
	evt, err := events.New(eventType, uuid.New(), uuid.New(), data)
	require.NoError(t, err)
	raw, err := json.Marshal(evt)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: raw}
}

func acceptedOffer(t *testing.T, offset int64) kafka.Message {
	return eventMessage(t, offset, events.OfferAccepted, events.TransactionData{
		ListingID:  uuid.New(),
		BuyerID:    uuid.New(),
		SellerIDs:  []string{uuid.NewString()},
		FromStatus: "pending",
		ToStatus:   "accepted",
		Quantity:   4,
		TotalValue: 48.5,
	})
}

func TestWorker_FlushesFullBatchesAndCommitsAfterInsert(t *testing.T) {
	reader := &fakeReader{eofWhenEmpty: true}
	for i := int64(0); i < 5; i++ {
		reader.queue = append(reader.queue, acceptedOffer(t, i))
	}
	sink := &fakeSink{}
	reg := prometheus.NewRegistry()

	w := NewWorker(reader, sink, metrics.NewAnalytics(reg), nil, 2, time.Hour)
	require.NoError(t, w.Run(context.Background()))

	require.Len(t, sink.batches, 3)
	assert.Len(t, sink.batches[0], 2)
	assert.Len(t, sink.batches[1], 2)
	assert.Len(t, sink.batches[2], 1, "remainder is flushed when the reader closes")
	assert.Equal(t, []int64{0, 1, 2, 3, 4}, reader.commits())

	count, err := testutil.GatherAndCount(reg, "fishmarket_analytics_rows_written_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestWorker_FlushesOnInterval(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{acceptedOffer(t, 7)}}
	sink := &fakeSink{}
	w := NewWorker(reader, sink, nil, nil, 100, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	assert.Eventually(t, func() bool { return sink.rowCount() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []int64{7}, reader.commits())
}

func TestWorker_MalformedMessagesAreCommittedNotStored(t *testing.T) {
	reader := &fakeReader{eofWhenEmpty: true, queue: []kafka.Message{
		{Offset: 0, Value: []byte("not json")},
		{Offset: 1, Value: []byte(`{"type":"offer.created"}`)},
		acceptedOffer(t, 2),
	}}
	sink := &fakeSink{}
	reg := prometheus.NewRegistry()
	m := metrics.NewAnalytics(reg)

	w := NewWorker(reader, sink, m, nil, 10, time.Hour)
	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, 1, sink.rowCount())
	assert.Equal(t, []int64{0, 1, 2}, reader.commits())
}

func TestWorker_InsertFailureStopsWithoutCommitting(t *testing.T) {
	reader := &fakeReader{eofWhenEmpty: true, queue: []kafka.Message{acceptedOffer(t, 0)}}
	sink := &fakeSink{err: errors.New("clickhouse unavailable")}

	w := NewWorker(reader, sink, nil, nil, 1, time.Hour)
	err := w.Run(context.Background())

	require.Error(t, err)
	assert.ErrorContains(t, err, "clickhouse unavailable")
	assert.Empty(t, reader.commits())
}

func TestWorker_CommitFailureIsReturned(t *testing.T) {
	reader := &fakeReader{
		eofWhenEmpty: true,
		queue:        []kafka.Message{acceptedOffer(t, 0)},
		commitErr:    errors.New("rebalance in progress"),
	}
	w := NewWorker(reader, &fakeSink{}, nil, nil, 1, time.Hour)

	assert.ErrorContains(t, w.Run(context.Background()), "failed to commit offsets")
}

func TestRowFromEvent(t *testing.T) {
	listingID := uuid.New()
	buyerID := uuid.New()
	evt, err := events.New(events.OrderAdvanced, uuid.New(), uuid.New(), events.TransactionData{
		ListingID:  listingID,
		BuyerID:    buyerID,
		FromStatus: "confirmed",
		ToStatus:   "shipped",
		Quantity:   3,
		TotalValue: 90,
	})
	require.NoError(t, err)

	row, err := RowFromEvent(evt)
	require.NoError(t, err)

	assert.Equal(t, evt.ID.String(), row.EventID)
	assert.Equal(t, "order.advanced", row.EventType)
	assert.Equal(t, listingID.String(), row.ListingID)
	assert.Equal(t, buyerID.String(), row.BuyerID)
	assert.Equal(t, []string{}, row.SellerIDs)
	assert.Equal(t, "confirmed", row.FromStatus)
	assert.Equal(t, "shipped", row.ToStatus)
	assert.Equal(t, uint32(3), row.Quantity)
	assert.Equal(t, 90.0, row.TotalValue)
	assert.Equal(t, time.UTC, row.OccurredAt.Location())
}

func TestRowFromEvent_RejectsBadPayloads(t *testing.T) {
	evt := events.Event{ID: uuid.New(), Type: events.OfferCreated, Data: json.RawMessage(`{"quantity":"many"}`)}
	_, err := RowFromEvent(evt)
	assert.Error(t, err)

	evt.Data = json.RawMessage(`{"quantity":-2}`)
	_, err = RowFromEvent(evt)
	assert.ErrorContains(t, err, "negative quantity")
}
