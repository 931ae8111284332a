package analytics

import (
	"context"
	"fmt"
	"time"

	"fishmarket/internal/config"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const transactionsTable = "marketplace_transactions"

// ReplacingMergeTree collapses redelivered events that share an event_id.
const createTransactionsTable = `
CREATE TABLE IF NOT EXISTS marketplace_transactions (
	event_id     String,
	event_type   LowCardinality(String),
	aggregate_id String,
	actor_id     String,
	listing_id   String,
	buyer_id     String,
	seller_ids   Array(String),
	from_status  LowCardinality(String),
	to_status    LowCardinality(String),
	quantity     UInt32,
	total_value  Float64,
	occurred_at  DateTime64(3, 'UTC')
) ENGINE = ReplacingMergeTree
ORDER BY event_id`

const insertTransactions = `INSERT INTO marketplace_transactions (
	event_id, event_type, aggregate_id, actor_id, listing_id, buyer_id,
	seller_ids, from_status, to_status, quantity, total_value, occurred_at
)`

// Sink stores decoded rows. Insert must be all-or-nothing for the batch.
type Sink interface {
	Insert(ctx context.Context, rows []Row) error
}

type ClickHouseSink struct {
	conn driver.Conn
}

// NewClickHouseSink opens a native-protocol connection and pings it.
func NewClickHouseSink(cfg config.ClickHouseConfig) (*ClickHouseSink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		MaxOpenConns: 5,
		DialTimeout:  10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open clickhouse connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	return &ClickHouseSink{conn: conn}, nil
}

// EnsureSchema creates the ledger table if it is missing.
func (s *ClickHouseSink) EnsureSchema(ctx context.Context) error {
	if err := s.conn.Exec(ctx, createTransactionsTable); err != nil {
		return fmt.Errorf("failed to create %s: %w", transactionsTable, err)
	}
	return nil
}

func (s *ClickHouseSink) Insert(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, insertTransactions)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, row := range rows {
		if err := batch.Append(
			row.EventID,
			row.EventType,
			row.AggregateID,
			row.ActorID,
			row.ListingID,
			row.BuyerID,
			row.SellerIDs,
			row.FromStatus,
			row.ToStatus,
			row.Quantity,
			row.TotalValue,
			row.OccurredAt,
		); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append row %s: %w", row.EventID, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

func (s *ClickHouseSink) Close() error {
	return s.conn.Close()
}
