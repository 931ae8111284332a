package repository

import (
	"context"
	"database/sql"
	"fmt"

	"fishmarket/internal/domain"

	"github.com/google/uuid"
)

// MessageRepository stores listing conversations. Messages are never updated or deleted.
type MessageRepository interface {
	Create(ctx context.Context, message *domain.Message) error
	// ListByListing returns a listing's messages in insertion order. A non-nil participant limits the
	// result to messages that participant sent or received.
	ListByListing(ctx context.Context, listingID uuid.UUID, participant *uuid.UUID) ([]*domain.Message, error)
}

type messageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *domain.Message) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, listing_id, sender_id, receiver_id, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, message.ID, message.ListingID, message.SenderID, message.ReceiverID, message.Body, message.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrListingNotFound
		}
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (r *messageRepository) ListByListing(ctx context.Context, listingID uuid.UUID, participant *uuid.UUID) ([]*domain.Message, error) {
	query := `
		SELECT id, listing_id, sender_id, receiver_id, message, created_at
		FROM messages
		WHERE listing_id = $1`
	args := []any{listingID}
	if participant != nil {
		query += ` AND (sender_id = $2 OR receiver_id = $2)`
		args = append(args, *participant)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []*domain.Message{}
	for rows.Next() {
		m := &domain.Message{}
		if err := rows.Scan(&m.ID, &m.ListingID, &m.SenderID, &m.ReceiverID, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}
