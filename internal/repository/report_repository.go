package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"fishmarket/internal/domain"

	"github.com/google/uuid"
)

// ReportRepository stores purchase report snapshots as jsonb
type ReportRepository interface {
	Create(ctx context.Context, report *domain.PurchaseReport) error
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.PurchaseReport, error)
	ListAll(ctx context.Context) ([]*domain.PurchaseReport, error)
}

type reportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) Create(ctx context.Context, report *domain.PurchaseReport) error {
	data, err := json.Marshal(report.Data)
	if err != nil {
		return fmt.Errorf("failed to encode report data: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO purchase_reports (id, buyer_id, report_data, created_at)
		VALUES ($1, $2, $3, $4)
	`, report.ID, report.BuyerID, data, report.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create purchase report: %w", err)
	}
	return nil
}

func (r *reportRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.PurchaseReport, error) {
	return r.list(ctx, `WHERE buyer_id = $1`, buyerID)
}

func (r *reportRepository) ListAll(ctx context.Context) ([]*domain.PurchaseReport, error) {
	return r.list(ctx, ``)
}

func (r *reportRepository) list(ctx context.Context, where string, args ...any) ([]*domain.PurchaseReport, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, buyer_id, report_data, created_at FROM purchase_reports `+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchase reports: %w", err)
	}
	defer rows.Close()

	reports := []*domain.PurchaseReport{}
	for rows.Next() {
		var (
			report domain.PurchaseReport
			raw    []byte
		)
		if err := rows.Scan(&report.ID, &report.BuyerID, &raw, &report.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan purchase report: %w", err)
		}
		if err := json.Unmarshal(raw, &report.Data); err != nil {
			return nil, fmt.Errorf("failed to decode report data: %w", err)
		}
		reports = append(reports, &report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating purchase reports: %w", err)
	}
	return reports, nil
}
