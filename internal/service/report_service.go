package service

import (
	"context"
	"time"

	"fishmarket/internal/apperror"
	"fishmarket/internal/domain"
	"fishmarket/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReportService snapshots buyer purchase history into stored reports
type ReportService interface {
	Generate(ctx context.Context, actor domain.Actor) (*domain.PurchaseReport, error)
	ListMine(ctx context.Context, actor domain.Actor) ([]*domain.PurchaseReport, error)
	ListAll(ctx context.Context, actor domain.Actor) ([]*domain.PurchaseReport, error)
}

type reportService struct {
	reports repository.ReportRepository
	offers  repository.OfferRepository
	orders  repository.OrderRepository
	logger  *zap.Logger
	now     func() time.Time
}

func NewReportService(
	reports repository.ReportRepository,
	offers repository.OfferRepository,
	orders repository.OrderRepository,
	logger *zap.Logger,
) ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &reportService{reports: reports, offers: offers, orders: orders, logger: logger, now: time.Now}
}

func (s *reportService) Generate(ctx context.Context, actor domain.Actor) (*domain.PurchaseReport, error) {
	if actor.Role != domain.RoleBuyer {
		return nil, apperror.New(apperror.CodeUnauthorized, "only buyers can generate purchase reports")
	}

	offers, err := s.offers.List(ctx, domain.OfferFilter{BuyerID: &actor.UserID, Status: domain.OfferStatusAccepted})
	if err != nil {
		return nil, translate(err, "failed to load offers")
	}
	orders, err := s.orders.ListByBuyer(ctx, actor.UserID)
	if err != nil {
		return nil, translate(err, "failed to load orders")
	}

	report := &domain.PurchaseReport{
		ID:        uuid.New(),
		BuyerID:   actor.UserID,
		Data:      domain.BuildPurchaseReportData(offers, orders),
		CreatedAt: s.now().UTC(),
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, translate(err, "failed to store report")
	}

	s.logger.Info("Purchase report generated",
		zap.String("report_id", report.ID.String()),
		zap.Int("lines", len(report.Data.Lines)),
	)
	return report, nil
}

func (s *reportService) ListMine(ctx context.Context, actor domain.Actor) ([]*domain.PurchaseReport, error) {
	reports, err := s.reports.ListByBuyer(ctx, actor.UserID)
	if err != nil {
		return nil, translate(err, "failed to list reports")
	}
	return reports, nil
}

func (s *reportService) ListAll(ctx context.Context, actor domain.Actor) ([]*domain.PurchaseReport, error) {
	if !actor.IsAdmin() {
		return nil, apperror.New(apperror.CodeUnauthorized, "admin role required")
	}
	reports, err := s.reports.ListAll(ctx)
	if err != nil {
		return nil, translate(err, "failed to list reports")
	}
	return reports, nil
}
