package service

import (
	"context"

	"fishmarket/internal/domain"
	"fishmarket/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// StatsUnavailableNotice is shown instead of failing the dashboard.
const StatsUnavailableNotice = "statistics are temporarily unavailable; showing defaults"

// StatsService computes dashboards from current rows on every call. Nothing is cached.
type StatsService interface {
	Dashboard(ctx context.Context, actor domain.Actor) *domain.Dashboard
}

type statsService struct {
	users    repository.UserRepository
	listings repository.ListingRepository
	offers   repository.OfferRepository
	orders   repository.OrderRepository
	logger   *zap.Logger
}

func NewStatsService(
	users repository.UserRepository,
	listings repository.ListingRepository,
	offers repository.OfferRepository,
	orders repository.OrderRepository,
	logger *zap.Logger,
) StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &statsService{users: users, listings: listings, offers: offers, orders: orders, logger: logger}
}

// Dashboard never fails. A failed read yields zero figures plus a Notice.
func (s *statsService) Dashboard(ctx context.Context, actor domain.Actor) *domain.Dashboard {
	dashboard := &domain.Dashboard{Role: actor.Role}

	var err error
	switch actor.Role {
	case domain.RoleSeller:
		var stats domain.SellerStatistics
		stats, err = s.seller(ctx, actor)
		dashboard.Seller = &stats
	case domain.RoleBuyer:
		var stats domain.BuyerStatistics
		stats, err = s.buyer(ctx, actor)
		dashboard.Buyer = &stats
	case domain.RoleAdmin:
		var stats domain.AdminStatistics
		stats, err = s.admin(ctx)
		dashboard.Admin = &stats
	}

	if err != nil {
		s.logger.Warn("Dashboard statistics unavailable",
			zap.String("user_id", actor.UserID.String()),
			zap.String("role", string(actor.Role)),
			zap.Error(err),
		)
		dashboard.Notice = StatsUnavailableNotice
	}
	return dashboard
}

func (s *statsService) seller(ctx context.Context, actor domain.Actor) (domain.SellerStatistics, error) {
	var (
		listingCount int
		offers       []*domain.Offer
		orders       []*domain.Order
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		listingCount, err = s.listings.Count(gctx, &actor.UserID)
		return err
	})
	g.Go(func() (err error) {
		offers, err = s.offers.List(gctx, domain.OfferFilter{SellerID: &actor.UserID})
		return err
	})
	g.Go(func() (err error) {
		orders, err = s.orders.ListBySeller(gctx, actor.UserID)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.SellerStatistics{}, err
	}
	return domain.BuildSellerStatistics(actor.UserID, listingCount, offers, orders), nil
}

func (s *statsService) buyer(ctx context.Context, actor domain.Actor) (domain.BuyerStatistics, error) {
	var (
		offers []*domain.Offer
		orders []*domain.Order
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		offers, err = s.offers.List(gctx, domain.OfferFilter{BuyerID: &actor.UserID})
		return err
	})
	g.Go(func() (err error) {
		orders, err = s.orders.ListByBuyer(gctx, actor.UserID)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.BuyerStatistics{}, err
	}
	return domain.BuildBuyerStatistics(offers, orders), nil
}

func (s *statsService) admin(ctx context.Context) (domain.AdminStatistics, error) {
	var (
		usersByRole  map[domain.Role]int
		listingCount int
		orderCount   int
		offers       []*domain.Offer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		usersByRole, err = s.users.CountByRole(gctx)
		return err
	})
	g.Go(func() (err error) {
		listingCount, err = s.listings.Count(gctx, nil)
		return err
	})
	g.Go(func() (err error) {
		orderCount, err = s.orders.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		offers, err = s.offers.List(gctx, domain.OfferFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.BuildAdminStatistics(nil, 0, 0, nil), err
	}
	return domain.BuildAdminStatistics(usersByRole, listingCount, orderCount, offers), nil
}
