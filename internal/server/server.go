package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"fishmarket/internal/config"
	"fishmarket/internal/database"
	"fishmarket/internal/events"
	"fishmarket/internal/metrics"
	custommiddleware "fishmarket/internal/middleware"
	"fishmarket/internal/realtime"
	"fishmarket/internal/repository"
	"fishmarket/internal/service"
	"fishmarket/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Dependencies are the connections opened by main. Redis may be nil, which disables rate limiting.
type Dependencies struct {
	DB        *sql.DB
	Redis     *redis.Client
	Broker    realtime.Broker
	Publisher events.Publisher
	Registry  *prometheus.Registry
}

type Server struct {
	*http.Server
	config  *config.Config
	logger  *zap.Logger
	deps    Dependencies
	users   service.UserService
	emitter *events.Emitter
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Dependencies) *Server {
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	if deps.Broker == nil {
		deps.Broker = realtime.NewMemoryBroker()
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NoopPublisher{}
	}

	lifecycle := metrics.NewLifecycle(deps.Registry)
	emitter := events.NewEmitter(deps.Publisher, lifecycle, logger.Named("events"))

	// Initialize repositories
	db := deps.DB
	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	listingRepo := repository.NewListingRepository(db)
	offerRepo := repository.NewOfferRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	reportRepo := repository.NewReportRepository(db)

	// Initialize services
	userService := service.NewUserService(userRepo, refreshTokenRepo, cfg.JWT, logger.Named("users"))
	listingService := service.NewListingService(listingRepo, logger.Named("listings"))
	offerService := service.NewOfferService(offerRepo, listingRepo, lifecycle, emitter, logger.Named("offers"))
	orderService := service.NewOrderService(orderRepo, listingRepo, lifecycle, emitter, logger.Named("orders"))
	messageService := service.NewMessageService(messageRepo, listingRepo, deps.Broker, lifecycle, logger.Named("messages"))
	statsService := service.NewStatsService(userRepo, listingRepo, offerRepo, orderRepo, logger.Named("stats"))
	reviewService := service.NewReviewService(reviewRepo, orderRepo, logger.Named("reviews"))
	reportService := service.NewReportService(reportRepo, offerRepo, orderRepo, logger.Named("reports"))

	// Initialize handlers
	userHandler := transport.NewUserHandler(userService, logger)
	listingHandler := transport.NewListingHandler(listingService, logger)
	offerHandler := transport.NewOfferHandler(offerService, logger)
	orderHandler := transport.NewOrderHandler(orderService, logger)
	messageHandler := transport.NewMessageHandler(messageService, logger)
	reviewHandler := transport.NewReviewHandler(reviewService, logger)
	dashboardHandler := transport.NewDashboardHandler(statsService, logger)
	reportHandler := transport.NewReportHandler(reportService, logger)

	router := chi.NewRouter()
	router.Use(custommiddleware.DefaultMiddlewareStack(logger)...)
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.Server.IsDevelopment()))
	router.Use(custommiddleware.MetricsMiddleware(metrics.NewHTTP(deps.Registry)))

	router.Get("/health", healthHandler(deps))
	router.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Registry))

	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	publicLimit := rateLimiter(deps.Redis, cfg.RateLimit, "rate_limit:public", logger)
	callerLimit := rateLimiter(deps.Redis, cfg.RateLimit, "rate_limit:api", logger)

	router.Group(func(r chi.Router) {
		r.Use(publicLimit)
		userHandler.RegisterRoutes(r, authMiddleware)
	})

	router.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(callerLimit)

		listingHandler.RegisterRoutes(r, messageHandler.RegisterRoutes)
		offerHandler.RegisterRoutes(r)
		orderHandler.RegisterRoutes(r)
		reviewHandler.RegisterRoutes(r)
		dashboardHandler.RegisterRoutes(r)
		reportHandler.RegisterRoutes(r)

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(custommiddleware.RequireAdmin(logger))
			userHandler.RegisterAdminRoutes(r)
			listingHandler.RegisterAdminRoutes(r)
			offerHandler.RegisterAdminRoutes(r)
			reportHandler.RegisterAdminRoutes(r)
			dashboardHandler.RegisterAdminRoutes(r)
		})
	})

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config:  cfg,
		logger:  logger,
		deps:    deps,
		users:   userService,
		emitter: emitter,
	}

	return server
}

// Bootstrap seeds the configured administrator. Admins cannot self-register.
func (s *Server) Bootstrap(ctx context.Context) error {
	if s.config.Admin.Email == "" {
		s.logger.Warn("No ADMIN_EMAIL configured; skipping administrator seed")
		return nil
	}
	return s.users.EnsureAdmin(ctx, s.config.Admin.Email, s.config.Admin.Password)
}

// PruneSessions removes expired refresh tokens.
func (s *Server) PruneSessions(ctx context.Context) (int64, error) {
	return s.users.PruneSessions(ctx)
}

func rateLimiter(client *redis.Client, cfg config.RateLimitConfig, prefix string, logger *zap.Logger) func(http.Handler) http.Handler {
	if client == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return custommiddleware.RateLimitMiddleware(client, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.Requests,
		Window:            cfg.Window,
		KeyPrefix:         prefix,
	}, logger)
}

func healthHandler(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]any{"status": "ok"}

		dbHealth := database.Health(r.Context(), deps.DB)
		body["database"] = dbHealth
		if dbHealth["status"] != "up" {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		} else if state, err := database.MigrationStatus(r.Context(), deps.DB); err != nil {
			body["migrations"] = map[string]string{"error": err.Error()}
			body["status"] = "degraded"
		} else {
			body["migrations"] = map[string]any{"current": state.Current, "latest": state.Latest, "pending": state.Pending()}
			if state.Pending() {
				body["status"] = "degraded"
			}
		}

		if deps.Redis != nil {
			ctx, cancel := context.WithTimeout(r.Context(), time.Second)
			defer cancel()
			if err := deps.Redis.Ping(ctx).Err(); err != nil {
				body["redis"] = map[string]string{"status": "down", "error": err.Error()}
				body["status"] = "degraded"
			} else {
				body["redis"] = map[string]string{"status": "up"}
			}
		}

		custommiddleware.RespondWithJSON(w, status, body)
	}
}

// Close releases everything the server was handed, in reverse dependency order.
func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if err := s.deps.Broker.Close(); err != nil {
		s.logger.Error("Failed to close realtime broker", zap.Error(err))
	}
	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := s.emitter.Close(drainCtx); err != nil {
		s.logger.Error("Lifecycle events still queued at shutdown", zap.Error(err))
	}
	cancel()
	if err := s.deps.Publisher.Close(); err != nil {
		s.logger.Error("Failed to close event publisher", zap.Error(err))
	}
	if s.deps.Redis != nil {
		if err := s.deps.Redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}
	if s.deps.DB != nil {
		if err := s.deps.DB.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	_ = s.logger.Sync()
	return nil
}
