package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"fishmarket/internal/domain"
	"fishmarket/internal/middleware"
	"fishmarket/internal/realtime"
	"fishmarket/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Stubs embed the service interface; calling a method a test did not set up panics.

type stubUserService struct {
	service.UserService
	registered []service.RegisterInput
	login      func(email, password string) (string, string, *domain.User, error)
	byID       func(id uuid.UUID) (*domain.User, error)
}

func (s *stubUserService) GetUserByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	return s.byID(id)
}

func (s *stubUserService) Register(_ context.Context, in service.RegisterInput) (*domain.User, error) {
	s.registered = append(s.registered, in)
	return &domain.User{ID: uuid.New(), Email: in.Email, Role: in.Role}, nil
}

func (s *stubUserService) Login(_ context.Context, email, password string) (string, string, *domain.User, error) {
	return s.login(email, password)
}

type stubOfferService struct {
	service.OfferService
	create  func(actor domain.Actor, in domain.OfferInput) (*domain.Offer, error)
	respond func(actor domain.Actor, id uuid.UUID, decision domain.OfferDecision) (*domain.Offer, error)
	calls   int
}

func (s *stubOfferService) Create(_ context.Context, actor domain.Actor, in domain.OfferInput) (*domain.Offer, error) {
	s.calls++
	return s.create(actor, in)
}

func (s *stubOfferService) Respond(_ context.Context, actor domain.Actor, id uuid.UUID, decision domain.OfferDecision) (*domain.Offer, error) {
	s.calls++
	return s.respond(actor, id, decision)
}

type stubOrderService struct {
	service.OrderService
	place   func(actor domain.Actor, in domain.PlaceOrderInput) (*domain.Order, error)
	advance func(actor domain.Actor, id uuid.UUID, next domain.OrderStatus) (*domain.Order, error)
}

func (s *stubOrderService) Place(_ context.Context, actor domain.Actor, in domain.PlaceOrderInput) (*domain.Order, error) {
	return s.place(actor, in)
}

func (s *stubOrderService) Advance(_ context.Context, actor domain.Actor, id uuid.UUID, next domain.OrderStatus) (*domain.Order, error) {
	return s.advance(actor, id, next)
}

type stubMessageService struct {
	service.MessageService
	broker     realtime.Broker
	subscribed chan realtime.Subscription
}

func (s *stubMessageService) Subscribe(ctx context.Context, _ domain.Actor, listingID uuid.UUID) (realtime.Subscription, error) {
	sub, err := s.broker.Subscribe(ctx, listingID)
	if err != nil {
		return nil, err
	}
	s.subscribed <- sub
	return sub, nil
}

type stubStatsService struct {
	dashboard *domain.Dashboard
}

func (s *stubStatsService) Dashboard(context.Context, domain.Actor) *domain.Dashboard {
	return s.dashboard
}

// actorHeader lets tests pick the caller without minting tokens.
const actorHeader = "X-Test-Actor"

func testRouter(register func(r chi.Router)) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if raw := req.Header.Get(actorHeader); raw != "" {
				var actor struct {
					UserID uuid.UUID   `json:"user_id"`
					Role   domain.Role `json:"role"`
				}
				_ = json.Unmarshal([]byte(raw), &actor)
				req = req.WithContext(middleware.WithActor(req.Context(), domain.Actor{UserID: actor.UserID, Role: actor.Role}))
			}
			next.ServeHTTP(w, req)
		})
	})
	register(r)
	return r
}

func call(t *testing.T, h http.Handler, method, path string, actor *domain.Actor, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req.Header.Set(actorHeader, actorJSON(*actor))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func actorJSON(actor domain.Actor) string {
	raw, _ := json.Marshal(map[string]any{"user_id": actor.UserID, "role": actor.Role})
	return string(raw)
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Error.Code
}

func buyerActor() *domain.Actor  { return &domain.Actor{UserID: uuid.New(), Role: domain.RoleBuyer} }
func sellerActor() *domain.Actor { return &domain.Actor{UserID: uuid.New(), Role: domain.RoleSeller} }

type stubReviewService struct {
	service.ReviewService
	create    func(actor domain.Actor, in service.ReviewInput) (*domain.Review, error)
	forSeller func(sellerID uuid.UUID) (*service.SellerReviews, error)
}

func (s *stubReviewService) Create(_ context.Context, actor domain.Actor, in service.ReviewInput) (*domain.Review, error) {
	return s.create(actor, in)
}

func (s *stubReviewService) ListForSeller(_ context.Context, sellerID uuid.UUID) (*service.SellerReviews, error) {
	return s.forSeller(sellerID)
}

type stubReportService struct {
	service.ReportService
	generate func(actor domain.Actor) (*domain.PurchaseReport, error)
}

func (s *stubReportService) Generate(_ context.Context, actor domain.Actor) (*domain.PurchaseReport, error) {
	return s.generate(actor)
}
