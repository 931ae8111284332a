package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"fishmarket/internal/domain"
	"fishmarket/internal/repository"

	"github.com/google/uuid"
)

// Mock repositories for testing. Each is map-backed and safe for concurrent use; fail, when set,
// is returned from every call to simulate a backend outage.

type mockUserRepository struct {
	mu    sync.Mutex
	users map[string]*domain.User
	fail  error
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[string]*domain.User)}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	key := strings.ToLower(user.Email)
	if _, exists := m.users[key]; exists {
		return repository.ErrUserAlreadyExists
	}
	m.users[key] = user
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	user, exists := m.users[strings.ToLower(email)]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) List(ctx context.Context, role domain.Role, search string) ([]*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	users := []*domain.User{}
	for _, user := range m.users {
		if role != "" && user.Role != role {
			continue
		}
		if search != "" && !strings.Contains(user.Email, search) && !strings.Contains(user.PhoneNumber, search) {
			continue
		}
		users = append(users, user)
	}
	return users, nil
}

func (m *mockUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	for key, user := range m.users {
		if user.ID == id {
			delete(m.users, key)
			return nil
		}
	}
	return repository.ErrUserNotFound
}

func (m *mockUserRepository) CountByRole(ctx context.Context) (map[domain.Role]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	counts := make(map[domain.Role]int)
	for _, user := range m.users {
		counts[user.Role]++
	}
	return counts, nil
}

type mockRefreshTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*domain.RefreshToken
}

func newMockRefreshTokenRepository() *mockRefreshTokenRepository {
	return &mockRefreshTokenRepository{tokens: make(map[string]*domain.RefreshToken)}
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.Token] = token
	return nil
}

func (m *mockRefreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	refreshToken, exists := m.tokens[token]
	if !exists {
		return nil, repository.ErrRefreshTokenNotFound
	}
	if refreshToken.Revoked {
		return nil, repository.ErrRefreshTokenRevoked
	}
	return refreshToken, nil
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	refreshToken, exists := m.tokens[token]
	if !exists {
		return repository.ErrRefreshTokenNotFound
	}
	refreshToken.Revoked = true
	return nil
}

func (m *mockRefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, token := range m.tokens {
		if token.UserID == userID {
			token.Revoked = true
		}
	}
	return nil
}

func (m *mockRefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for key, token := range m.tokens {
		if token.ExpiresAt.Before(before) {
			delete(m.tokens, key)
			removed++
		}
	}
	return removed, nil
}

type mockListingRepository struct {
	mu       sync.Mutex
	listings map[uuid.UUID]*domain.Listing
	inUse    map[uuid.UUID]bool
	fail     error
}

func newMockListingRepository() *mockListingRepository {
	return &mockListingRepository{
		listings: make(map[uuid.UUID]*domain.Listing),
		inUse:    make(map[uuid.UUID]bool),
	}
}

func (m *mockListingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	copied := *listing
	m.listings[listing.ID] = &copied
	return nil
}

func (m *mockListingRepository) Update(ctx context.Context, listing *domain.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.listings[listing.ID]; !ok {
		return repository.ErrListingNotFound
	}
	copied := *listing
	m.listings[listing.ID] = &copied
	return nil
}

func (m *mockListingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.listings[id]; !ok {
		return repository.ErrListingNotFound
	}
	if m.inUse[id] {
		return repository.ErrListingInUse
	}
	delete(m.listings, id)
	return nil
}

func (m *mockListingRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	listing, ok := m.listings[id]
	if !ok {
		return nil, repository.ErrListingNotFound
	}
	copied := *listing
	return &copied, nil
}

func (m *mockListingRepository) List(ctx context.Context, filter domain.ListingFilter) ([]*domain.Listing, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, 0, m.fail
	}
	listings := []*domain.Listing{}
	for _, listing := range m.listings {
		if filter.SellerID != nil && listing.SellerID != *filter.SellerID {
			continue
		}
		if filter.Status != "" && listing.Status != filter.Status {
			continue
		}
		if filter.Category != "" && listing.Category != filter.Category {
			continue
		}
		copied := *listing
		listings = append(listings, &copied)
	}
	return listings, len(listings), nil
}

func (m *mockListingRepository) SetStatus(ctx context.Context, id uuid.UUID, status domain.ListingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	listing, ok := m.listings[id]
	if !ok {
		return repository.ErrListingNotFound
	}
	listing.Status = status
	return nil
}

func (m *mockListingRepository) SetVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	listing, ok := m.listings[id]
	if !ok {
		return repository.ErrListingNotFound
	}
	listing.Verified = verified
	return nil
}

func (m *mockListingRepository) Count(ctx context.Context, sellerID *uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return 0, m.fail
	}
	count := 0
	for _, listing := range m.listings {
		if sellerID == nil || listing.SellerID == *sellerID {
			count++
		}
	}
	return count, nil
}

// decrement mirrors the guarded stock update of the postgres repository.
func (m *mockListingRepository) decrement(id uuid.UUID, n int) (*domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	listing, ok := m.listings[id]
	if !ok {
		return nil, repository.ErrListingNotFound
	}
	if listing.Status != domain.ListingStatusAvailable || listing.Quantity < n {
		return nil, repository.ErrInsufficientQuantity
	}
	listing.Quantity -= n
	listing.Status = domain.StatusForQuantity(listing.Quantity)
	m.inUse[id] = true
	copied := *listing
	return &copied, nil
}

func (m *mockListingRepository) quantity(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listings[id].Quantity
}

type mockOfferRepository struct {
	mu       sync.Mutex
	offers   map[uuid.UUID]*domain.Offer
	listings *mockListingRepository
	fail     error
}

func newMockOfferRepository(listings *mockListingRepository) *mockOfferRepository {
	return &mockOfferRepository{offers: make(map[uuid.UUID]*domain.Offer), listings: listings}
}

func (m *mockOfferRepository) Create(ctx context.Context, offer *domain.Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	copied := *offer
	m.offers[offer.ID] = &copied
	m.listings.mu.Lock()
	m.listings.inUse[offer.ListingID] = true
	m.listings.mu.Unlock()
	return nil
}

func (m *mockOfferRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	offer, ok := m.offers[id]
	if !ok {
		return nil, repository.ErrOfferNotFound
	}
	copied := *offer
	return &copied, nil
}

func (m *mockOfferRepository) List(ctx context.Context, filter domain.OfferFilter) ([]*domain.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	offers := []*domain.Offer{}
	for _, offer := range m.offers {
		if filter.BuyerID != nil && offer.BuyerID != *filter.BuyerID {
			continue
		}
		if filter.SellerID != nil && offer.SellerID != *filter.SellerID {
			continue
		}
		if filter.Status != "" && offer.Status != filter.Status {
			continue
		}
		copied := *offer
		offers = append(offers, &copied)
	}
	sort.Slice(offers, func(i, j int) bool { return offers[i].CreatedAt.Before(offers[j].CreatedAt) })
	return offers, nil
}

func (m *mockOfferRepository) Transition(ctx context.Context, id uuid.UUID, from, to domain.OfferStatus) (*domain.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	offer, ok := m.offers[id]
	if !ok {
		return nil, repository.ErrOfferNotFound
	}
	if offer.Status != from {
		return nil, repository.ErrOfferStatusConflict
	}
	if to == domain.OfferStatusAccepted {
		if _, err := m.listings.decrement(offer.ListingID, offer.Quantity); err != nil {
			return nil, err
		}
	}
	offer.Status = to
	copied := *offer
	return &copied, nil
}

type mockOrderRepository struct {
	mu       sync.Mutex
	orders   map[uuid.UUID]*domain.Order
	listings *mockListingRepository
	fail     error
}

func newMockOrderRepository(listings *mockListingRepository) *mockOrderRepository {
	return &mockOrderRepository{orders: make(map[uuid.UUID]*domain.Order), listings: listings}
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	for i, item := range order.Items {
		listing, err := m.listings.decrement(item.ListingID, item.Quantity)
		if err != nil {
			return err
		}
		order.Items[i].SellerID = listing.SellerID
		order.Items[i].UnitPrice = listing.UnitPrice
	}
	copied := *order
	copied.Items = append([]domain.OrderItem(nil), order.Items...)
	m.orders[order.ID] = &copied
	return nil
}

func (m *mockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	copied := *order
	return &copied, nil
}

func (m *mockOrderRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.Order, error) {
	return m.filter(func(o *domain.Order) bool { return o.BuyerID == buyerID })
}

func (m *mockOrderRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Order, error) {
	return m.filter(func(o *domain.Order) bool { return o.HasSeller(sellerID) })
}

func (m *mockOrderRepository) filter(keep func(*domain.Order) bool) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	orders := []*domain.Order{}
	for _, order := range m.orders {
		if keep(order) {
			copied := *order
			orders = append(orders, &copied)
		}
	}
	return orders, nil
}

func (m *mockOrderRepository) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return 0, m.fail
	}
	return len(m.orders), nil
}

func (m *mockOrderRepository) Advance(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	if order.Status != from {
		return nil, repository.ErrOrderStatusConflict
	}
	order.Status = to
	copied := *order
	return &copied, nil
}

// setStatus forces an order into a status for test setup.
func (m *mockOrderRepository) setStatus(id uuid.UUID, status domain.OrderStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[id].Status = status
}

type mockMessageRepository struct {
	mu       sync.Mutex
	messages []*domain.Message
	fail     error
}

func (m *mockMessageRepository) Create(ctx context.Context, message *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.messages = append(m.messages, message)
	return nil
}

func (m *mockMessageRepository) ListByListing(ctx context.Context, listingID uuid.UUID, participant *uuid.UUID) ([]*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	messages := []*domain.Message{}
	for _, msg := range m.messages {
		if msg.ListingID != listingID {
			continue
		}
		if participant != nil && !msg.Involves(*participant) {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

type mockReviewRepository struct {
	mu      sync.Mutex
	reviews []*domain.Review
}

func (m *mockReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.reviews {
		if existing.OrderID == review.OrderID && existing.ListingID == review.ListingID {
			return repository.ErrReviewAlreadyExists
		}
	}
	m.reviews = append(m.reviews, review)
	return nil
}

func (m *mockReviewRepository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reviews := []*domain.Review{}
	for _, review := range m.reviews {
		if review.SellerID == sellerID {
			reviews = append(reviews, review)
		}
	}
	return reviews, nil
}

func (m *mockReviewRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reviews := []*domain.Review{}
	for _, review := range m.reviews {
		if review.BuyerID == buyerID {
			reviews = append(reviews, review)
		}
	}
	return reviews, nil
}

type mockReportRepository struct {
	mu      sync.Mutex
	reports []*domain.PurchaseReport
}

func (m *mockReportRepository) Create(ctx context.Context, report *domain.PurchaseReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, report)
	return nil
}

func (m *mockReportRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.PurchaseReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reports := []*domain.PurchaseReport{}
	for _, report := range m.reports {
		if report.BuyerID == buyerID {
			reports = append(reports, report)
		}
	}
	return reports, nil
}

func (m *mockReportRepository) ListAll(ctx context.Context) ([]*domain.PurchaseReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.PurchaseReport{}, m.reports...), nil
}

// marketplace wires the mocks together the way the repositories share one database.
type marketplace struct {
	users    *mockUserRepository
	tokens   *mockRefreshTokenRepository
	listings *mockListingRepository
	offers   *mockOfferRepository
	orders   *mockOrderRepository
	messages *mockMessageRepository
	reviews  *mockReviewRepository
	reports  *mockReportRepository
}

func newMarketplace() *marketplace {
	listings := newMockListingRepository()
	return &marketplace{
		users:    newMockUserRepository(),
		tokens:   newMockRefreshTokenRepository(),
		listings: listings,
		offers:   newMockOfferRepository(listings),
		orders:   newMockOrderRepository(listings),
		messages: &mockMessageRepository{},
		reviews:  &mockReviewRepository{},
		reports:  &mockReportRepository{},
	}
}

func seller() domain.Actor { return domain.Actor{UserID: uuid.New(), Role: domain.RoleSeller} }
func buyer() domain.Actor  { return domain.Actor{UserID: uuid.New(), Role: domain.RoleBuyer} }
func admin() domain.Actor  { return domain.Actor{UserID: uuid.New(), Role: domain.RoleAdmin} }

// addListing stores an available listing owned by owner.
func (m *marketplace) addListing(owner domain.Actor, quantity int, unitPrice float64) *domain.Listing {
	listing := &domain.Listing{
		ID:        uuid.New(),
		SellerID:  owner.UserID,
		Category:  "tuna",
		Title:     "Yellowfin tuna",
		Quality:   "A",
		Location:  "Dock 4",
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Status:    domain.StatusForQuantity(quantity),
	}
	_ = m.listings.Create(context.Background(), listing)
	return listing
}
