package repository

import (
	"context"
	"sync"
	"testing"

	"fishmarket/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfferRepository_AcceptConsumesQuantity(t *testing.T) {
	repo := NewOfferRepository(testDB)
	ctx := context.Background()
	seller := seedUser(t, domain.RoleSeller)
	buyer := seedUser(t, domain.RoleBuyer)
	listing := seedListing(t, seller.ID, 10, 12.5)
	offer := seedOffer(t, listing, buyer.ID, 10)

	accepted, err := repo.Transition(ctx, offer.ID, domain.OfferStatusPending, domain.OfferStatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, domain.OfferStatusAccepted, accepted.Status)
	assert.InDelta(t, 125.0, accepted.TotalValue(), 1e-9)

	reloaded, err := NewListingRepository(testDB).FindByID(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.Quantity)
	assert.Equal(t, domain.ListingStatusUnavailable, reloaded.Status)

	// A second response loses the compare-and-swap.
	_, err = repo.Transition(ctx, offer.ID, domain.OfferStatusPending, domain.OfferStatusRejected)
	assert.ErrorIs(t, err, ErrOfferStatusConflict)
}

func TestOfferRepository_InsufficientQuantityKeepsOfferPending(t *testing.T) {
	repo := NewOfferRepository(testDB)
	ctx := context.Background()
	seller := seedUser(t, domain.RoleSeller)
	first := seedUser(t, domain.RoleBuyer)
	second := seedUser(t, domain.RoleBuyer)
	listing := seedListing(t, seller.ID, 6, 4)
	a := seedOffer(t, listing, first.ID, 4)
	b := seedOffer(t, listing, second.ID, 4)

	_, err := repo.Transition(ctx, a.ID, domain.OfferStatusPending, domain.OfferStatusAccepted)
	require.NoError(t, err)

	_, err = repo.Transition(ctx, b.ID, domain.OfferStatusPending, domain.OfferStatusAccepted)
	assert.ErrorIs(t, err, ErrInsufficientQuantity)

	stillPending, err := repo.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OfferStatusPending, stillPending.Status)
}

func TestOfferRepository_ConcurrentResponsesApplyOnce(t *testing.T) {
	repo := NewOfferRepository(testDB)
	ctx := context.Background()
	seller := seedUser(t, domain.RoleSeller)
	buyer := seedUser(t, domain.RoleBuyer)
	listing := seedListing(t, seller.ID, 50, 1)
	offer := seedOffer(t, listing, buyer.ID, 5)

	targets := []domain.OfferStatus{domain.OfferStatusAccepted, domain.OfferStatusRejected}
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(to domain.OfferStatus) {
			defer wg.Done()
			_, err := repo.Transition(ctx, offer.ID, domain.OfferStatusPending, to)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case err == ErrOfferStatusConflict:
				conflicts++
			}
		}(targets[i%2])
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 9, conflicts)
}

func TestOfferRepository_ListAndNotFound(t *testing.T) {
	repo := NewOfferRepository(testDB)
	ctx := context.Background()
	seller := seedUser(t, domain.RoleSeller)
	buyer := seedUser(t, domain.RoleBuyer)
	listing := seedListing(t, seller.ID, 20, 2)
	seedOffer(t, listing, buyer.ID, 1)
	seedOffer(t, listing, buyer.ID, 2)

	mine, err := repo.List(ctx, domain.OfferFilter{BuyerID: &buyer.ID})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	received, err := repo.List(ctx, domain.OfferFilter{SellerID: &seller.ID, Status: domain.OfferStatusPending})
	require.NoError(t, err)
	assert.Len(t, received, 2)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrOfferNotFound)
	_, err = repo.Transition(ctx, uuid.New(), domain.OfferStatusPending, domain.OfferStatusRejected)
	assert.ErrorIs(t, err, ErrOfferNotFound)
}
