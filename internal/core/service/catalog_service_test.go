package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quardintel/product-catalog/internal/core/domain"
	"github.com/quardintel/product-catalog/internal/core/ports"
	"github.com/quardintel/product-catalog/internal/infrastructure/db/memory"
)

// countingStore wraps the in-memory store to count reads and inject
// version conflicts.
type countingStore struct {
	ports.CatalogStore
	finds     atomic.Int32
	lists     atomic.Int32
	conflicts atomic.Int32
}

func (s *countingStore) FindProduct(ctx context.Context, id int64) (*domain.Product, error) {
	s.finds.Add(1)
	return s.CatalogStore.FindProduct(ctx, id)
}

func (s *countingStore) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	s.lists.Add(1)
	return s.CatalogStore.ListProducts(ctx)
}

func (s *countingStore) UpdateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	if s.conflicts.Load() > 0 {
		s.conflicts.Add(-1)
		return nil, domain.ErrVersionConflict
	}
	return s.CatalogStore.UpdateProduct(ctx, p)
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.CatalogEvent
}

func (s *recordingSink) Enqueue(e domain.CatalogEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

type stubDedup struct {
	mu       sync.Mutex
	claimed  map[string]bool
	claimErr error
}

func (d *stubDedup) Claim(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.claimErr != nil {
		return false, d.claimErr
	}
	if d.claimed[key] {
		return false, nil
	}
	d.claimed[key] = true
	return true, nil
}

func (d *stubDedup) Release(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.claimed, key)
	return nil
}

func newCatalogSvc(t *testing.T, opts ...CatalogOption) (*CatalogService, *countingStore, *ProductCache) {
	t.Helper()
	store := &countingStore{CatalogStore: memory.NewCatalogStore()}
	cache := NewProductCache(0)
	return NewCatalogService(store, cache, zerolog.Nop(), opts...), store, cache
}

func lamp(qty int) ports.ProductInput {
	return ports.ProductInput{Name: "Lamp", Description: "Desk lamp", Price: 10, Quantity: qty}
}

func TestCatalogService_CreateThenRead(t *testing.T) {
	svc, _, _ := newCatalogSvc(t)
	ctx := context.Background()

	all, err := svc.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	p, err := svc.Create(ctx, lamp(3))
	require.NoError(t, err)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lamp", got.Name)

	all, err = svc.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1, "create must invalidate the cached listing")
}

func TestCatalogService_CacheHit(t *testing.T) {
	svc, store, _ := newCatalogSvc(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, lamp(3))
	require.NoError(t, err)

	_, err = svc.Get(ctx, p.ID)
	require.NoError(t, err)
	_, err = svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(1), store.finds.Load())

	_, err = svc.GetAll(ctx)
	require.NoError(t, err)
	_, err = svc.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), store.lists.Load())
}

func TestCatalogService_CachedValuesAreCopies(t *testing.T) {
	svc, _, _ := newCatalogSvc(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, lamp(3))
	require.NoError(t, err)

	first, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	first.Name = "mutated"

	second, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lamp", second.Name)
}

func TestCatalogService_NoStaleReadAfterUpdate(t *testing.T) {
	svc, _, _ := newCatalogSvc(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, lamp(3))
	require.NoError(t, err)
	_, err = svc.Get(ctx, p.ID)
	require.NoError(t, err)
	_, err = svc.GetAll(ctx)
	require.NoError(t, err)

	in := lamp(9)
	in.Name = "Lamp XL"
	_, err = svc.Update(ctx, p.ID, in)
	require.NoError(t, err)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lamp XL", got.Name)
	assert.Equal(t, 9, got.Quantity)

	all, err := svc.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Lamp XL", all[0].Name)
}

func TestCatalogService_UpdateKeepsCategoriesWhenEmpty(t *testing.T) {
	svc, _, _ := newCatalogSvc(t)
	ctx := context.Background()

	in := lamp(1)
	in.Categories = []ports.CategoryRef{{Name: "Home"}, {Name: "home"}}
	p, err := svc.Create(ctx, in)
	require.NoError(t, err)
	require.Len(t, p.Categories, 1, "duplicate category references collapse")

	updated, err := svc.Update(ctx, p.ID, lamp(2))
	require.NoError(t, err)
	require.Len(t, updated.Categories, 1)
	assert.Equal(t, "Home", updated.Categories[0].Name)

	in = lamp(2)
	in.Categories = []ports.CategoryRef{{ID: 999}}
	_, err = svc.Update(ctx, p.ID, in)
	assert.ErrorIs(t, err, domain.ErrCategoryNotFound)
}

func TestCatalogService_UpdateMissing(t *testing.T) {
	svc, _, _ := newCatalogSvc(t)
	_, err := svc.Update(context.Background(), 42, lamp(1))
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestCatalogService_FailedMutationsCreateNoCategories(t *testing.T) {
	svc, store, _ := newCatalogSvc(t)
	ctx := context.Background()

	in := lamp(1)
	in.Categories = []ports.CategoryRef{{Name: "Garden"}}
	_, err := svc.Update(ctx, 42, in)
	require.ErrorIs(t, err, domain.ErrProductNotFound)

	cats, err := store.ListCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, cats, "update of a missing product")

	_, err = svc.Create(ctx, lamp(1))
	require.NoError(t, err)
	_, err = svc.Create(ctx, in)
	require.ErrorIs(t, err, domain.ErrProductNameTaken)

	desk := ports.ProductInput{Name: "Desk", Description: "Oak desk", Price: 50, Quantity: 1}
	other, err := svc.Create(ctx, desk)
	require.NoError(t, err)
	in.Name = "Lamp"
	_, err = svc.Update(ctx, other.ID, in)
	require.ErrorIs(t, err, domain.ErrProductNameTaken)

	cats, err = svc.Categories(ctx)
	require.NoError(t, err)
	assert.Empty(t, cats, "name conflicts")
}

func TestCatalogService_Categories(t *testing.T) {
	svc, _, _ := newCatalogSvc(t)
	ctx := context.Background()

	cats, err := svc.Categories(ctx)
	require.NoError(t, err)
	assert.NotNil(t, cats)
	assert.Empty(t, cats)

	in := lamp(1)
	in.Categories = []ports.CategoryRef{{Name: "Home"}, {Name: "Office"}}
	_, err = svc.Create(ctx, in)
	require.NoError(t, err)

	cats, err = svc.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "Home", cats[0].Name)
	assert.Equal(t, "Office", cats[1].Name)
}

func TestCatalogService_UpdateKeepsOwnName(t *testing.T) {
	svc, _, _ := newCatalogSvc(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, lamp(1))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, p.ID, lamp(4))
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Quantity)
}

func TestCatalogService_Validation(t *testing.T) {
	svc, _, _ := newCatalogSvc(t)
	ctx := context.Background()

	bad := []ports.ProductInput{
		{Description: "d", Price: 1},
		{Name: "Lamp", Price: 1},
		{Name: "Lamp", Description: "d", Price: 0},
		{Name: "Lamp", Description: "d", Price: 1, Quantity: -1},
		{Name: "Lamp", Description: "d", Price: 1, Categories: []ports.CategoryRef{{}}},
	}
	for _, in := range bad {
		_, err := svc.Create(ctx, in)
		assert.ErrorIs(t, err, domain.ErrInvalidProduct, "%+v", in)
	}
}

func TestCatalogService_SellDecrementsStock(t *testing.T) {
	sink := &recordingSink{}
	svc, _, _ := newCatalogSvc(t, WithEventSink(sink))
	ctx := domain.ContextWithPrincipal(context.Background(), domain.Principal{Username: "admin", Role: domain.RoleAdmin})

	p, err := svc.Create(ctx, lamp(10))
	require.NoError(t, err)
	_, err = svc.Get(ctx, p.ID)
	require.NoError(t, err)

	sold, err := svc.Sell(ctx, p.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 6, sold.Quantity)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Quantity, "sale must invalidate the cached product")

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.events, 2)
	assert.Equal(t, domain.EventProductCreated, sink.events[0].Type)
	assert.Equal(t, domain.EventProductSold, sink.events[1].Type)
	assert.Equal(t, 4, sink.events[1].Sold)
	assert.Equal(t, "admin", sink.events[1].Actor)
}

func TestCatalogService_SellRejectsInvalidQuantities(t *testing.T) {
	svc, _, _ := newCatalogSvc(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, lamp(5))
	require.NoError(t, err)

	for _, qty := range []int{0, -1, 6} {
		_, err = svc.Sell(ctx, p.ID, qty)
		assert.ErrorIs(t, err, domain.ErrInvalidSale, "qty %d", qty)
	}

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Quantity)

	_, err = svc.Sell(ctx, 999, 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestCatalogService_SellAllStock(t *testing.T) {
	svc, _, _ := newCatalogSvc(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, lamp(5))
	require.NoError(t, err)

	sold, err := svc.Sell(ctx, p.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, sold.Quantity)
}

func TestCatalogService_ConcurrentSellsNeverOversell(t *testing.T) {
	const buyers = 50
	svc, _, _ := newCatalogSvc(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, lamp(buyers-1))
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		ok       atomic.Int32
		rejected atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Sell(ctx, p.ID, 1)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrInvalidSale):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(buyers-1), ok.Load())
	assert.Equal(t, int32(1), rejected.Load())

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)
}

func TestCatalogService_RetriesVersionConflicts(t *testing.T) {
	svc, store, _ := newCatalogSvc(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, lamp(5))
	require.NoError(t, err)

	store.conflicts.Store(2)
	sold, err := svc.Sell(ctx, p.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, sold.Quantity)

	store.conflicts.Store(maxConflictRetries + 1)
	_, err = svc.Sell(ctx, p.ID, 1)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Quantity)
}

func TestCatalogService_DeleteMissingLeavesCacheAlone(t *testing.T) {
	svc, _, cache := newCatalogSvc(t)
	ctx := context.Background()

	_, err := svc.GetAll(ctx)
	require.NoError(t, err)
	genAll := cache.Generation(allProductsKey)
	genID := cache.Generation(productKey(7))

	deleted, err := svc.Delete(ctx, 7)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, genAll, cache.Generation(allProductsKey))
	assert.Equal(t, genID, cache.Generation(productKey(7)))
	assert.Equal(t, 1, cache.Len())
}

func TestCatalogService_Delete(t *testing.T) {
	svc, _, _ := newCatalogSvc(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, lamp(1))
	require.NoError(t, err)
	_, err = svc.Get(ctx, p.ID)
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = svc.Get(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	all, err := svc.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCatalogService_SellOnce(t *testing.T) {
	dedup := &stubDedup{claimed: map[string]bool{}}
	svc, _, _ := newCatalogSvc(t, WithSaleDeduplicator(dedup))
	ctx := context.Background()

	p, err := svc.Create(ctx, lamp(10))
	require.NoError(t, err)

	first, err := svc.SellOnce(ctx, p.ID, 3, "key-1")
	require.NoError(t, err)
	assert.False(t, first.Replayed)
	assert.Equal(t, 7, first.Product.Quantity)

	replay, err := svc.SellOnce(ctx, p.ID, 3, "key-1")
	require.NoError(t, err)
	assert.True(t, replay.Replayed)
	assert.Equal(t, 7, replay.Product.Quantity)

	// a failed sale frees its key
	_, err = svc.SellOnce(ctx, p.ID, 100, "key-2")
	assert.ErrorIs(t, err, domain.ErrInvalidSale)
	assert.NotContains(t, dedup.claimed, "1:key-2")

	// no key means no deduplication
	_, err = svc.SellOnce(ctx, p.ID, 1, "")
	require.NoError(t, err)
	again, err := svc.SellOnce(ctx, p.ID, 1, "")
	require.NoError(t, err)
	assert.Equal(t, 5, again.Product.Quantity)
}

func TestCatalogService_SellOnceSellsWhenDedupFails(t *testing.T) {
	dedup := &stubDedup{claimed: map[string]bool{}, claimErr: errors.New("redis down")}
	svc, _, _ := newCatalogSvc(t, WithSaleDeduplicator(dedup))
	ctx := context.Background()

	p, err := svc.Create(ctx, lamp(2))
	require.NoError(t, err)

	res, err := svc.SellOnce(ctx, p.ID, 1, "key")
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Equal(t, 1, res.Product.Quantity)
}
