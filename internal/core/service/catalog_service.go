package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/quardintel/product-catalog/internal/core/domain"
	"github.com/quardintel/product-catalog/internal/core/ports"
	"github.com/quardintel/product-catalog/internal/metrics"
)

const (
	maxConflictRetries  = 5
	conflictBackoffBase = 5 * time.Millisecond
)

// SaleDeduplicator abstracts the idempotency store (Redis) used for sales.
type SaleDeduplicator interface {
	// Claim reports true when key was not seen before and is now reserved.
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// CatalogOption configures optional collaborators of CatalogService.
type CatalogOption func(*CatalogService)

// WithEventSink publishes a CatalogEvent after every committed mutation.
func WithEventSink(sink ports.EventSink) CatalogOption {
	return func(s *CatalogService) { s.events = sink }
}

// WithSaleDeduplicator enables idempotency keys on SellOnce.
func WithSaleDeduplicator(d SaleDeduplicator) CatalogOption {
	return func(s *CatalogService) { s.dedup = d }
}

// CatalogService owns the read cache and every product mutation. Mutations
// follow the same sequence: validate, apply to the store, invalidate the
// affected cache keys, return.
type CatalogService struct {
	store  ports.CatalogStore
	cache  *ProductCache
	locks  *stripedLock
	events ports.EventSink
	dedup  SaleDeduplicator
	logger zerolog.Logger
}

func NewCatalogService(store ports.CatalogStore, cache *ProductCache, logger zerolog.Logger, opts ...CatalogOption) *CatalogService {
	if cache == nil {
		cache = NewProductCache(0)
	}
	s := &CatalogService{
		store:  store,
		cache:  cache,
		locks:  newStripedLock(defaultLockStripes),
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get serves a product from the cache, populating it from the store on a miss.
func (s *CatalogService) Get(ctx context.Context, id int64) (*domain.Product, error) {
	key := productKey(id)
	if e, ok := s.cache.Get(key); ok {
		metrics.CacheLookupsTotal.WithLabelValues("product", "hit").Inc()
		return e.Product.Clone(), nil
	}
	metrics.CacheLookupsTotal.WithLabelValues("product", "miss").Inc()

	gen := s.cache.Generation(key)
	p, err := s.store.FindProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Fill(key, gen, CacheEntry{Product: p.Clone()})
	return p, nil
}

// GetAll serves the full listing under the "all" key.
func (s *CatalogService) GetAll(ctx context.Context) ([]*domain.Product, error) {
	if e, ok := s.cache.Get(allProductsKey); ok {
		metrics.CacheLookupsTotal.WithLabelValues("all", "hit").Inc()
		return domain.CloneProducts(e.Products), nil
	}
	metrics.CacheLookupsTotal.WithLabelValues("all", "miss").Inc()

	gen := s.cache.Generation(allProductsKey)
	ps, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	if ps == nil {
		ps = []*domain.Product{}
	}
	s.cache.Fill(allProductsKey, gen, CacheEntry{Products: domain.CloneProducts(ps)})
	return ps, nil
}

// Create persists a new product. A new product cannot have a single-item
// entry yet, so only the listing is invalidated.
func (s *CatalogService) Create(ctx context.Context, input ports.ProductInput) (*domain.Product, error) {
	ctx = context.WithoutCancel(ctx)
	if err := validateProductInput(input); err != nil {
		return nil, err
	}

	planned, err := s.planCategories(ctx, input.Categories)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNameFree(ctx, input.Name, 0); err != nil {
		return nil, err
	}
	categories, err := s.applyCategories(ctx, planned)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	created, err := s.store.CreateProduct(ctx, &domain.Product{
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		Quantity:    input.Quantity,
		Categories:  categories,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(allProductsKey)
	metrics.ProductMutationsTotal.WithLabelValues("create").Inc()
	s.emit(ctx, domain.EventProductCreated, created, 0)
	s.logger.Info().Int64("product_id", created.ID).Str("name", created.Name).Msg("product created")

	return created, nil
}

// Update merges input into the stored product. The current state is always
// read from the store, never from the cache. Categories are replaced only
// when input names at least one.
func (s *CatalogService) Update(ctx context.Context, id int64, input ports.ProductInput) (*domain.Product, error) {
	ctx = context.WithoutCancel(ctx)
	if err := validateProductInput(input); err != nil {
		return nil, err
	}

	planned, err := s.planCategories(ctx, input.Categories)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	var updated *domain.Product
	err = s.withConflictRetry(ctx, func(ctx context.Context) error {
		current, err := s.store.FindProduct(ctx, id)
		if err != nil {
			return err
		}
		if err := s.ensureNameFree(ctx, input.Name, id); err != nil {
			return err
		}
		categories, err := s.applyCategories(ctx, planned)
		if err != nil {
			return err
		}
		current.Name = input.Name
		current.Description = input.Description
		current.Price = input.Price
		current.Quantity = input.Quantity
		if len(categories) > 0 {
			current.Categories = categories
		}
		current.UpdatedAt = time.Now().UTC()

		updated, err = s.store.UpdateProduct(ctx, current)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(productKey(id), allProductsKey)
	metrics.ProductMutationsTotal.WithLabelValues("update").Inc()
	s.emit(ctx, domain.EventProductUpdated, updated, 0)
	s.logger.Info().Int64("product_id", id).Msg("product updated")

	return updated, nil
}

// Delete removes a product. Deleting an unknown ID is not an error: it reports
// false and leaves the cache untouched.
func (s *CatalogService) Delete(ctx context.Context, id int64) (bool, error) {
	ctx = context.WithoutCancel(ctx)

	unlock := s.locks.Lock(id)
	defer unlock()

	existing, err := s.store.FindProduct(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return false, nil
		}
		return false, err
	}

	if err := s.store.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return false, nil
		}
		return false, err
	}

	s.cache.Invalidate(productKey(id), allProductsKey)
	metrics.ProductMutationsTotal.WithLabelValues("delete").Inc()
	s.emit(ctx, domain.EventProductDeleted, existing, 0)
	s.logger.Info().Int64("product_id", id).Msg("product deleted")

	return true, nil
}

// Sell removes quantity units from the product's stock. The read, the stock
// check and the write happen under the product's lock and behind an
// optimistic version check, so concurrent sales can never drive stock below
// zero.
func (s *CatalogService) Sell(ctx context.Context, id int64, quantity int) (*domain.Product, error) {
	ctx = context.WithoutCancel(ctx)
	if quantity <= 0 {
		metrics.SalesTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: quantity must be greater than zero", domain.ErrInvalidSale)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	var sold *domain.Product
	err := s.withConflictRetry(ctx, func(ctx context.Context) error {
		p, err := s.store.FindProduct(ctx, id)
		if err != nil {
			return err
		}
		if quantity > p.Quantity {
			return fmt.Errorf("%w: requested %d units but only %d in stock", domain.ErrInvalidSale, quantity, p.Quantity)
		}
		p.Quantity -= quantity
		p.UpdatedAt = time.Now().UTC()

		sold, err = s.store.UpdateProduct(ctx, p)
		return err
	})
	if err != nil {
		metrics.SalesTotal.WithLabelValues(saleFailureReason(err)).Inc()
		return nil, err
	}

	s.cache.Invalidate(productKey(id), allProductsKey)
	metrics.ProductMutationsTotal.WithLabelValues("sell").Inc()
	metrics.SalesTotal.WithLabelValues("ok").Inc()
	metrics.UnitsSoldTotal.Add(float64(quantity))
	s.emit(ctx, domain.EventProductSold, sold, quantity)
	s.logger.Info().Int64("product_id", id).Int("sold", quantity).Int("remaining", sold.Quantity).Msg("product sold")

	return sold, nil
}

// SellOnce is Sell guarded by an idempotency key. A key that was already used
// for this product returns the current product without selling again. When
// no key or no deduplicator is available it behaves exactly like Sell.
func (s *CatalogService) SellOnce(ctx context.Context, id int64, quantity int, idempotencyKey string) (*ports.SaleResult, error) {
	if idempotencyKey == "" || s.dedup == nil {
		p, err := s.Sell(ctx, id, quantity)
		if err != nil {
			return nil, err
		}
		return &ports.SaleResult{Product: p}, nil
	}

	ctx = context.WithoutCancel(ctx)
	key := fmt.Sprintf("%d:%s", id, idempotencyKey)

	claimed, err := s.dedup.Claim(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Int64("product_id", id).Msg("sale dedup claim failed, selling anyway")
	} else if !claimed {
		metrics.SalesTotal.WithLabelValues("replayed").Inc()
		s.logger.Debug().Int64("product_id", id).Str("idempotency_key", idempotencyKey).Msg("duplicate sale skipped")
		p, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return &ports.SaleResult{Product: p, Replayed: true}, nil
	}

	p, err := s.Sell(ctx, id, quantity)
	if err != nil {
		if claimed {
			if rerr := s.dedup.Release(ctx, key); rerr != nil {
				s.logger.Warn().Err(rerr).Int64("product_id", id).Msg("sale dedup release failed")
			}
		}
		return nil, err
	}
	return &ports.SaleResult{Product: p}, nil
}

// Categories lists every stored category. Categories are small and rarely
// written, so they bypass the product cache.
func (s *CatalogService) Categories(ctx context.Context) ([]*domain.Category, error) {
	cs, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	if cs == nil {
		cs = []*domain.Category{}
	}
	return cs, nil
}

// withConflictRetry reruns fn while the store reports a version conflict,
// with a short bounded exponential backoff.
func (s *CatalogService) withConflictRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(maxConflictRetries, retry.NewExponential(conflictBackoffBase))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if errors.Is(err, domain.ErrVersionConflict) {
			metrics.VersionConflictsTotal.Inc()
			return retry.RetryableError(err)
		}
		return err
	})
}

// plannedCategory is a category reference checked against the store. Exactly
// one of existing and name is set: name marks a category still to be created.
type plannedCategory struct {
	existing *domain.Category
	name     string
}

// planCategories looks every reference up without writing anything.
// References by ID must exist; unknown names are deferred to applyCategories.
func (s *CatalogService) planCategories(ctx context.Context, refs []ports.CategoryRef) ([]plannedCategory, error) {
	out := make([]plannedCategory, 0, len(refs))
	for _, ref := range refs {
		name := strings.TrimSpace(ref.Name)
		switch {
		case ref.ID > 0:
			c, err := s.store.FindCategory(ctx, ref.ID)
			if err != nil {
				return nil, err
			}
			out = append(out, plannedCategory{existing: c})
		case name != "":
			c, err := s.store.FindCategoryByName(ctx, name)
			switch {
			case err == nil:
				out = append(out, plannedCategory{existing: c})
			case errors.Is(err, domain.ErrCategoryNotFound):
				out = append(out, plannedCategory{name: name})
			default:
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: category needs an id or a name", domain.ErrInvalidProduct)
		}
	}
	return out, nil
}

// applyCategories creates the categories planCategories could not find and
// collapses duplicates. It runs only once the mutation is known to succeed.
func (s *CatalogService) applyCategories(ctx context.Context, planned []plannedCategory) ([]domain.Category, error) {
	out := make([]domain.Category, 0, len(planned))
	seen := make(map[int64]struct{}, len(planned))

	for _, pc := range planned {
		c := pc.existing
		if c == nil {
			var err error
			if c, err = s.findOrCreateCategory(ctx, pc.name); err != nil {
				return nil, err
			}
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, *c)
	}
	return out, nil
}

// ensureNameFree fails with ErrProductNameTaken when another product already
// uses name. The store's unique constraint still guards the write itself.
func (s *CatalogService) ensureNameFree(ctx context.Context, name string, exceptID int64) error {
	p, err := s.store.FindProductByName(ctx, name)
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		return nil
	case err != nil:
		return err
	case p.ID != exceptID:
		return domain.ErrProductNameTaken
	}
	return nil
}

func (s *CatalogService) findOrCreateCategory(ctx context.Context, name string) (*domain.Category, error) {
	c, err := s.store.FindCategoryByName(ctx, name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, domain.ErrCategoryNotFound) {
		return nil, err
	}

	c, err = s.store.CreateCategory(ctx, &domain.Category{Name: name})
	if errors.Is(err, domain.ErrCategoryTaken) {
		// lost a race with a concurrent create
		return s.store.FindCategoryByName(ctx, name)
	}
	return c, err
}

func (s *CatalogService) emit(ctx context.Context, typ domain.CatalogEventType, p *domain.Product, sold int) {
	if s.events == nil || p == nil {
		return
	}
	event := domain.CatalogEvent{
		Type:       typ,
		ProductID:  p.ID,
		Name:       p.Name,
		Quantity:   p.Quantity,
		Sold:       sold,
		OccurredAt: time.Now().UTC(),
	}
	if principal, ok := domain.PrincipalFromContext(ctx); ok {
		event.Actor = principal.Username
	}
	s.events.Enqueue(event)
}

func validateProductInput(in ports.ProductInput) error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return fmt.Errorf("%w: name is required", domain.ErrInvalidProduct)
	case strings.TrimSpace(in.Description) == "":
		return fmt.Errorf("%w: description is required", domain.ErrInvalidProduct)
	case in.Price <= 0:
		return fmt.Errorf("%w: price must be greater than zero", domain.ErrInvalidProduct)
	case in.Quantity < 0:
		return fmt.Errorf("%w: quantity must not be negative", domain.ErrInvalidProduct)
	}
	return nil
}

func saleFailureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidSale):
		return "invalid"
	case errors.Is(err, domain.ErrProductNotFound):
		return "not_found"
	default:
		return "error"
	}
}
