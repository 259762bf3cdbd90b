package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/quardintel/product-catalog/internal/core/domain"
)

// CatalogStore keeps products and categories in maps. Writes are serialized by
// a single mutex and UpdateProduct enforces the same optimistic version check
// as the Mongo store.
type CatalogStore struct {
	mu             sync.RWMutex
	products       map[int64]*domain.Product
	categories     map[int64]*domain.Category
	nextProductID  int64
	nextCategoryID int64
}

func NewCatalogStore() *CatalogStore {
	return &CatalogStore{
		products:   make(map[int64]*domain.Product),
		categories: make(map[int64]*domain.Category),
	}
}

func (s *CatalogStore) CreateProduct(_ context.Context, p *domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nameTaken(p.Name, 0) {
		return nil, domain.ErrProductNameTaken
	}

	s.nextProductID++
	stored := p.Clone()
	stored.ID = s.nextProductID
	stored.Version = 1
	s.products[stored.ID] = stored
	return stored.Clone(), nil
}

func (s *CatalogStore) FindProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return p.Clone(), nil
}

func (s *CatalogStore) FindProductByName(_ context.Context, name string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.Name == name {
			return p.Clone(), nil
		}
	}
	return nil, domain.ErrProductNotFound
}

func (s *CatalogStore) ListProducts(_ context.Context) ([]*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *CatalogStore) UpdateProduct(_ context.Context, p *domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.products[p.ID]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	if current.Version != p.Version {
		return nil, domain.ErrVersionConflict
	}
	if s.nameTaken(p.Name, p.ID) {
		return nil, domain.ErrProductNameTaken
	}

	stored := p.Clone()
	stored.Version = current.Version + 1
	stored.CreatedAt = current.CreatedAt
	s.products[p.ID] = stored
	return stored.Clone(), nil
}

func (s *CatalogStore) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *CatalogStore) CreateCategory(_ context.Context, c *domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.categories {
		if strings.EqualFold(existing.Name, c.Name) {
			return nil, domain.ErrCategoryTaken
		}
	}

	s.nextCategoryID++
	stored := &domain.Category{ID: s.nextCategoryID, Name: c.Name}
	s.categories[stored.ID] = stored
	out := *stored
	return &out, nil
}

func (s *CatalogStore) FindCategory(_ context.Context, id int64) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, domain.ErrCategoryNotFound
	}
	out := *c
	return &out, nil
}

func (s *CatalogStore) FindCategoryByName(_ context.Context, name string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.categories {
		if strings.EqualFold(c.Name, name) {
			out := *c
			return &out, nil
		}
	}
	return nil, domain.ErrCategoryNotFound
}

func (s *CatalogStore) ListCategories(_ context.Context) ([]*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		cc := *c
		out = append(out, &cc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// nameTaken must be called with s.mu held.
func (s *CatalogStore) nameTaken(name string, exceptID int64) bool {
	for id, p := range s.products {
		if id != exceptID && p.Name == name {
			return true
		}
	}
	return false
}
