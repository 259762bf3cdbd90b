package ports

import (
	"context"

	"github.com/quardintel/product-catalog/internal/core/domain"
)

// CatalogStore persists products and categories.
type CatalogStore interface {
	// CreateProduct assigns an ID and version to p and stores it.
	CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error)
	FindProduct(ctx context.Context, id int64) (*domain.Product, error)
	// FindProductByName matches the name exactly and returns
	// domain.ErrProductNotFound when no product uses it.
	FindProductByName(ctx context.Context, name string) (*domain.Product, error)
	// ListProducts returns every product ordered by ID.
	ListProducts(ctx context.Context) ([]*domain.Product, error)
	// UpdateProduct replaces the stored product only if its version still
	// equals p.Version, returning domain.ErrVersionConflict otherwise. The
	// returned product carries the new version.
	UpdateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error

	CreateCategory(ctx context.Context, c *domain.Category) (*domain.Category, error)
	FindCategory(ctx context.Context, id int64) (*domain.Category, error)
	FindCategoryByName(ctx context.Context, name string) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]*domain.Category, error)
}
