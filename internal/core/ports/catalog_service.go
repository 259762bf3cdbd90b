package ports

import (
	"context"

	"github.com/quardintel/product-catalog/internal/core/domain"
)

// CategoryRef points at a category either by ID or by name. A name that does
// not exist yet creates the category.
type CategoryRef struct {
	ID   int64
	Name string
}

// ProductInput carries the writable fields of a product. Categories left
// empty on update keep the product's current categories.
type ProductInput struct {
	Name        string
	Description string
	Price       float64
	Quantity    int
	Categories  []CategoryRef
}

// SaleResult is returned by SellOnce. Replayed is true when the idempotency
// key had already been used and no stock was decremented.
type SaleResult struct {
	Product  *domain.Product
	Replayed bool
}

// CatalogService defines the catalog use cases.
type CatalogService interface {
	Get(ctx context.Context, id int64) (*domain.Product, error)
	GetAll(ctx context.Context) ([]*domain.Product, error)
	Create(ctx context.Context, input ProductInput) (*domain.Product, error)
	Update(ctx context.Context, id int64, input ProductInput) (*domain.Product, error)
	// Delete reports false, without error, when the product does not exist.
	Delete(ctx context.Context, id int64) (bool, error)
	Sell(ctx context.Context, id int64, quantity int) (*domain.Product, error)
	SellOnce(ctx context.Context, id int64, quantity int, idempotencyKey string) (*SaleResult, error)
	Categories(ctx context.Context) ([]*domain.Category, error)
}

// EventSink receives catalog events after the mutation has been committed.
type EventSink interface {
	Enqueue(event domain.CatalogEvent)
}

// EventPublisher delivers a single catalog event to a broker.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.CatalogEvent) error
}
