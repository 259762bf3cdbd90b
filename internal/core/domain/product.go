package domain

import (
	"errors"
	"time"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrProductNameTaken = errors.New("product name already exists")
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryTaken    = errors.New("category name already exists")
	ErrInvalidProduct   = errors.New("invalid product")
	ErrInvalidSale      = errors.New("invalid sale")
	ErrVersionConflict  = errors.New("product was modified concurrently")
)

// Category is referenced, never owned, by products.
type Category struct {
	ID   int64  `json:"id" bson:"_id"`
	Name string `json:"name" bson:"name"`
}

// Product is the catalog aggregate. Quantity is the stock decremented by sales.
// Version is bumped by the store on every successful update and is used for
// optimistic concurrency control.
type Product struct {
	ID          int64      `json:"id" bson:"_id"`
	Name        string     `json:"name" bson:"name"`
	Description string     `json:"description" bson:"description"`
	Price       float64    `json:"price" bson:"price"`
	Quantity    int        `json:"quantity" bson:"quantity"`
	Categories  []Category `json:"categories" bson:"categories"`
	Version     int64      `json:"-" bson:"version"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" bson:"updated_at"`
}

// Clone returns a deep copy so cached snapshots are never shared with callers.
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	c := *p
	if p.Categories != nil {
		c.Categories = make([]Category, len(p.Categories))
		copy(c.Categories, p.Categories)
	}
	return &c
}

// CloneProducts deep-copies a product list.
func CloneProducts(ps []*Product) []*Product {
	if ps == nil {
		return nil
	}
	out := make([]*Product, len(ps))
	for i, p := range ps {
		out[i] = p.Clone()
	}
	return out
}

// CatalogEventType names a committed catalog mutation.
type CatalogEventType string

const (
	EventProductCreated CatalogEventType = "product.created"
	EventProductUpdated CatalogEventType = "product.updated"
	EventProductDeleted CatalogEventType = "product.deleted"
	EventProductSold    CatalogEventType = "product.sold"
)

// CatalogEvent describes a mutation after it has been committed to the store.
type CatalogEvent struct {
	Type       CatalogEventType `json:"type"`
	ProductID  int64            `json:"product_id"`
	Name       string           `json:"name,omitempty"`
	Quantity   int              `json:"quantity"`
	Sold       int              `json:"sold,omitempty"`
	Actor      string           `json:"actor,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}
