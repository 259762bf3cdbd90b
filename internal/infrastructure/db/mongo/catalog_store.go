package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/quardintel/product-catalog/internal/core/domain"
)

const (
	collectionProducts   = "products"
	collectionCategories = "categories"
	collectionCounters   = "counters"
)

// caseInsensitive makes category names unique regardless of case.
var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

// CatalogStore implements ports.CatalogStore. Products and categories use
// int64 ids drawn from a counters collection.
type CatalogStore struct {
	products   *mongo.Collection
	categories *mongo.Collection
	counters   *mongo.Collection
}

func NewCatalogStore(db *mongo.Database) *CatalogStore {
	return &CatalogStore{
		products:   db.Collection(collectionProducts),
		categories: db.Collection(collectionCategories),
		counters:   db.Collection(collectionCounters),
	}
}

// nextID atomically increments and returns the named sequence.
func (r *CatalogStore) nextID(ctx context.Context, sequence string) (int64, error) {
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": sequence},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", sequence, err)
	}
	return doc.Seq, nil
}

// CreateProduct inserts a new product document.
func (r *CatalogStore) CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id, err := r.nextID(ctx, collectionProducts)
	if err != nil {
		return nil, err
	}

	doc := p.Clone()
	doc.ID = id
	doc.Version = 1
	if doc.Categories == nil {
		doc.Categories = []domain.Category{}
	}

	if _, err := r.products.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrProductNameTaken
		}
		return nil, fmt.Errorf("insert product: %w", err)
	}
	return doc, nil
}

func (r *CatalogStore) FindProduct(ctx context.Context, id int64) (*domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var p domain.Product
	if err := r.products.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("find product: %w", err)
	}
	return &p, nil
}

func (r *CatalogStore) FindProductByName(ctx context.Context, name string) (*domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var p domain.Product
	if err := r.products.FindOne(ctx, bson.M{"name": name}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("find product by name: %w", err)
	}
	return &p, nil
}

func (r *CatalogStore) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.products.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	products := []*domain.Product{}
	if err := cur.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return products, nil
}

// UpdateProduct replaces the writable fields only when the stored version
// still matches, bumping it in the same atomic update.
func (r *CatalogStore) UpdateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	categories := p.Categories
	if categories == nil {
		categories = []domain.Category{}
	}

	filter := bson.M{"_id": p.ID, "version": p.Version}
	update := bson.M{
		"$set": bson.M{
			"name":        p.Name,
			"description": p.Description,
			"price":       p.Price,
			"quantity":    p.Quantity,
			"categories":  categories,
			"updated_at":  p.UpdatedAt,
		},
		"$inc": bson.M{"version": 1},
	}

	res, err := r.products.UpdateOne(ctx, filter, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrProductNameTaken
		}
		return nil, fmt.Errorf("update product: %w", err)
	}
	if res.MatchedCount == 0 {
		n, err := r.products.CountDocuments(ctx, bson.M{"_id": p.ID})
		if err != nil {
			return nil, fmt.Errorf("count product: %w", err)
		}
		if n == 0 {
			return nil, domain.ErrProductNotFound
		}
		return nil, domain.ErrVersionConflict
	}

	updated := p.Clone()
	updated.Categories = categories
	updated.Version = p.Version + 1
	return updated, nil
}

func (r *CatalogStore) DeleteProduct(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.products.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (r *CatalogStore) CreateCategory(ctx context.Context, c *domain.Category) (*domain.Category, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id, err := r.nextID(ctx, collectionCategories)
	if err != nil {
		return nil, err
	}

	doc := &domain.Category{ID: id, Name: c.Name}
	if _, err := r.categories.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrCategoryTaken
		}
		return nil, fmt.Errorf("insert category: %w", err)
	}
	return doc, nil
}

func (r *CatalogStore) FindCategory(ctx context.Context, id int64) (*domain.Category, error) {
	return r.findCategory(ctx, bson.M{"_id": id}, options.FindOne())
}

func (r *CatalogStore) FindCategoryByName(ctx context.Context, name string) (*domain.Category, error) {
	return r.findCategory(ctx, bson.M{"name": name}, options.FindOne().SetCollation(caseInsensitive))
}

func (r *CatalogStore) findCategory(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*domain.Category, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var c domain.Category
	if err := r.categories.FindOne(ctx, filter, opts).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("find category: %w", err)
	}
	return &c, nil
}

func (r *CatalogStore) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.categories.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	categories := []*domain.Category{}
	if err := cur.All(ctx, &categories); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	return categories, nil
}

// EnsureIndexes creates the unique name indexes on products and categories.
func (r *CatalogStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := r.products.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("name_unique"),
	}); err != nil {
		return fmt.Errorf("products index: %w", err)
	}

	if _, err := r.categories.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("name_unique").SetCollation(caseInsensitive),
	}); err != nil {
		return fmt.Errorf("categories index: %w", err)
	}
	return nil
}
