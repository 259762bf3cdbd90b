package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultTimeout = 10 * time.Second

// Config captures the minimal settings required to establish a MongoDB connection.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Connect establishes a MongoDB client, verifies connectivity with a ping, and
// returns both the client and the selected database. A default timeout is
// applied when none is provided.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	return client, client.Database(cfg.Database), nil
}

type indexer interface {
	EnsureIndexes(ctx context.Context) error
}

// Stores bundles the Mongo-backed persistence ports.
type Stores struct {
	Identity *IdentityStore
	Catalog  *CatalogStore
}

// NewStores builds every store on db and makes sure their indexes exist.
func NewStores(ctx context.Context, db *mongo.Database) (*Stores, error) {
	s := &Stores{
		Identity: NewIdentityStore(db),
		Catalog:  NewCatalogStore(db),
	}
	for _, ix := range []indexer{s.Identity, s.Catalog} {
		if err := ix.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
	}
	return s, nil
}
