// @title        Product Catalog API
// @version      1.0
// @description  Role-protected product catalog with a consistent read cache and oversell-safe sales.
// @host         localhost:8080
// @BasePath     /
//
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Type "Bearer" followed by a space and the token returned by /auth/login.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/quardintel/product-catalog/internal/api"
	"github.com/quardintel/product-catalog/internal/api/handler"
	"github.com/quardintel/product-catalog/internal/core/ports"
	"github.com/quardintel/product-catalog/internal/core/service"
	"github.com/quardintel/product-catalog/internal/infrastructure/crypto"
	"github.com/quardintel/product-catalog/internal/infrastructure/db/memory"
	mongostore "github.com/quardintel/product-catalog/internal/infrastructure/db/mongo"
	redisstore "github.com/quardintel/product-catalog/internal/infrastructure/db/redis"
	"github.com/quardintel/product-catalog/internal/infrastructure/queue"
	"github.com/quardintel/product-catalog/internal/pkg/config"
	"github.com/quardintel/product-catalog/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "product-catalog",
	})

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	readiness := make(map[string]handler.Pinger)

	// --- Persistence ---
	var (
		users   ports.IdentityStore
		catalog ports.CatalogStore
	)
	switch cfg.StoreDriver {
	case config.StoreMemory:
		users = memory.NewIdentityStore()
		catalog = memory.NewCatalogStore()
		log.Warn().Msg("using in-memory stores, data is lost on restart")
	default:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return err
		}
		defer func() { _ = client.Disconnect(context.Background()) }()

		stores, err := mongostore.NewStores(ctx, db)
		if err != nil {
			return err
		}
		users, catalog = stores.Identity, stores.Catalog
		readiness["mongodb"] = handler.MongoPinger(db)
		log.Info().Str("database", cfg.Mongo.Database).Msg("connected to mongodb")
	}

	var catalogOpts []service.CatalogOption

	// --- Sale idempotency (optional) ---
	if cfg.Redis.Addr != "" {
		rdb, err := redisstore.Connect(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()

		catalogOpts = append(catalogOpts, service.WithSaleDeduplicator(redisstore.NewSaleDedup(rdb, 0)))
		readiness["redis"] = handler.RedisPinger(rdb)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("sale idempotency enabled")
	}

	// --- Catalog events (optional) ---
	var dispatcher *queue.Dispatcher
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	if cfg.Events.RabbitMQURL != "" {
		publisher, err := queue.NewRabbitPublisher(cfg.Events.RabbitMQURL, cfg.Events.Queue)
		if err != nil {
			return err
		}
		defer func() { _ = publisher.Close() }()

		dispatcher = queue.NewDispatcher(cfg.Events.Workers, publisher, logger.Component("events"))
		dispatcher.Start(workerCtx)
		catalogOpts = append(catalogOpts, service.WithEventSink(dispatcher))
		log.Info().Str("queue", cfg.Events.Queue).Int("workers", cfg.Events.Workers).Msg("catalog events enabled")
	}

	// --- Services ---
	tokens, err := service.NewTokenService(cfg.TokenTTL)
	if err != nil {
		return err
	}
	authService := service.NewAuthService(users, crypto.NewBcryptHasher(bcrypt.DefaultCost), tokens, logger.Component("auth"))
	catalogService := service.NewCatalogService(catalog, service.NewProductCache(cfg.CacheTTL), logger.Component("catalog"), catalogOpts...)

	e := api.NewRouter(api.Deps{
		Auth:      authService,
		Catalog:   catalogService,
		Tokens:    tokens,
		Users:     users,
		Readiness: readiness,
		Logger:    logger.Component("http"),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if dispatcher != nil {
		stopWorkers()
		dispatcher.Wait()
	}
	return nil
}
