package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/go_cart/fulfillment-service/internal/cart/cache"
	cartrepo "github.com/fjod/go_cart/fulfillment-service/internal/cart/repository"
	"github.com/fjod/go_cart/fulfillment-service/internal/cart/service"
	"github.com/fjod/go_cart/fulfillment-service/internal/catalog"
	"github.com/fjod/go_cart/fulfillment-service/internal/checkout"
	"github.com/fjod/go_cart/fulfillment-service/internal/config"
	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	h "github.com/fjod/go_cart/fulfillment-service/internal/http"
	"github.com/fjod/go_cart/fulfillment-service/internal/inventory"
	"github.com/fjod/go_cart/fulfillment-service/internal/keylock"
	"github.com/fjod/go_cart/fulfillment-service/internal/observability"
	"github.com/fjod/go_cart/fulfillment-service/internal/order/ledger"
	orderrepo "github.com/fjod/go_cart/fulfillment-service/internal/order/repository"
	"github.com/fjod/go_cart/fulfillment-service/internal/publisher"
	"github.com/fjod/go_cart/fulfillment-service/pkg/circuitbreaker"
	"github.com/fjod/go_cart/fulfillment-service/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const serviceName = "fulfillment-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.MustNew(serviceName, cfg.Env)
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	if err := run(cfg, log); err != nil {
		log.Fatal("service failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()
	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	obs := observability.New(prometheus.DefaultRegisterer, log)

	var redisClient *redis.Client
	if cfg.CatalogStore == config.StoreRedis || cfg.CartCache == config.CacheRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		closers = append(closers, func() { _ = redisClient.Close() })
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		log.Info("redis ping succeeded", zap.String("addr", cfg.RedisAddr))
	}

	// Catalog and inventory guard.
	store, err := openCatalog(cfg, redisClient)
	if err != nil {
		return err
	}
	closers = append(closers, func() { _ = store.Close() })
	if cfg.CatalogSeedFile != "" {
		n, err := catalog.LoadSeedFile(ctx, store, cfg.CatalogSeedFile)
		if err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
		log.Info("catalog seeded", zap.Int("products", n), zap.String("file", cfg.CatalogSeedFile))
	}
	store = catalog.WithBreaker(store, newBreaker("catalog", log))

	guard := inventory.NewGuard(store,
		inventory.WithRetry(cfg.ReserveAttempts, cfg.ReserveBackoff),
		inventory.WithObserver(obs),
		inventory.WithLogger(log))

	// Cart store.
	carts, err := openCartRepository(ctx, cfg, log, &closers)
	if err != nil {
		return err
	}
	var cartCache cache.CartCache = cache.Noop{}
	if cfg.CartCache == config.CacheRedis {
		cartCache = cache.NewRedisCache(redisClient)
	}
	cartService := service.NewCartService(carts, cartCache, guard,
		service.WithLocker(keylock.New()),
		service.WithObserver(obs),
		service.WithLogger(log))

	// Order ledger.
	orders, err := openOrderRepository(cfg)
	if err != nil {
		return err
	}
	closers = append(closers, func() { _ = orders.Close() })
	orderLedger := ledger.New(orders,
		ledger.WithBreaker(newBreaker("orders", log)),
		ledger.WithObserver(obs),
		ledger.WithLogger(log))

	checker := checkout.New(cartService, guard, orderLedger,
		checkout.WithObserver(obs),
		checkout.WithLogger(log))

	// Background workers.
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	var wg sync.WaitGroup
	if len(cfg.KafkaBrokers) > 0 {
		pub := publisher.NewOutboxPoller(orders, log, cfg.OrderEventsTopic, cfg.KafkaBrokers...)
		closers = append(closers, pub.Close)
		wg.Add(1)
		go func() {
			defer wg.Done()
			pub.Run(workerCtx)
		}()

		log.Info("outbox publisher started",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.OrderEventsTopic))
	}

	router := h.NewRouter(h.RouterConfig{
		Timeout:  cfg.RequestTimeout,
		Gatherer: prometheus.DefaultGatherer,
		Logger:   log,
	},
		h.NewCartHandler(cartService, cfg.RequestTimeout),
		h.NewOrdersHandler(checker, orderLedger, cfg.RequestTimeout))

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("fulfillment service listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	stopWorkers()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info("workers stopped cleanly")
	case <-shutdownCtx.Done():
		log.Warn("workers did not stop in time")
	}
	return nil
}

func newBreaker(name string, log *zap.Logger) *circuitbreaker.Breaker {
	opts := circuitbreaker.DefaultOptions(name)
	opts.IsSuccessful = func(err error) bool { return domain.IsBusiness(err) }
	return circuitbreaker.New(opts, log)
}

func openCatalog(cfg *config.Config, redisClient *redis.Client) (catalog.Store, error) {
	switch cfg.CatalogStore {
	case config.StoreRedis:
		return catalog.NewRedisStore(redisClient), nil
	case config.StoreSQLite:
		s, err := catalog.NewSQLiteStore(cfg.CatalogSQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite catalog: %w", err)
		}
		if err := catalog.RunSQLiteMigrations(s, filepath.Join(cfg.CatalogMigrationsDir, "catalog_sqlite")); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	case config.StoreMySQL:
		s, err := catalog.NewMySQLStore(cfg.CatalogMySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("open mysql catalog: %w", err)
		}
		if err := catalog.RunMySQLMigrations(s, filepath.Join(cfg.CatalogMigrationsDir, "catalog_mysql")); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	default:
		return catalog.NewMemoryStore(), nil
	}
}

func openCartRepository(ctx context.Context, cfg *config.Config, log *zap.Logger, closers *[]func()) (cartrepo.CartRepository, error) {
	if cfg.CartStore != config.StoreMongo {
		return cartrepo.NewMemoryRepository(), nil
	}
	db, err := cartrepo.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	*closers = append(*closers, func() { _ = db.Client().Disconnect(context.Background()) })

	repo := cartrepo.NewMongoRepository(db)
	if err := repo.CreateIndexes(ctx); err != nil {
		return nil, fmt.Errorf("create cart indexes: %w", err)
	}
	log.Info("connected to mongodb", zap.String("database", cfg.MongoDBName))
	return repo, nil
}

func openOrderRepository(cfg *config.Config) (orderrepo.OrderRepository, error) {
	if cfg.OrderStore != config.StorePostgres {
		return orderrepo.NewMemoryRepository(), nil
	}
	creds := &orderrepo.Credentials{
		Host:              cfg.Postgres.Host,
		Port:              cfg.Postgres.Port,
		User:              cfg.Postgres.User,
		Password:          cfg.Postgres.Password,
		DBName:            cfg.Postgres.DBName,
		MigrationsDirPath: cfg.OrderMigrationsDir,
	}
	repo, err := orderrepo.NewRepository(creds)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := repo.RunMigrations(creds); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("run order migrations: %w", err)
	}
	return repo, nil
}
