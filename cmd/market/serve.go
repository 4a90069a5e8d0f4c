package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_market/internal/auth"
	"github.com/fjod/go_market/internal/cache"
	"github.com/fjod/go_market/internal/cartrepo"
	"github.com/fjod/go_market/internal/catalog"
	"github.com/fjod/go_market/internal/checkout"
	"github.com/fjod/go_market/internal/fulfillment"
	apihttp "github.com/fjod/go_market/internal/http"
	"github.com/fjod/go_market/internal/localstore"
	"github.com/fjod/go_market/internal/publisher"
	"github.com/fjod/go_market/internal/realtime"
	"github.com/fjod/go_market/internal/redemption"
	"github.com/fjod/go_market/internal/referral"
	"github.com/fjod/go_market/internal/repository"
	"github.com/fjod/go_market/internal/review"
	"github.com/fjod/go_market/internal/session"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	policy, err := session.ParseMergePolicy(cfg.SyncMergePolicy)
	if err != nil {
		return err
	}

	local, err := localstore.Open(cfg.LocalStorePath)
	if err != nil {
		return err
	}
	defer local.Close()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	mongoDB, err := connectMongo(connectCtx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		return err
	}
	defer mongoDB.Client().Disconnect(context.Background())

	cartRepo := cartrepo.NewMongoRepository(mongoDB)
	if err := cartrepo.CreateIndexes(connectCtx, cartRepo); err != nil {
		return fmt.Errorf("create cart indexes: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer rdb.Close()
	if err := rdb.Ping(connectCtx).Err(); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}

	products, err := catalog.NewRepository(cfg.CatalogDBPath)
	if err != nil {
		return err
	}
	defer products.Close()
	if err := products.RunMigrations(cfg.CatalogMigrationsPath); err != nil {
		return fmt.Errorf("catalog migrations: %w", err)
	}

	repo, err := repository.NewRepository(credentials(cfg))
	if err != nil {
		return err
	}
	defer repo.Close()
	if err := repo.RunMigrations(credentials(cfg)); err != nil {
		return fmt.Errorf("orders migrations: %w", err)
	}

	events := publisher.NewOrderEventPublisher(cfg.KafkaBrokers, cfg.OrderEventsTopic, log)
	defer events.Close()

	hub := realtime.NewHub(rdb, log)
	carts := cartrepo.NewService(cartRepo, cache.NewRedisCache(rdb, cfg.CartCacheTTL), hub, log)

	coordinator := fulfillment.NewCoordinator(repo, products, repo, events, log)
	checkouts := checkout.NewRegistry(coordinator, log)
	referrals := referral.NewCapturer(local, log)

	sessions := session.NewManager(session.EngineDeps{
		Local:   local,
		Remote:  carts,
		Watcher: realtime.NewCartWatcher(hub, carts, log),
		Policy:  policy,
		Log:     log,
	},
		session.WithIdleTTL(cfg.SessionIdleTTL),
		session.WithEvictHook(checkouts.Drop),
		session.WithEvictHook(func(sessionID string) {
			if err := referrals.Forget(context.Background(), sessionID); err != nil {
				log.Warn("referrer not cleared", "session_id", sessionID, "error", err)
			}
		}),
	)
	defer sessions.Close()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sessions.RunSweeper(sweepCtx, cfg.SessionSweep)

	router := apihttp.NewRouter(apihttp.Deps{
		Auth:        auth.NewJWTProvider(cfg.JWTSecret, cfg.JWTTTL),
		Sessions:    sessions,
		Catalog:     products,
		Referrals:   referrals,
		Checkouts:   checkouts,
		Redemptions: redemption.NewService(repo, log),
		Orders:      review.NewLedger(repo, log),
		Notifier:    realtime.NewNotifier(rdb, log),
		Timeout:     cfg.RequestTimeout,
		Log:         log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(http.MaxBytesHandler(router, cfg.MaxRequestBodySize), "market"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("market API starting", "port", cfg.HTTPPort, "merge_policy", string(policy))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("shutting down server")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}

func connectMongo(ctx context.Context, uri, database string) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(5*time.Second).
		SetMaxPoolSize(50))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return client.Database(database), nil
}
