package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/supportops/owner-relay/internal/api/http"
	"github.com/supportops/owner-relay/internal/api/http/handlers"
	"github.com/supportops/owner-relay/internal/config"
	"github.com/supportops/owner-relay/internal/events"
	"github.com/supportops/owner-relay/internal/idempotency"
	"github.com/supportops/owner-relay/internal/observability"
	"github.com/supportops/owner-relay/internal/persistence"
	"github.com/supportops/owner-relay/internal/repository"
	"github.com/supportops/owner-relay/internal/service"
	"github.com/supportops/owner-relay/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("starting webhook receiver",
		zap.String("addr", cfg.App.Addr()),
		zap.String("webhook_path", cfg.Webhook.Path),
		zap.String("store_driver", cfg.Store.Driver),
		zap.Bool("slack_configured", cfg.Webhook.SlackURL != ""),
	)

	staffRepo, closeStore := openStaffStore(ctx, cfg, logger)
	defer closeStore()

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartMetricsWorker(dispatcher, metrics, logger)

	rotation := service.NewRotationService(service.RotationDependencies{
		StaffRepo:  staffRepo,
		Owner:      cfg.Owner,
		Dispatcher: dispatcher,
		Logger:     logger.Named("rotation"),
	})
	notifier := service.NewSlackNotifier(cfg.Webhook, nil, logger.Named("slack"))

	var replay idempotency.Store
	var redisPinger handlers.Pinger
	if redis.Configured() {
		replay = idempotency.NewRedisStore(redis.Client, cfg.Idempotency.TTL())
		redisPinger = redis
	}

	webhooks := service.NewWebhookService(service.WebhookDependencies{
		Owners:     rotation,
		Notifier:   notifier,
		Replay:     replay,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	var storePinger handlers.Pinger
	if staffRepo != nil {
		storePinger = staffRepo
	}

	app := httptransport.NewServer(httptransport.ServerConfig{
		AppName:        cfg.App.Name,
		RequestTimeout: cfg.App.RequestTimeout(),
		Logger:         logger,
		Metrics:        metrics,
		Routes: httptransport.RouteConfig{
			WebhookPath: cfg.Webhook.Path,
			Health:      handlers.NewHealthHandler(storePinger, redisPinger),
			Webhook:     handlers.NewWebhookHandler(webhooks),
			Metrics:     handlers.NewMetricsHandler(metrics),
		},
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

// openStaffStore returns the support_list repository for the configured
// driver. A store that cannot be reached yields a nil repository; the
// service still starts and every acquisition uses the fallback owner.
func openStaffStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.SupportListRepository, func()) {
	switch cfg.Store.Driver {
	case config.StoreDriverSQLite:
		db, err := persistence.OpenSQLite(ctx, cfg.SQLite, logger)
		if err != nil {
			logger.Error("failed to open sqlite; using fallback owner for every event", zap.Error(err))
			return nil, func() {}
		}
		return repository.NewSQLiteSupportListRepository(db), func() { closeDB(db, logger) }
	default:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Error("invalid postgres configuration; using fallback owner for every event", zap.Error(err))
			return nil, func() {}
		}
		if pg.PoolHandle() == nil {
			return nil, func() {}
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				logger.Error("failed to run migrations", zap.Error(err))
			}
		}
		return repository.NewSupportListRepository(pg.PoolHandle()), pg.Close
	}
}

func closeDB(db *sql.DB, logger *zap.Logger) {
	if err := db.Close(); err != nil {
		logger.Warn("close sqlite", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
