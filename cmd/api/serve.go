package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/campus-desk/internal/api/http"
	"github.com/spec-kit/campus-desk/internal/api/http/handlers"
	"github.com/spec-kit/campus-desk/internal/assistant"
	"github.com/spec-kit/campus-desk/internal/auth"
	"github.com/spec-kit/campus-desk/internal/config"
	"github.com/spec-kit/campus-desk/internal/directory"
	"github.com/spec-kit/campus-desk/internal/document"
	"github.com/spec-kit/campus-desk/internal/events"
	"github.com/spec-kit/campus-desk/internal/lock"
	"github.com/spec-kit/campus-desk/internal/observability"
	"github.com/spec-kit/campus-desk/internal/persistence"
	"github.com/spec-kit/campus-desk/internal/repository"
	"github.com/spec-kit/campus-desk/internal/service"
	"github.com/spec-kit/campus-desk/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var (
		ticketRepo repository.TicketRepository
		userRepo   repository.UserRepository
	)
	if pg.Enabled() {
		ticketRepo = repository.NewTicketRepository(pg.PoolHandle())
		userRepo = repository.NewUserRepository(pg.PoolHandle())
	} else {
		ticketRepo = repository.NewMemoryTicketRepository()
		userRepo = repository.NewMemoryUserRepository()
	}

	if _, err := directory.Seed(ctx, userRepo, cfg.Directory.SeedFile, cfg.Auth.BcryptCost, logger); err != nil {
		return fmt.Errorf("seed directory: %w", err)
	}

	locker, err := newLocker(cfg, redis, logger)
	if err != nil {
		return err
	}

	bucket, err := document.OpenBucket(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer bucket.Close()
	renderer := document.NewRenderer(bucket, document.Options{
		Institution: cfg.Storage.Institution,
		Signatory:   cfg.Storage.Signatory,
		PublicPath:  cfg.Storage.PublicPath,
	}, logger)

	policy, err := auth.NewOfficePolicy()
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	notifications := service.NewNotificationService(logger, cfg.Notification)

	var publisher *events.KafkaPublisher
	if len(cfg.Notification.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Notification.KafkaBrokers, cfg.Notification.KafkaTopic)
		defer publisher.Close() //nolint:errcheck
		logger.Info("kafka publisher enabled",
			zap.Strings("brokers", cfg.Notification.KafkaBrokers),
			zap.String("topic", cfg.Notification.KafkaTopic))
	}
	notifier := worker.StartNotificationWorker(dispatcher, notifications, publisher, logger)
	defer func() {
		stopCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		if err := notifier.Stop(stopCtx); err != nil {
			logger.Warn("notification queue not drained", zap.Error(err))
		}
	}()

	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		TicketRepo:            ticketRepo,
		UserRepo:              userRepo,
		Renderer:              renderer,
		Locker:                locker,
		Policy:                policy,
		Dispatcher:            dispatcher,
		Metrics:               metrics,
		Logger:                logger,
		CommitOnRenderFailure: cfg.Lifecycle.CommitOnRenderFailure,
	})

	var ai service.Assistant
	if cfg.Assistant.Enabled {
		ai = assistant.NewClient(cfg.Assistant, logger)
	}
	intake := service.NewIntakeService(userRepo, lifecycle, ai, logger)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(cfg.Auth, userRepo, tokens)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Users:          handlers.NewUsersHandler(authService),
		Chat:           handlers.NewChatHandler(intake),
		Tickets:        handlers.NewTicketsHandler(lifecycle),
		Documents:      handlers.NewDocumentsHandler(renderer),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, userRepo),
		PublicPath:     cfg.Storage.PublicPath,
	})

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("fiber listen: %w", err)
	case sig := <-shutdownSignal():
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("shutting down", zap.Error(ctx.Err()))
	}
	return app.ShutdownWithTimeout(shutdownTimeout)
}

func newLocker(cfg *config.Config, redis *persistence.Redis, logger *zap.Logger) (lock.Locker, error) {
	if cfg.Lifecycle.LockBackend != "redis" {
		return lock.NewKeyedMutex(), nil
	}
	if !redis.Enabled() {
		return nil, errors.New("LOCK_BACKEND=redis requires REDIS_ADDR")
	}
	logger.Info("using redis ticket locks", zap.Duration("ttl", cfg.Lifecycle.LockTTL()))
	return lock.NewRedisLocker(redis.Client, cfg.Lifecycle.LockTTL(), logger), nil
}

func shutdownSignal() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return sigCh
}
