package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/verification-service/internal/api/http"
	"github.com/spec-kit/verification-service/internal/api/http/handlers"
	"github.com/spec-kit/verification-service/internal/auth"
	"github.com/spec-kit/verification-service/internal/config"
	"github.com/spec-kit/verification-service/internal/events"
	"github.com/spec-kit/verification-service/internal/observability"
	"github.com/spec-kit/verification-service/internal/persistence"
	"github.com/spec-kit/verification-service/internal/repository"
	"github.com/spec-kit/verification-service/internal/service"
	"github.com/spec-kit/verification-service/internal/signaling"
	"github.com/spec-kit/verification-service/internal/storage"
	"github.com/spec-kit/verification-service/internal/worker"
)

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

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	pool := pg.PoolHandle()
	sessionRepo := repository.NewSessionRepository(pool)
	staffRepo := repository.NewStaffRepository(pool)
	documentRepo := repository.NewDocumentRepository(pool)
	recordingRepo := repository.NewRecordingRepository(pool)

	store, err := storage.NewLocalStore(cfg.Storage)
	if err != nil {
		logger.Fatal("failed to init object store", zap.Error(err))
	}

	cache := service.NewSessionCache(redis.Client, cfg.Session.LinkCacheTTL(), logger)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	authService := service.NewAuthService(cfg.Auth, staffRepo, tokens, logger)
	sessionService := service.NewSessionService(cfg.Session, service.SessionDependencies{
		SessionRepo: sessionRepo,
		Dispatcher:  dispatcher,
		Cache:       cache,
		Logger:      logger,
	})
	lifecycleService := service.NewLifecycleService(service.LifecycleDependencies{
		SessionRepo: sessionRepo,
		Dispatcher:  dispatcher,
		Cache:       cache,
		Metrics:     metrics,
		Logger:      logger,
	})
	claimService := service.NewClaimService(service.ClaimDependencies{
		SessionRepo: sessionRepo,
		StaffRepo:   staffRepo,
		Dispatcher:  dispatcher,
		Cache:       cache,
		Metrics:     metrics,
		Logger:      logger,
	})
	documentService := service.NewDocumentService(cfg.Storage, service.DocumentDependencies{
		SessionRepo:   sessionRepo,
		DocumentRepo:  documentRepo,
		RecordingRepo: recordingRepo,
		Store:         store,
		Logger:        logger,
	})
	notificationService := service.NewNotificationService(cfg.Notification, nil, logger)
	worker.StartNotificationWorker(notificationService, dispatcher)

	hub := signaling.NewHub(metrics)
	signalingHandler := signaling.NewHandler(cfg.Signaling, signaling.HandlerDependencies{
		Hub:        hub,
		Sessions:   sessionService,
		Lifecycle:  lifecycleService,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})

	authMiddleware := auth.NewAuthMiddleware(tokens, staffRepo)

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: 32 << 20,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Staff:          handlers.NewStaffHandler(authService),
		Sessions:       handlers.NewSessionsHandler(sessionService, claimService, lifecycleService),
		Documents:      handlers.NewDocumentsHandler(documentService),
		Files:          handlers.NewFilesHandler(store),
		Signaling:      signalingHandler,
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
