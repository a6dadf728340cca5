package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/worker-auth-service/internal/api/http"
	"github.com/spec-kit/worker-auth-service/internal/api/http/handlers"
	"github.com/spec-kit/worker-auth-service/internal/auth"
	"github.com/spec-kit/worker-auth-service/internal/config"
	"github.com/spec-kit/worker-auth-service/internal/events"
	"github.com/spec-kit/worker-auth-service/internal/observability"
	"github.com/spec-kit/worker-auth-service/internal/persistence"
	"github.com/spec-kit/worker-auth-service/internal/repository"
	"github.com/spec-kit/worker-auth-service/internal/service"
	"github.com/spec-kit/worker-auth-service/internal/worker"
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
	workerRepo := repository.NewWorkerRepository(pool)
	adminRepo := repository.NewAdminRepository(pool)
	tokenRepo := repository.NewLoginTokenRepository(pool)
	deviceRepo := repository.NewDeviceRepository(pool)
	codeStore := repository.NewHumanCodeStore(redis.Client)

	qrService := service.NewQRLoginService(*cfg, service.QRLoginDependencies{
		TokenRepo:  tokenRepo,
		WorkerRepo: workerRepo,
		AdminRepo:  adminRepo,
		CodeStore:  codeStore,
	}, logger)
	deviceService := service.NewDeviceService(deviceRepo, workerRepo, logger)
	sessionService := service.NewSessionService(*cfg, service.SessionDependencies{
		TxRunner:   pg,
		TokenRepo:  tokenRepo,
		DeviceRepo: deviceRepo,
		WorkerRepo: workerRepo,
		Binder:     deviceService,
	}, logger)
	authService := service.NewAuthService(qrService, deviceService, sessionService, workerRepo, dispatcher, metrics, logger)

	auditService := service.NewAuditService(dispatcher, logger, cfg.Audit)
	worker.StartAuditWorker(auditService)

	tokenManager := auth.NewTokenManager(cfg.Auth.AdminJWTSecret, 60)
	adminMiddleware := auth.NewAdminMiddleware(tokenManager, adminRepo)
	sessionMiddleware := auth.NewSessionMiddleware(sessionService)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis)
	authHandler := handlers.NewAuthHandler(authService)
	adminHandler := handlers.NewAdminHandler(authService)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:            healthHandler,
		Auth:              authHandler,
		Admin:             adminHandler,
		AdminMiddleware:   adminMiddleware,
		SessionMiddleware: sessionMiddleware,
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
