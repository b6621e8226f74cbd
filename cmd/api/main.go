package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/incident-service/internal/api/http"
	"github.com/spec-kit/incident-service/internal/api/http/handlers"
	"github.com/spec-kit/incident-service/internal/auth"
	"github.com/spec-kit/incident-service/internal/config"
	"github.com/spec-kit/incident-service/internal/events"
	"github.com/spec-kit/incident-service/internal/observability"
	"github.com/spec-kit/incident-service/internal/persistence"
	"github.com/spec-kit/incident-service/internal/repository"
	"github.com/spec-kit/incident-service/internal/service"
	"github.com/spec-kit/incident-service/internal/storage"
	"github.com/spec-kit/incident-service/internal/worker"
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

	blobs, err := storage.NewFileBlobStore(cfg.Blob.Dir, cfg.Blob.BaseURL, cfg.Blob.URLSigningSecret, cfg.Blob.SignedURLTTL())
	if err != nil {
		logger.Fatal("failed to init blob store", zap.Error(err))
	}

	pool := pg.PoolHandle()
	profileRepo := repository.NewProfileRepository(pool)
	incidentRepo := repository.NewIncidentRepository(pool)
	assignmentRepo := repository.NewAssignmentRepository(pool)
	statusLogRepo := repository.NewStatusLogRepository(pool)
	unitRepo := repository.NewAuthorityUnitRepository(pool)
	zoneRepo := repository.NewZoneRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	responseRepo := repository.NewResponseRepository(pool)
	photoRepo := repository.NewPhotoRepository(pool)
	txManager := repository.NewTxManager(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	calendar := service.NewWeekendCalendar(cfg.Calendar.Holidays)
	matcher := service.NewAssignmentMatcher(logger, metrics)

	lifecycleService := service.NewLifecycleService(service.LifecycleDependencies{
		TxManager:     txManager,
		IncidentRepo:  incidentRepo,
		StatusLogRepo: statusLogRepo,
		Matcher:       matcher,
		Calendar:      calendar,
		Dispatcher:    dispatcher,
		Metrics:       metrics,
		Logger:        logger,
	})
	acceptanceService := service.NewAcceptanceService(assignmentRepo, unitRepo, lifecycleService, dispatcher, logger)
	incidentService := service.NewIncidentService(service.IncidentDependencies{
		IncidentRepo:   incidentRepo,
		StatusLogRepo:  statusLogRepo,
		AssignmentRepo: assignmentRepo,
		UnitRepo:       unitRepo,
		CommentRepo:    commentRepo,
		ResponseRepo:   responseRepo,
		PhotoRepo:      photoRepo,
		BlobStore:      blobs,
		Dispatcher:     dispatcher,
	})
	authService := service.NewAuthService(*cfg, profileRepo)
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	sweepWorker := worker.NewSweepWorker(lifecycleService, redis.Client, logger, cfg.Sweep)
	if err := sweepWorker.Start(); err != nil {
		logger.Fatal("failed to start sla sweep", zap.Error(err))
	}
	defer sweepWorker.Stop()

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), profileRepo)

	app := fiber.New(fiber.Config{BodyLimit: 16 * 1024 * 1024})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Incidents:      handlers.NewIncidentsHandler(lifecycleService, incidentService),
		Authority:      handlers.NewAuthorityHandler(lifecycleService, acceptanceService, incidentService),
		Admin:          handlers.NewAdminHandler(zoneRepo, categoryRepo, unitRepo, incidentService, sweepWorker),
		Media:          handlers.NewMediaHandler(blobs),
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
