package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	pkgvalidator "github.com/teamsync/sprint-scribe/pkg/validator"

	"github.com/teamsync/sprint-scribe/internal/adapter/handler"
	"github.com/teamsync/sprint-scribe/internal/adapter/repository"
	"github.com/teamsync/sprint-scribe/internal/infrastructure/cache"
	"github.com/teamsync/sprint-scribe/internal/infrastructure/database"
	"github.com/teamsync/sprint-scribe/internal/infrastructure/external/tracker"
	"github.com/teamsync/sprint-scribe/internal/infrastructure/storage"
	"github.com/teamsync/sprint-scribe/internal/usecase/extraction"
	"github.com/teamsync/sprint-scribe/internal/usecase/ingest"
	"github.com/teamsync/sprint-scribe/internal/usecase/memory"
	"github.com/teamsync/sprint-scribe/internal/usecase/reconcile"
	"github.com/teamsync/sprint-scribe/internal/usecase/sprint"
	pkgai "github.com/teamsync/sprint-scribe/pkg/ai"
	"github.com/teamsync/sprint-scribe/pkg/config"
	"github.com/teamsync/sprint-scribe/pkg/retry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Echo instance
	e := echo.New()

	// Register validator for request validation
	e.Validator = pkgvalidator.New()

	// Configure Echo
	e.HideBanner = true
	e.HidePort = false

	// Custom logger format
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} | ${status} | ${method} ${uri} | ${latency_human}\n",
	}))

	// Recover from panics
	e.Use(middleware.Recover())

	// CORS middleware
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, "X-Signature", "X-Request-ID"},
	}))

	// Initialize dependencies
	log.Println("🔧 Initializing dependencies...")

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize Database
	log.Println("📦 Connecting to database...")
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB(db)

	// Run AutoMigrate only when explicitly enabled in config.
	// Production deployments should manage schema via sql-migrate.
	if cfg.Database.AutoMigrate {
		if cfg.Server.Environment == "production" {
			log.Fatalf("AutoMigrate is enabled in production. Disable DB_AUTO_MIGRATE or manage schema with sql-migrate.")
		}
		log.Println("🔄 Running GORM AutoMigrate (development only) ...")
		if err := database.AutoMigrate(db); err != nil {
			log.Fatalf("Failed to run AutoMigrate: %v", err)
		}
	} else {
		if err := database.Migrate(db); err != nil {
			log.Fatalf("Failed to apply migrations: %v", err)
		}
	}

	// Initialize the per-ticket lock. Redis when configured, otherwise an
	// in-process lock good enough for a single instance.
	var locker cache.TicketLocker
	if cfg.Redis.Host != "" {
		log.Println("📦 Connecting to Redis...")
		redisClient, err := cache.NewRedisClient(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		locker = cache.NewRedisLocker(redisClient, cfg.Reconcile.LockTTL)
	} else {
		log.Println("⚠️  Redis not configured, using in-process ticket locks")
		locker = cache.NewLocalLocker()
	}

	// Initialize repositories
	log.Println("⚙️  Initializing repositories...")
	meetingRepo := repository.NewMeetingRepository(db)
	jobRepo := repository.NewMeetingJobRepository(db)
	factRepo := repository.NewFactRepository(db)
	reconRepo := repository.NewReconJobRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	memoryRepo := repository.NewMemoryRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)

	// Initialize collaborator clients
	log.Println("🤖 Initializing collaborator clients...")
	llmClient := pkgai.NewClient(&cfg.LLM)
	trackerClient := tracker.NewClient(&cfg.Tracker)

	var archiver ingest.Archiver
	if cfg.Storage.Enabled {
		log.Println("🗄️  Initializing transcript archival...")
		minioClient, err := storage.NewMinIOClient(&cfg.Storage)
		if err != nil {
			log.Fatalf("Failed to initialize object storage: %v", err)
		}
		archiver = minioClient
	}

	// Initialize usecase services
	log.Println("✨ Initializing services...")
	llmPolicy := retry.Default(cfg.LLM.MaxAttempts)
	trackerPolicy := retry.Default(cfg.Tracker.MaxAttempts)

	extractionService := extraction.NewService(
		llmClient,
		extraction.NewSchemaValidator(cfg.Tracker.StoryPointsField),
		llmPolicy,
		&cfg.Extract,
		logger,
	)
	memoryService := memory.NewService(llmClient, memoryRepo, llmPolicy, &cfg.Memory, logger)
	reconcileService := reconcile.NewService(
		trackerClient,
		locker,
		factRepo,
		reconRepo,
		auditRepo,
		reviewRepo,
		meetingRepo,
		&cfg.Reconcile,
		trackerPolicy,
		cfg.Tracker.Project,
		logger,
	)
	sprintService := sprint.NewService(
		trackerClient,
		snapshotRepo,
		trackerPolicy,
		&cfg.Sprint,
		cfg.Tracker.StoryPointsField,
		logger,
	)
	ingestService := ingest.NewService(
		meetingRepo,
		jobRepo,
		factRepo,
		reviewRepo,
		extractionService,
		reconcileService,
		memoryService,
		archiver,
		trackerClient,
		&cfg.Ingest,
		cfg.Tracker.Project,
		cfg.Extract.ContextExcerpts,
		logger,
	)

	// Start the worker pool that drains meeting jobs
	log.Println("👷 Starting worker pool...")
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if err := ingestService.StartWorkerPool(workerCtx); err != nil {
		log.Fatalf("Failed to start worker pool: %v", err)
	}

	// Initialize handlers
	log.Println("🛣️  Setting up routes...")
	meetingHandler := handler.NewMeetingHandler(ingestService, reconcileService, cfg.Server.WebhookSecret, logger)
	memoryHandler := handler.NewMemoryHandler(memoryService, logger)
	reviewHandler := handler.NewReviewHandler(reviewRepo, logger)
	auditHandler := handler.NewAuditHandler(auditRepo, logger)
	sprintHandler := handler.NewSprintHandler(sprintService, logger)

	router := handler.NewRouter(cfg, meetingHandler, memoryHandler, reviewHandler, auditHandler, sprintHandler)
	router.Setup(e)

	// Start server
	go func() {
		addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
		log.Printf("🚀 Starting server on %s", addr)
		log.Printf("📝 Environment: %s", cfg.Server.Environment)
		log.Printf("🔗 Health check: http://%s/health", addr)

		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	if err := ingestService.StopWorkerPool(); err != nil {
		log.Printf("⚠️  Worker pool shutdown: %v", err)
	}
	workerCancel()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server stopped gracefully")
}
