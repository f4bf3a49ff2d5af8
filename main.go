package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"go.uber.org/zap"

	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/cad"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/config"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/database"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/handlers"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/logging"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/middleware"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/notify"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/repositories"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/services"
	"github.com/SheetMetalConnect/eryxon-flow-sub006/pkg/webhook"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("redis_host", cfg.Redis.Host),
		zap.Bool("cad_enabled", cfg.CAD.IsAvailable()),
		zap.Int("webhook_endpoints", len(cfg.Webhook.Endpoints)))

	ctx := context.Background()

	// Database connection pool
	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database",
			zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	// Migrations run through database/sql (required by golang-migrate)
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open sql connection",
			zap.String("error", logging.SanitizeError(err)))
	}
	if err := database.RunMigrations(sqlDB, cfg.Database.MigrationsPath, logger); err != nil {
		sqlDB.Close()
		logger.Fatal("Failed to run migrations",
			zap.String("error", logging.SanitizeError(err)))
	}
	sqlDB.Close()

	// Change notifier: Redis when configured, in-process otherwise
	var notifier notify.Notifier
	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis",
			zap.String("error", logging.SanitizeError(err)))
	}
	if redisClient != nil {
		redisNotifier := notify.NewRedisNotifier(redisClient, logger)
		defer redisNotifier.Close()
		notifier = redisNotifier
		logger.Info("Change notifier: redis pub/sub")
	} else {
		memNotifier := notify.NewMemoryNotifier()
		defer memNotifier.Close()
		notifier = memNotifier
		logger.Info("Change notifier: in-process")
	}

	// Outbound webhook dispatcher
	dispatcher := webhook.NewDispatcher(cfg.Webhook.Endpoints,
		time.Duration(cfg.Webhook.TimeoutSeconds)*time.Second, logger)

	// CAD microservice client (disabled when unconfigured)
	cadClient := cad.NewClient(&cfg.CAD, logger)

	// Repositories
	cellRepo := repositories.NewCellRepository()
	jobRepo := repositories.NewJobRepository()
	partRepo := repositories.NewPartRepository()
	operationRepo := repositories.NewOperationRepository()
	timeEntryRepo := repositories.NewTimeEntryRepository()
	batchRepo := repositories.NewBatchRepository()

	// Services
	capacityService := services.NewCapacityService(cellRepo, operationRepo, cfg.Capacity.HistoryDays, logger)
	routingService := services.NewRoutingService(partRepo, jobRepo, operationRepo, logger)
	batchService := services.NewBatchService(batchRepo, operationRepo, cellRepo, notifier, dispatcher, logger)
	timeclockService := services.NewTimeclockService(timeEntryRepo, operationRepo, notifier, dispatcher, logger)
	assemblyService := services.NewAssemblyService(partRepo, logger)
	partService := services.NewPartService(partRepo, cadClient, notifier, logger)

	// Tenant scoping middleware: every /api route runs on a connection
	// bound to the caller's tenant via RLS.
	tenantContext := services.NewTenantContextFunc(db)
	tenant := middleware.NewTenantMiddleware(tenantContext, logger)

	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewCellsHandler(capacityService, batchService, logger).RegisterRoutes(mux, tenant)
	handlers.NewRoutingHandler(routingService, logger).RegisterRoutes(mux, tenant)
	handlers.NewBatchesHandler(batchService, logger).RegisterRoutes(mux, tenant)
	handlers.NewTimeclockHandler(timeclockService, logger).RegisterRoutes(mux, tenant)
	handlers.NewPartsHandler(partService, assemblyService, logger).RegisterRoutes(mux, tenant)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting eryxon-flow engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
