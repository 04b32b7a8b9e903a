package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/veldt-ai/ingest-engine/pkg/blobstore"
	"github.com/veldt-ai/ingest-engine/pkg/config"
	"github.com/veldt-ai/ingest-engine/pkg/database"
	"github.com/veldt-ai/ingest-engine/pkg/handlers"
	"github.com/veldt-ai/ingest-engine/pkg/logging"
	"github.com/veldt-ai/ingest-engine/pkg/repositories"
	"github.com/veldt-ai/ingest-engine/pkg/retry"
	"github.com/veldt-ai/ingest-engine/pkg/services"
	"github.com/veldt-ai/ingest-engine/pkg/tracing"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("database", cfg.Database.Host),
		zap.Bool("secondary_store_enabled", cfg.Ingest.SecondaryStoreEnabled))

	if err := setupTracing(); err != nil {
		logger.Fatal("Failed to set up tracing", zap.Error(err))
	}

	ctx := context.Background()

	// Migrations run through database/sql; the service itself uses pgx.
	migrationDB, err := sql.Open("pgx", cfg.Database.URL())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, cfg.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = migrationDB.Close()

	db, err := retry.DoWithResult(ctx, nil, func() (*database.DB, error) {
		return database.NewConnection(ctx, &database.Config{
			URL:            cfg.Database.URL(),
			MaxConnections: cfg.Database.MaxConnections,
		})
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	var staging blobstore.StagingStore
	if redisClient != nil {
		staging = blobstore.NewRedisStagingStore(
			redisClient,
			time.Duration(cfg.Ingest.StagingTTLMinutes)*time.Minute,
			logger)
	}
	if cfg.Ingest.SecondaryStoreEnabled && staging == nil {
		logger.Warn("Secondary store enabled but Redis is not configured; staging writes will be skipped")
	}

	assetRepo := repositories.NewAssetRepository()
	auditRepo := repositories.NewIngestAuditRepository()
	resolver := services.NewDeduplicationResolver(assetRepo, logger)
	blobs := blobstore.NewPostgresBlobStore(logger)
	recorder := tracing.NewRecorder(logger)

	coordinator := services.NewIngestionCoordinator(
		assetRepo, auditRepo, resolver, blobs, staging, recorder, cfg.Ingest, logger)

	scopes := database.NewTenantScopeProvider(db)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewIngestHandler(coordinator, scopes, logger).RegisterRoutes(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting ingest-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

// setupTracing installs a trace provider so recorder spans are exported.
// The stdout exporter keeps spans in the structured log stream; swapping
// in an OTLP exporter is a config concern for deployments with a collector.
func setupTracing() error {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return err
	}
	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	return nil
}
