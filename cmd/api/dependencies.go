package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ledgerline/statement-analyzer/internal/domain/statement/analyzer"
	"github.com/ledgerline/statement-analyzer/internal/domain/statement/handler"
	"github.com/ledgerline/statement-analyzer/internal/domain/statement/parser"
	"github.com/ledgerline/statement-analyzer/internal/domain/statement/repository"
	"github.com/ledgerline/statement-analyzer/internal/domain/statement/service"
	"github.com/ledgerline/statement-analyzer/pkg/config"
	"github.com/ledgerline/statement-analyzer/pkg/db"
	"github.com/ledgerline/statement-analyzer/pkg/metrics"
)

// dbHealthTimeout bounds the /health/db ping.
const dbHealthTimeout = 3 * time.Second

// Dependencies holds all application dependencies
type Dependencies struct {
	Config   *config.Config
	DB       *pgxpool.Pool
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	// Repositories
	StatementRepo *repository.PostgresRepository

	// Services
	StatementService *service.Service

	// Handlers
	StatementHandler *handler.StatementHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	// Initialize database
	if err := deps.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	deps.initMetrics()
	deps.initRepositories()
	deps.initServices()
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase(ctx context.Context) error {
	pool, err := db.Open(ctx, d.Config.Database, d.Logger)
	if err != nil {
		return err
	}
	d.DB = pool

	// Run migrations
	if err := db.Migrate(ctx, pool, d.Logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// initMetrics sets up the Prometheus registry with runtime collectors and
// the application metric set.
func (d *Dependencies) initMetrics() {
	d.Registry = prometheus.NewRegistry()
	d.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	d.Metrics = metrics.New(d.Registry)

	d.Logger.Info("metrics registered")
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() {
	d.StatementRepo = repository.NewPostgresRepository(d.DB)

	d.Logger.Info("repositories initialized")
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() {
	svcConfig := service.Config{
		MaxUploadBytes: d.Config.Upload.MaxBytes,
		Parser: parser.Config{
			HeaderLines: d.Config.Upload.HeaderScanLines,
		},
	}

	d.StatementService = service.NewService(d.StatementRepo, svcConfig, d.Logger).
		WithAnalyzer(analyzer.NewReportAnalyzer(d.Logger)).
		WithMetrics(d.Metrics)

	d.Logger.Info("services initialized")
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() {
	d.StatementHandler = handler.NewStatementHandler(d.StatementService, d.Config.Upload.MaxBytes, d.Logger).
		WithDBHealth(func(ctx context.Context) error {
			return db.HealthCheck(ctx, d.DB, dbHealthTimeout)
		})

	d.Logger.Info("handlers initialized")
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	db.Close(d.DB, d.Logger)
	d.Logger.Info("cleanup completed")
}
