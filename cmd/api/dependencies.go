package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	importhandler "github.com/FACorreiaa/portfolio-importer/internal/domain/import/handler"
	"github.com/FACorreiaa/portfolio-importer/internal/domain/import/mapping"
	importservice "github.com/FACorreiaa/portfolio-importer/internal/domain/import/service"
	"github.com/FACorreiaa/portfolio-importer/internal/domain/ledger"
	"github.com/FACorreiaa/portfolio-importer/pkg/config"
	"github.com/FACorreiaa/portfolio-importer/pkg/cron"
	"github.com/FACorreiaa/portfolio-importer/pkg/db"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	Logger *slog.Logger
	Pool   *pgxpool.Pool

	// Repositories
	MappingRepo mapping.Repository

	// Services
	LedgerClient  ledger.Client
	ImportService *importservice.ImportService
	Scheduler     *cron.Scheduler

	// Handlers
	ImportHandler *importhandler.ImportHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}
	if err := deps.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}
	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}
	if err := deps.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase opens the connection pool and runs migrations
func (d *Dependencies) initDatabase(ctx context.Context) error {
	pool, err := db.NewPool(ctx, d.Config.Database.DSN())
	if err != nil {
		return err
	}
	d.Pool = pool

	if err := db.Migrate(pool, d.Logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

func (d *Dependencies) initRepositories() error {
	d.MappingRepo = mapping.NewPostgresRepository(d.Pool)

	d.Logger.Info("repositories initialized")
	return nil
}

func (d *Dependencies) initServices() error {
	d.LedgerClient = ledger.NewHTTPClient(
		d.Config.Ledger.BaseURL,
		d.Config.Ledger.APIKey,
		d.Config.Ledger.Timeout,
		d.Logger,
	)

	d.ImportService = importservice.NewImportService(d.MappingRepo, d.LedgerClient, d.Logger).
		WithSessionTTL(d.Config.Import.SessionTTL).
		WithDefaultCurrency(d.Config.Import.DefaultCurrency)

	// Background reaper for abandoned wizard sessions
	d.Scheduler = cron.NewScheduler(d.ImportService.Sessions(), d.Logger)

	d.Logger.Info("services initialized")
	return nil
}

func (d *Dependencies) initHandlers() error {
	d.ImportHandler = importhandler.NewImportHandler(d.ImportService, d.Logger).
		WithRateLimit(d.Config.Server.RateLimitPerSecond, d.Config.Server.RateLimitBurst)

	d.Logger.Info("handlers initialized")
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.Scheduler != nil {
		<-d.Scheduler.Stop().Done()
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
	d.Logger.Info("cleanup completed")
}
