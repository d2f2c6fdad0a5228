package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/balances"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/audit"
	audithttp "github.com/odyssey-erp/odyssey-ledger/internal/audit/http"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	integrationhttp "github.com/odyssey-erp/odyssey-ledger/internal/integration/http"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand(serve).ExecuteContext(ctx); err != nil {
		slog.Default().Error("odyssey", slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	if err != nil {
		logger.Warn("redis unavailable, reports served uncached", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	var reportCache *reports.Cache
	if err == nil {
		reportCache = reports.NewCache(redisClient, cfg.ReportCacheTTL)
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)

	registry := accounts.NewRegistry(accounts.NewRepository(dbpool), logger)

	balanceRepo := balances.NewRepository(dbpool)
	calculator := balances.NewCalculator(balanceRepo, logger).
		WithRepairOnRead(cfg.RepairOnRead).
		WithRecorder(metrics)
	reportService := reports.NewService(balanceRepo, calculator, reportCache, logger)

	mode, err := cfg.LedgerReversalMode()
	if err != nil {
		return err
	}
	journalService := journals.NewService(journals.NewRepository(dbpool), auditLogger, logger)
	journalService.WithReversalMode(mode)
	journalService.WithInvalidator(reportService)
	journalService.WithRecorder(metrics)

	mappingRepo := mappings.NewRepository(dbpool)
	hooks := integration.NewHooks(journalService, registry, cfg.Accounts, logger).WithOverrides(mappingRepo)

	auditService := audit.NewService(audit.NewRepository(dbpool))

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		return fmt.Errorf("jobs client: %w", err)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		AccountsHandler: accounts.NewHandler(logger, registry),
		JournalsHandler: journals.NewHandler(logger, journalService).WithIdempotency(shared.NewIdempotencyStore(dbpool)),
		ReportsHandler:  reports.NewHandler(logger, reportService),
		AuditHandler:    audithttp.NewHandler(logger, auditService),
		JobsHandler:     jobs.NewHandler(inspector, jobClient, logger),
		DocumentHandler: integrationhttp.NewHandler(logger, hooks),
		MappingHandler:  integrationhttp.NewMappingHandler(logger, mappingRepo, cfg.Accounts),
		Metrics:         metrics,
		Checks: map[string]app.Pinger{
			"postgres": app.PingFunc(dbpool.Ping),
			"redis":    app.PingFunc(cache.Pinger(redisClient)),
		},
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: cfg.AppReadTimeout,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("reversal_mode", string(mode)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return nil
}
