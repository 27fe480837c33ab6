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

	"github.com/joho/godotenv"

	"github.com/xiaot623/agentmcp/internal/adapter/agentclient"
	"github.com/xiaot623/agentmcp/internal/config"
	"github.com/xiaot623/agentmcp/internal/diagnostics"
	"github.com/xiaot623/agentmcp/internal/hub"
	"github.com/xiaot623/agentmcp/internal/logging"
	"github.com/xiaot623/agentmcp/internal/metrics"
	"github.com/xiaot623/agentmcp/internal/policy"
	"github.com/xiaot623/agentmcp/internal/service"
	"github.com/xiaot623/agentmcp/internal/store"
	handler "github.com/xiaot623/agentmcp/internal/transport/http"
)

const policyReloadDebounce = 500 * time.Millisecond

func main() {
	// .env is optional
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	logger.Info("starting coordinator",
		"http_port", cfg.HTTPPort,
		"database_driver", cfg.DatabaseDriver,
		"dispatch_timeout", cfg.DispatchTimeout,
		"scheduler_interval", cfg.SchedulerInterval,
		"policy_file", cfg.PolicyFile,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stopGops, err := diagnostics.Start(cfg.GopsAddr, "")
	if err != nil {
		logger.Error("failed to start gops agent", "error", err)
		os.Exit(1)
	}
	defer stopGops()

	// Initialize store
	db, err := store.NewSQLStore(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize policy engine
	policyEngine, err := policy.NewEngineFromFile(ctx, cfg.PolicyFile)
	if err != nil {
		logger.Error("failed to initialize policy engine", "error", err)
		os.Exit(1)
	}
	if cfg.PolicyFile != "" {
		go func() {
			if err := policyEngine.Watch(ctx, cfg.PolicyFile, policyReloadDebounce); err != nil {
				logger.Warn("policy watcher stopped", "error", err)
			}
		}()
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	// Event feed
	eventHub := hub.NewHub()
	go eventHub.Run(ctx)

	// Initialize service
	svc := service.New(db, agentclient.NewClient(cfg.DispatchTimeout), cfg, policyEngine, m, eventHub)
	if cfg.SchedulerInterval > 0 {
		go svc.RunScheduler(ctx, cfg.SchedulerInterval)
	}

	server := handler.NewServer(svc, eventHub, m, logger)

	serveErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()
	logger.Info("coordinator API started", "port", cfg.HTTPPort)

	// Wait for interrupt signal
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		logger.Error("failed to start server", "error", err)
	}

	logger.Info("shutting down coordinator")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("failed to shut down server gracefully", "error", err)
	}

	logger.Info("coordinator stopped")
}
