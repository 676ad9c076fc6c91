// Command server runs the import session API.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/txnimport/internal/attachment"
	"github.com/JonMunkholm/txnimport/internal/batch"
	"github.com/JonMunkholm/txnimport/internal/config"
	"github.com/JonMunkholm/txnimport/internal/core"
	"github.com/JonMunkholm/txnimport/internal/logging"
	"github.com/JonMunkholm/txnimport/internal/parser"
	"github.com/JonMunkholm/txnimport/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	client, err := batch.NewClient(nil, cfg.Batch.EndpointURL, cfg.Batch.APIKey, cfg.Batch.Timeout)
	if err != nil {
		slog.Error("failed to create batch client", "error", err)
		os.Exit(1)
	}

	limiter := core.NewParseLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)
	manager := core.NewManager(client, limiter, core.ManagerConfig{
		Session: core.SessionConfig{
			LoadTimeout:   cfg.Upload.LoadTimeout,
			SubmitTimeout: cfg.Batch.Timeout,
			MaxRows:       cfg.Upload.MaxRows,
		},
		IdleTTL:       cfg.Session.IdleTTL,
		SweepSchedule: cfg.Session.SweepSchedule,
		MaxSessions:   cfg.Session.Max,
	})
	if err := manager.StartSweeper(); err != nil {
		slog.Error("failed to start session sweeper", "error", err)
		os.Exit(1)
	}

	parsers := parser.DefaultRegistry(parser.DefaultColumns())
	receipts := attachment.NewValidator(cfg.Receipt.MaxSize, cfg.Receipt.AllowedTypes)
	slog.Info("parsers registered", "extensions", parsers.Extensions())

	server := web.NewServer(manager, parsers, receipts, cfg)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := limiter.Status(); status.Active > 0 {
			slog.Info("waiting for file loads to complete", "active", status.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("file loads did not complete in time", "error", err)
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		if err := manager.Shutdown(shutdownCtx); err != nil {
			slog.Warn("sessions did not stop in time", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-stopped
	slog.Info("server stopped")
}
