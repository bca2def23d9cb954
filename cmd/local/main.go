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

	"inquiry-agent/internal/app"
	"inquiry-agent/internal/config"
	"inquiry-agent/internal/devserver"
	"inquiry-agent/internal/repository"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("local server stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.Require("SQLITE_PATH"); err != nil {
		return err
	}
	store, err := repository.OpenSQLite(ctx, cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer store.Close()

	// Local runs read API keys from the environment only.
	secrets, err := app.ResolveSecrets(cfg, nil)
	if err != nil {
		return err
	}
	svc, err := app.Build(cfg, app.Stores{RateLimit: store, Inquiries: store}, secrets, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	router, err := devserver.NewRouter(svc.Handler)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go sweepLoop(ctx, svc, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("local server listening", "addr", srv.Addr, "sqlite", cfg.SQLitePath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// sweepLoop stands in for the scheduled sweep Lambda.
func sweepLoop(ctx context.Context, svc *app.Service, logger *slog.Logger) {
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.Limiter.Sweep(ctx)
			if err != nil {
				logger.Warn("rate limit sweep failed", "err", err)
				continue
			}
			logger.Debug("rate limit sweep complete", "deleted", n)
		}
	}
}
