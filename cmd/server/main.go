package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yonatanl/tamlil/internal/config"
	"github.com/yonatanl/tamlil/internal/platform/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log := logger.Setup(cfg.Server.LogLevel)
	log.Info("starting tamlil server",
		"port", cfg.Server.Port,
		"snapshot_path", cfg.Storage.SnapshotPath,
		"idle_shutdown", cfg.Janitor.IdleShutdown)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Idle shutdown reuses the same signal path as Ctrl+C, so the normal
	// graceful teardown runs either way.
	shutdown := func() {
		if err := syscall.Kill(os.Getpid(), syscall.SIGTERM); err != nil {
			log.Error("failed to signal shutdown", "error", err)
		}
	}

	app, err := newApplication(ctx, cfg, log, shutdown)
	if err != nil {
		return err
	}
	app.start(ctx)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: app.handler.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		log.Error("http server failed", "error", err)
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", "error", err)
	}

	app.cleanup()
	log.Info("server stopped")
	return nil
}
