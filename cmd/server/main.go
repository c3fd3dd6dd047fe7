// Package main provides the entry point for the slideshow API server.
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

	"github.com/maauso/slideshow-api/internal/bootstrap"
	"github.com/maauso/slideshow-api/internal/config"
	"github.com/maauso/slideshow-api/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting slideshow API",
		slog.Int("port", cfg.Port),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.String("temp_dir", cfg.TempDir),
		slog.String("output_dir", cfg.OutputDir),
		slog.String("canvas", fmt.Sprintf("%dx%d", cfg.CanvasWidth, cfg.CanvasHeight)),
		slog.Int("fps", cfg.FPS),
		slog.Int("max_concurrent_encodes", cfg.MaxConcurrentEncodes),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
	)

	// Initialize dependencies using bootstrap
	deps, err := bootstrap.NewDependencies(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	// Background renders are cancelled once the server stops accepting requests
	jobsCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	// Initialize HTTP handlers and router
	handlers := server.NewHandlers(deps.RenderService, logger,
		server.WithMaxBodyBytes(cfg.MaxBodyBytes),
		server.WithBaseContext(jobsCtx),
	)
	router := server.NewRouter(handlers, logger, server.DefaultConfig())

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  120 * time.Second, // Large base64 uploads
		WriteTimeout: 300 * time.Second, // Video downloads
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			slog.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-shutdownCh:
		logger.Info("received shutdown signal",
			slog.String("signal", sig.String()),
		)
	case err := <-errCh:
		return err
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	shutdownErr := srv.Shutdown(ctx)

	// Cancel in-flight renders and wait for them to record their status
	// and remove their temporary files.
	cancelJobs()
	if err := handlers.Wait(ctx); err != nil {
		logger.Warn("background renders still running at exit",
			slog.String("error", err.Error()),
		)
	}

	if shutdownErr != nil {
		return fmt.Errorf("shutdown failed: %w", shutdownErr)
	}

	logger.Info("server stopped gracefully")
	return nil
}
