// Package main is the entry point for the bioclim extraction API server.
//
// It loads the configuration, parses the Earth Engine service-account key
// (startup-fatal when absent or malformed), builds the HTTP server on the
// core chassis (middleware, routing, health checks, metrics), and starts
// listening for requests.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
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

	"bioclim/internal/api/handlers"
	"bioclim/internal/config"
	"bioclim/internal/core"
	"bioclim/internal/external"
	"bioclim/internal/geometry"
	"bioclim/internal/input"
	"bioclim/internal/observability"
	"bioclim/internal/results"
	"bioclim/internal/types"
	"bioclim/internal/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig(config.NewFileProvider())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("bioclim API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
		"dataset", cfg.Extract.Dataset,
	)

	// The service cannot extract anything without platform credentials, so a
	// missing or malformed service-account key halts startup. The first token
	// exchange still happens lazily on the first extraction request.
	rawKey, err := cfg.EarthEngine.RawServiceAccount()
	if err != nil {
		return fmt.Errorf("loading service account: %w", err)
	}
	account, err := types.ParseServiceAccount(rawKey)
	if err != nil {
		return fmt.Errorf("parsing service account: %w", err)
	}

	metrics := observability.NewCollector(cfg.Build.Version)

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = metrics
	srv.MetricsHandler = metrics.Handler()

	// Upstream plumbing. One HTTP client serves both the token exchange and
	// the sampling calls; its idle connections are released on shutdown.
	httpClient := &http.Client{Timeout: cfg.EarthEngine.Timeout}
	srv.RegisterCleanup(func(context.Context) error {
		httpClient.CloseIdleConnections()
		return nil
	})

	handle := external.NewCredentialHandle(account, httpClient)
	fetcher := external.NewClient(httpClient, handle, external.ClientConfig{
		BaseURL:     cfg.EarthEngine.BaseURL,
		Dataset:     cfg.Extract.Dataset,
		ScaleMeters: cfg.Extract.ScaleMeters,
		UserAgent:   cfg.Service + "/" + cfg.Build.Version,
		Logger:      logger,
		Metrics:     metrics,
	})

	extractHandler := handlers.NewExtractHandler(handlers.ExtractHandlerConfig{
		Input:     input.NewService(cfg.Upload, cfg.Labels),
		Loader:    geometry.NewLoader(cfg.Upload.TempDir, logger),
		Fetcher:   fetcher,
		Assembler: results.NewAssembler(cfg.Extract, logger),
		Validator: srv.Validator,
		Logger:    logger,
		Extract:   cfg.Extract,
		MaxBytes:  cfg.Upload.MaxBytes,
	})
	variablesHandler := handlers.NewVariablesHandler(cfg.Extract, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		extractHandler.RegisterRoutes,
		variablesHandler.RegisterRoutes,
	)

	srv.HealthProbes = append(srv.HealthProbes,
		external.NewCredentialProbe(handle),
		geometry.NewTempDirProbe(cfg.Upload.TempDir),
	)

	page, err := web.NewPage(web.PageConfig{
		Extract: cfg.Extract,
		Upload:  cfg.Upload,
		Version: cfg.Build.Version,
	})
	if err != nil {
		return fmt.Errorf("building map page: %w", err)
	}
	srv.PageHandler = page

	// Mount all routes (middleware chain + versioned endpoints + health).
	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Channel to capture server errors from ListenAndServe.
	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown: drain in-flight extractions before releasing resources.
	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}
