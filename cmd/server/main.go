package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/vatdesk/api/internal/config"
	apihandlers "github.com/vatdesk/api/internal/handlers/api"
	"github.com/vatdesk/api/internal/middleware"
	"github.com/vatdesk/api/internal/services/analysis"
	"github.com/vatdesk/api/internal/storage"
	"github.com/vatdesk/api/internal/vat"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	rules, err := analysis.LoadMappingRules(cfg.VAT.MappingFile)
	if err != nil {
		slog.Error("failed to load mapping rules", "error", err)
		os.Exit(1)
	}

	// Initialize VAT engine
	rates := vat.NewDefaultRateCache()
	engine := vat.NewEngine(rates, vat.DiagnosticOptions{
		RateCheck:     cfg.VAT.RateCheckEnabled,
		RateTolerance: decimal.NewFromFloat(cfg.VAT.RateTolerance),
	})
	analysisSvc := analysis.NewService(engine, rules, logger)

	archive, err := newArchive(context.Background(), cfg.Archive)
	if err != nil {
		slog.Error("failed to initialize archive storage", "error", err)
		os.Exit(1)
	}
	if archive != nil {
		analysisSvc.SetArchive(archive)
	}

	slog.Info("vat engine ready",
		"rate_countries", rates.CountryCount(),
		"rates", rates.RateCount(),
		"rate_check", cfg.VAT.RateCheckEnabled,
		"mapping_file", cfg.VAT.MappingFile,
		"archive", cfg.Archive.Backend,
	)

	mux := http.NewServeMux()
	apihandlers.NewAnalysisHandler(analysisSvc, cfg.MaxUploadBytes, logger).RegisterRoutes(mux)
	apihandlers.NewHealthHandler(rates, version).RegisterRoutes(mux)
	if cfg.MetricsEnabled {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	chain := otelhttp.NewHandler(middleware.Stack(mux, cfg, logger), "vatdesk")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      chain,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		slog.Info("API server starting", "port", cfg.Port, "version", version)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		slog.Error("server error", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("api server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}

// newArchive builds the configured archive backend, or nil when archiving is
// disabled.
func newArchive(ctx context.Context, cfg config.ArchiveConfig) (storage.Storage, error) {
	switch cfg.Backend {
	case config.ArchiveLocal:
		return storage.NewLocal(cfg.Dir), nil
	case config.ArchiveS3:
		return storage.NewS3(ctx, storage.S3Config{
			Endpoint:       cfg.S3Endpoint,
			Region:         cfg.S3Region,
			AccessKey:      cfg.S3AccessKey,
			SecretKey:      cfg.S3SecretKey,
			ForcePathStyle: cfg.S3ForcePathStyle,
			Bucket:         cfg.S3Bucket,
			Prefix:         cfg.S3Prefix,
		})
	}
	return nil, nil
}
