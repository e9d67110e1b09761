package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/ledgerline/statement-analyzer/pkg/config"
	"github.com/ledgerline/statement-analyzer/pkg/middleware"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := InitDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", "error", err)
		os.Exit(1)
	}
	defer deps.Cleanup()

	servers := []*http.Server{newAPIServer(deps)}
	if cfg.Observability.MetricsEnabled {
		servers = append(servers, newMetricsServer(deps))
	}
	if cfg.Profiling.Enabled {
		servers = append(servers, newProfilingServer(cfg))
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		logger.Info("server listening", "addr", srv.Addr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("server %s: %w", srv.Addr, err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "addr", srv.Addr, "error", err)
		}
	}

	logger.Info("servers stopped")
}

// newLogger builds the process logger from the logging configuration.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// newAPIServer assembles the statement API behind the middleware chain:
// CORS, request IDs, request logging and metrics, then rate limiting, so
// rejected requests still show up in the logs and counters.
func newAPIServer(deps *Dependencies) *http.Server {
	mux := http.NewServeMux()
	deps.StatementHandler.RegisterRoutes(mux)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   deps.Config.Server.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	var h http.Handler = mux
	h = middleware.RateLimit(float64(deps.Config.Server.RateLimitPerSecond), deps.Config.Server.RateLimitBurst)(h)
	h = middleware.Logging(deps.Logger, deps.Metrics)(h)
	h = middleware.RequestID(h)
	h = corsHandler.Handler(h)

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", deps.Config.Server.Host, deps.Config.Server.Port),
		Handler:           h,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// newMetricsServer exposes the Prometheus registry on its own port so the
// scrape endpoint stays off the public API surface.
func newMetricsServer(deps *Dependencies) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", deps.Config.Server.Host, deps.Config.Observability.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// newProfilingServer serves pprof when profiling is enabled.
func newProfilingServer(cfg *config.Config) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Profiling.Port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}
