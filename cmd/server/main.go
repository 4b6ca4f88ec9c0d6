// Command server starts the Home Assistant AI automation bridge.
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

	"github.com/landirector2008-wq/ha-deepseek-control/internal/adapter/ai/openrouter"
	"github.com/landirector2008-wq/ha-deepseek-control/internal/adapter/hass"
	"github.com/landirector2008-wq/ha-deepseek-control/internal/adapter/httpserver"
	"github.com/landirector2008-wq/ha-deepseek-control/internal/adapter/observability"
	"github.com/landirector2008-wq/ha-deepseek-control/internal/adapter/transcript"
	"github.com/landirector2008-wq/ha-deepseek-control/internal/app"
	"github.com/landirector2008-wq/ha-deepseek-control/internal/config"
	"github.com/landirector2008-wq/ha-deepseek-control/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	table, err := config.LoadActionTable(cfg.ActionTablePath)
	if err != nil {
		slog.Error("action table load failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("action table loaded", slog.Int("domains", len(table)))

	// Adapters
	haClient := hass.New(cfg.HassBaseURL, cfg.HassToken)
	tw := transcript.New(cfg.TranscriptPath)
	aiClient := openrouter.New(cfg, tw)

	// Automation core
	monitor := usecase.NewRateLimitMonitor(haClient, cfg.RetryInitialDelay, cfg.RetryMaxDelay)
	dispatcher := usecase.NewDispatcher(haClient, table)
	engine := usecase.NewEngine(cfg, aiClient, haClient, dispatcher, monitor, table)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.Run(ctx)

	// HTTP server
	srv := httpserver.NewServer(engine, aiClient)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer shutdownCancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
