// Command mismod serves the interchange engine over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loanglide/mismo"
	"github.com/loanglide/mismo/internal/service"
)

// main wires high-level dependencies and keeps the server lifecycle
// small; the interchange logic lives behind the engine.
func main() {
	cfg := service.FromEnv()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	engine, err := mismo.New(
		mismo.WithLogger(logger),
		mismo.WithActor(cfg.Actor),
	)
	if err != nil {
		logger.Error("engine init failed", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	svc := service.New(engine, logger, service.NewMetrics(registry))

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: svc.Router(registry),
	}

	logger.Info("starting mismod", "addr", cfg.Addr, "packs", engine.Packs())
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("mismod stopped")
}
