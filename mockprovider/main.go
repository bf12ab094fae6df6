// Command mockprovider serves fake geocoding, places and booking endpoints for local runs.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DeafMist/hotel-radar/internal/config"
	"github.com/DeafMist/hotel-radar/internal/logger"
)

func main() {
	log := logger.New("mockprovider")
	cfg, err := config.LoadMockProvider()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	srv := &mockServer{
		log:         log,
		world:       newWorld(cfg.Seed, cfg.Hotels),
		failureRate: cfg.FailureRate,
		latency:     cfg.Latency,
		roll:        defaultRoll,
	}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("mock provider starting",
			slog.String("addr", cfg.BindAddr),
			slog.Int("hotels_per_area", cfg.Hotels),
			slog.Float64("failure_rate", cfg.FailureRate),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}
