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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/DeafMist/hotel-radar/internal/apperr"
	"github.com/DeafMist/hotel-radar/internal/cache"
	"github.com/DeafMist/hotel-radar/internal/config"
	"github.com/DeafMist/hotel-radar/internal/elasticsearch"
	"github.com/DeafMist/hotel-radar/internal/events"
	"github.com/DeafMist/hotel-radar/internal/geo"
	"github.com/DeafMist/hotel-radar/internal/logger"
	"github.com/DeafMist/hotel-radar/internal/matching"
	"github.com/DeafMist/hotel-radar/internal/metrics"
	"github.com/DeafMist/hotel-radar/internal/pipeline"
	"github.com/DeafMist/hotel-radar/internal/providers"
	"github.com/DeafMist/hotel-radar/internal/retry"
)

func main() {
	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(reg, apperr.ServiceGeocoding, apperr.ServiceDiscovery, apperr.ServicePricing)

	store := cache.Open(ctx, cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, cfg.MemoryCapacity, log)
	c := cache.New(store, log, cache.WithObserver(recorder))
	defer c.Close()

	exec := retry.New(retry.Config{
		BaseDelay:   cfg.RetryBaseDelay,
		MaxAttempts: cfg.RetryMaxAttempts,
		CallTimeout: cfg.ProviderTimeout,
	}, recorder, log)

	google := providers.NewGoogleMaps(providers.GoogleConfig{
		BaseURL:      cfg.GoogleBaseURL,
		APIKey:       cfg.GoogleAPIKey,
		Timeout:      cfg.ProviderTimeout,
		RPS:          cfg.DiscoveryRPS,
		GeocodingRPS: cfg.GeocodingRPS,
	})
	booking := providers.NewBooking(providers.BookingConfig{
		BaseURL:  cfg.BookingBaseURL,
		APIKey:   cfg.BookingAPIKey,
		APIHost:  cfg.BookingAPIHost,
		Currency: cfg.Currency,
		Timeout:  cfg.ProviderTimeout,
		RPS:      cfg.PricingRPS,
	})

	resolver := geo.NewResolver(google, c, exec, cfg.GeocodeTTL, log)
	discovery := providers.NewDiscoveryClient(google, exec, c, cfg.ReviewsTTL)
	pricing := providers.NewPricingClient(booking, exec)
	matcher := matching.New(matching.Config{
		Threshold:         cfg.MatchThreshold,
		NameWeight:        cfg.MatchNameWeight,
		DistanceWeight:    cfg.MatchDistanceWeight,
		RatingWeight:      cfg.MatchRatingWeight,
		MaxDistanceMeters: matching.DefaultConfig().MaxDistanceMeters,
	})

	publisher := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("close publisher", slog.Any("err", err))
		}
	}()

	pl := pipeline.New(resolver, discovery, pricing, matcher, c, pipeline.Config{
		BatchSize:      cfg.BatchSize,
		BatchDelay:     cfg.BatchDelay,
		RadiusMeters:   cfg.RadiusMeters,
		ResultTTL:      cfg.ResultTTL,
		ComputeTimeout: cfg.SearchBudget,
	}, log, pipeline.WithPublisher(publisher))

	srv := &server{
		log:        log,
		cfg:        cfg,
		search:     pl,
		geocoder:   resolver,
		reviews:    discovery,
		history:    esClient,
		health:     recorder,
		cache:      c,
		metrics:    recorder.Handler(),
		middleware: recorder.Middleware,
	}

	// Batched pricing of a large area can take a while, hence the long write timeout.
	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("api server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped", slog.Any("err", err))
		os.Exit(1)
	}
}
