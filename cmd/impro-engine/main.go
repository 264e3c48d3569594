package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/improstack/impro-engine/internal/api"
	"github.com/improstack/impro-engine/internal/cache"
	"github.com/improstack/impro-engine/internal/config"
	"github.com/improstack/impro-engine/internal/engine"
	"github.com/improstack/impro-engine/internal/ingest"
	"github.com/improstack/impro-engine/internal/metrics"
	"github.com/improstack/impro-engine/internal/profiles"
	"github.com/improstack/impro-engine/internal/repo"
	"github.com/improstack/impro-engine/internal/storage"
	"github.com/improstack/impro-engine/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", slog.Any("error", err))
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting impro-engine", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var cacheProvider cache.Provider = cache.NoopProvider{}
	if cfg.Cache.Enabled {
		if cfg.Cache.Addr != "" {
			provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
				Addr:         cfg.Cache.Addr,
				Username:     cfg.Cache.Username,
				Password:     cfg.Cache.Password,
				DB:           cfg.Cache.DB,
				DialTimeout:  cfg.Cache.DialTimeout,
				ReadTimeout:  cfg.Cache.ReadTimeout,
				WriteTimeout: cfg.Cache.WriteTimeout,
				TLS:          cfg.Cache.TLS,
			})
			if err != nil {
				logger.Warn("valkey cache unavailable, falling back to memory", slog.Any("error", err))
				cacheProvider = cache.NewMemoryProvider()
			} else {
				cacheProvider = provider
			}
		} else {
			cacheProvider = cache.NewMemoryProvider()
		}
	}
	defer cacheProvider.Close()

	store := storage.NewMemoryStore()
	history := repo.NewHistoryRepo(0)

	var exporter engine.Exporter
	if cfg.Influx.URL != "" {
		influxExporter, err := repo.NewInfluxExporter(repo.InfluxConfig{
			URL:       cfg.Influx.URL,
			Token:     cfg.Influx.Token,
			Org:       cfg.Influx.Organization,
			Bucket:    cfg.Influx.Bucket,
			BatchSize: cfg.Influx.BatchSize,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to influx", slog.Any("error", err))
			os.Exit(1)
		}
		defer influxExporter.Close()
		exporter = influxExporter
	}

	ruleEngine, err := engine.NewRuleEngine(cfg.Rules.Path, logger)
	if err != nil {
		logger.Error("failed to load rule pack", slog.Any("error", err))
		os.Exit(1)
	}
	couplingEngine := engine.NewCouplingEngine(logger)

	pipeline := engine.NewPipeline(logger, store, exporter, history, ruleEngine, couplingEngine)
	miner := profiles.NewMiner(logger, nil)

	handlers := api.NewHandlers(
		logger,
		pipeline,
		store,
		history,
		miner,
		cacheProvider,
		cfg.Analysis,
		cfg.Cache.ResultTTL,
	)

	server, err := api.NewServer(cfg.Server, handlers.Routes())
	if err != nil {
		logger.Error("failed to create HTTP server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var consumer *ingest.Consumer
	if cfg.Kafka.Enabled {
		consumer, err = ingest.NewConsumer(ingest.KafkaConfig{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topic,
			Group:    cfg.Kafka.Group,
			Username: cfg.Kafka.Username,
			Password: cfg.Kafka.Password,
			TLS:      cfg.Kafka.TLS,
		}, store, logger)
		if err != nil {
			logger.Error("failed to connect to kafka", slog.Any("error", err))
			os.Exit(1)
		}
		go func() {
			logger.Info("kafka consumer started", slog.String("topic", cfg.Kafka.Topic))
			consumer.Run(ctx)
		}()
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("HTTP server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	if consumer != nil {
		consumer.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("impro-engine stopped")
}
