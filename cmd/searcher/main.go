package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/index/pgstore"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/params"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/retrieval"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting retrieval service", "port", cfg.Server.Port, "index_dir", cfg.Index.Dir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}

	checker := health.NewChecker()

	var openOpts []index.OpenOption
	if cfg.Postgres.Enabled {
		pg, err := postgres.Connect(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		names, err := pgstore.Open(ctx, pg.DB, cfg.Postgres.Table, cfg.Postgres.NamesPart, cfg.Postgres.PageSize)
		if err != nil {
			slog.Error("failed to open postgres part", "part", cfg.Postgres.NamesPart, "error", err)
			os.Exit(1)
		}
		openOpts = append(openOpts, index.WithStore(cfg.Postgres.NamesPart, names))
		checker.Require("postgres", health.Ping(pg.Ping))
		slog.Info("serving part from postgres", "part", cfg.Postgres.NamesPart, "table", cfg.Postgres.Table)
	}

	idx, err := index.Open(cfg.Index.Dir, openOpts...)
	if err != nil {
		slog.Error("failed to open index", "dir", cfg.Index.Dir, "error", err)
		os.Exit(1)
	}
	defer idx.Close()
	checker.Require("index", health.Index(func() int64 { return idx.Statistics().DocumentCount }, idx.Probe))

	r := retrieval.New(idx, params.Parameters(cfg.Retrieval.Parameters()), retrieval.WithMetrics(m))

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, result caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			breaker := resilience.NewCircuitBreaker("redis", resilience.BreakerConfig{
				FailureThreshold: cfg.Redis.BreakerThreshold,
				ResetTimeout:     cfg.Redis.BreakerReset,
				OnStateChange: func(name string, to resilience.State) {
					m.SetCircuitState(name, int(to))
				},
			})
			queryCache = cache.New(cache.NewGuardedStore(redisClient, breaker), cfg.Redis.CacheTTL, m)
			checker.Optional("redis", health.Breaker(breaker.State, health.Ping(redisClient.Ping)))
			slog.Info("result cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var publisher analytics.Publisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka)
		defer producer.Close()
		publisher = producer
		checker.Optional("kafka", health.Ping(producer.Ping))
		slog.Info("publishing query events", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
	}
	collector := analytics.NewCollector(publisher, cfg.Kafka.BufferSize, 0, 0)
	collector.Start(ctx)
	defer collector.Close()

	h := handler.New(r, queryCache, collector, cfg.Retrieval.MaxRequested, cfg.Retrieval.MaxConcurrentQueries)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler.NewRouter(h, m, checker, cfg.Server.WriteTimeout),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("retrieval service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("retrieval service stopped")
}
