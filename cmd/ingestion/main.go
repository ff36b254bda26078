// Command ingestion starts the ingestion service: the Kafka consumer that
// processes DocumentUploaded events and the HTTP status query endpoint.
//
// The consumer extracts text from each uploaded file, writes one terminal
// IngestionRecord per processing attempt, and acknowledges the message only
// after the record is persisted. The status endpoint at
// GET /api/v1/ingestions/{documentId} reads the ingestion store
// independently of the pipeline, through a Redis cache of terminal records.
//
// Usage:
//
//	go run ./cmd/ingestion [-config configs/development.yaml]
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

	"github.com/docuflow/ingestion-platform/internal/extract"
	"github.com/docuflow/ingestion-platform/internal/fileaccess"
	"github.com/docuflow/ingestion-platform/internal/ingest/consumer"
	"github.com/docuflow/ingestion-platform/internal/ingest/outcomes"
	"github.com/docuflow/ingestion-platform/internal/ingest/status"
	"github.com/docuflow/ingestion-platform/internal/ingest/store"
	"github.com/docuflow/ingestion-platform/pkg/config"
	"github.com/docuflow/ingestion-platform/pkg/health"
	"github.com/docuflow/ingestion-platform/pkg/kafka"
	"github.com/docuflow/ingestion-platform/pkg/logger"
	"github.com/docuflow/ingestion-platform/pkg/metrics"
	"github.com/docuflow/ingestion-platform/pkg/middleware"
	"github.com/docuflow/ingestion-platform/pkg/postgres"
	pkgredis "github.com/docuflow/ingestion-platform/pkg/redis"
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
	slog.Info("starting ingestion service", "workers", cfg.Ingest.Workers)

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgres")

	cache, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		// The status cache is an optimisation; the service runs without it.
		slog.Warn("redis unavailable, status queries will hit the store", "error", err)
		cache = nil
	} else {
		defer cache.Close()
	}

	m := metrics.New()
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcomeProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IngestionOutcomes)
	defer outcomeProducer.Close()
	collector := outcomes.NewCollector(outcomeProducer, cfg.Ingest.OutcomeBatchSize, cfg.Ingest.OutcomeFlushInterval, m)
	collector.Start(ctx)

	ingestStore := store.New(db.DB)
	processor := consumer.NewProcessor(
		ingestStore,
		fileaccess.NewLocal(),
		extract.NewPDF(),
		collector,
		cfg.Ingest.ExtractTimeout,
		m,
	)
	kafkaConsumer := kafka.NewConsumer(
		cfg.Kafka,
		cfg.Kafka.Topics.DocumentUploaded,
		processor.Handler(),
		cfg.Ingest.Workers,
	)
	ingestConsumer := consumer.New(kafkaConsumer)

	statusService := status.New(ingestStore, cache, cfg.Redis, m)
	statusHandler := status.NewHandler(statusService)

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(db.Ping))
	if cache != nil {
		checker.Register("redis", health.PingCheck(cache.Ping))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/ingestions/{documentId}", statusHandler.Get)
	mux.HandleFunc("GET /health", statusHandler.Health)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	chain := middleware.Timeout(cfg.Server.WriteTimeout)(middleware.RequestLogger(middleware.Metrics(m)(mux)))
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		slog.Info("status endpoint listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
		}
	}()

	slog.Info("ingestion service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.DocumentUploaded,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := ingestConsumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	if metricsShutdown != nil {
		if err := metricsShutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown error", "error", err)
		}
	}
	collector.Close()

	slog.Info("ingestion service stopped")
}
