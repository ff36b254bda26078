// Command upload starts the document upload HTTP service.
//
// The service accepts documents via POST /api/v1/documents (multipart form
// with `file` and `userId`), persists the document row to PostgreSQL, and
// publishes a DocumentUploaded event to Kafka strictly after the row is
// committed. It provides health endpoints and an optional Prometheus
// metrics server.
//
// Usage:
//
//	go run ./cmd/upload [-config configs/development.yaml]
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

	"github.com/docuflow/ingestion-platform/internal/document/handler"
	"github.com/docuflow/ingestion-platform/internal/document/publisher"
	"github.com/docuflow/ingestion-platform/internal/document/store"
	"github.com/docuflow/ingestion-platform/pkg/config"
	"github.com/docuflow/ingestion-platform/pkg/health"
	"github.com/docuflow/ingestion-platform/pkg/kafka"
	"github.com/docuflow/ingestion-platform/pkg/logger"
	"github.com/docuflow/ingestion-platform/pkg/metrics"
	"github.com/docuflow/ingestion-platform/pkg/middleware"
	"github.com/docuflow/ingestion-platform/pkg/postgres"
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
	slog.Info("starting upload service", "port", cfg.Server.Port)

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgres")

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentUploaded)
	defer producer.Close()
	slog.Info("kafka producer initialized", "topic", cfg.Kafka.Topics.DocumentUploaded)

	m := metrics.New()
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	docStore := store.New(db.DB)
	pub := publisher.New(db, docStore, producer, cfg.Upload.PublishFailurePolicy, m)
	h := handler.New(pub, docStore, cfg.Upload)

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(db.Ping))
	checker.Register("kafka", health.PingCheck(func(ctx context.Context) error {
		return kafka.Ping(ctx, cfg.Kafka.Brokers)
	}))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/documents", h.Upload)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Get)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	chain := middleware.Timeout(cfg.Server.WriteTimeout)(middleware.RequestLogger(middleware.Metrics(m)(mux)))
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
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
	}()
	slog.Info("upload service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("upload service stopped")
}
