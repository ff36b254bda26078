package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default server port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Kafka.Topics.DocumentUploaded != "document-uploaded" {
		t.Errorf("unexpected default topic %q", cfg.Kafka.Topics.DocumentUploaded)
	}
	if cfg.Upload.PublishFailurePolicy != PublishFailureAbort {
		t.Errorf("default publish failure policy must be abort, got %q", cfg.Upload.PublishFailurePolicy)
	}
	if cfg.Ingest.Workers != 1 {
		t.Errorf("expected 1 default worker, got %d", cfg.Ingest.Workers)
	}
	if cfg.Ingest.ExtractTimeout != 30*time.Second {
		t.Errorf("unexpected extract timeout %v", cfg.Ingest.ExtractTimeout)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9999
kafka:
  brokers: ["kafka-1:9092", "kafka-2:9092"]
  topics:
    documentUploaded: custom-uploads
upload:
  publishFailurePolicy: degrade
ingest:
  workers: 8
  extractTimeout: 10s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Server.Port)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("expected 2 brokers, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Kafka.Topics.DocumentUploaded != "custom-uploads" {
		t.Errorf("expected custom topic, got %q", cfg.Kafka.Topics.DocumentUploaded)
	}
	if cfg.Upload.PublishFailurePolicy != PublishFailureDegrade {
		t.Errorf("expected degrade policy, got %q", cfg.Upload.PublishFailurePolicy)
	}
	if cfg.Ingest.Workers != 8 || cfg.Ingest.ExtractTimeout != 10*time.Second {
		t.Errorf("unexpected ingest config %+v", cfg.Ingest)
	}
	// Untouched sections keep their defaults.
	if cfg.Postgres.Database != "docuflow" {
		t.Errorf("expected default database, got %q", cfg.Postgres.Database)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DI_POSTGRES_HOST", "db.internal")
	t.Setenv("DI_KAFKA_BROKERS", "a:9092,b:9092,c:9092")
	t.Setenv("DI_UPLOAD_PUBLISH_FAILURE_POLICY", "degrade")
	t.Setenv("DI_INGEST_WORKERS", "4")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Postgres.Host != "db.internal" {
		t.Errorf("expected env host override, got %q", cfg.Postgres.Host)
	}
	if len(cfg.Kafka.Brokers) != 3 {
		t.Errorf("expected 3 brokers from env, got %v", cfg.Kafka.Brokers)
	}
	if cfg.Upload.PublishFailurePolicy != PublishFailureDegrade {
		t.Errorf("expected degrade from env, got %q", cfg.Upload.PublishFailurePolicy)
	}
	if cfg.Ingest.Workers != 4 {
		t.Errorf("expected 4 workers from env, got %d", cfg.Ingest.Workers)
	}
}

func TestLoadRejectsInvalidPolicy(t *testing.T) {
	t.Setenv("DI_UPLOAD_PUBLISH_FAILURE_POLICY", "retry-forever")

	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "publishFailurePolicy") {
		t.Fatalf("expected policy validation error, got %v", err)
	}
}

func TestLoadRejectsZeroWorkers(t *testing.T) {
	t.Setenv("DI_INGEST_WORKERS", "0")

	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "workers") {
		t.Fatalf("expected workers validation error, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := PostgresConfig{
		Host: "db", Port: 5433, Database: "docs", User: "svc",
		Password: "secret", SSLMode: "require",
	}
	dsn := cfg.DSN()
	for _, want := range []string{"host=db", "port=5433", "dbname=docs", "user=svc", "sslmode=require"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN missing %q: %s", want, dsn)
		}
	}
}
