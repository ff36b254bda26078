// Package integration contains tests that verify the interaction between
// the upload service and the ingestion consumer. These tests use httptest
// servers with real handler wiring and a real PostgreSQL database, but
// replace Kafka with an in-process bridge that feeds published events
// straight into the consumer's message handler.
//
// Run with:
//
//	go test -v ./test/integration/...
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	dochandler "github.com/docuflow/ingestion-platform/internal/document/handler"
	"github.com/docuflow/ingestion-platform/internal/document/publisher"
	docstore "github.com/docuflow/ingestion-platform/internal/document/store"
	"github.com/docuflow/ingestion-platform/internal/extract"
	"github.com/docuflow/ingestion-platform/internal/fileaccess"
	"github.com/docuflow/ingestion-platform/internal/ingest"
	"github.com/docuflow/ingestion-platform/internal/ingest/consumer"
	"github.com/docuflow/ingestion-platform/internal/ingest/status"
	ingeststore "github.com/docuflow/ingestion-platform/internal/ingest/store"
	"github.com/docuflow/ingestion-platform/pkg/config"
	"github.com/docuflow/ingestion-platform/pkg/kafka"
	"github.com/docuflow/ingestion-platform/pkg/postgres"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// skipIfNoPostgres skips the test when PostgreSQL is unavailable and makes
// sure the pipeline tables exist.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	cfg := testPostgresConfig()
	db, err := postgres.New(cfg)
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id         UUID PRIMARY KEY,
			user_id    TEXT NOT NULL,
			file_url   TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'uploaded',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS ingestions (
			id             UUID PRIMARY KEY,
			document_id    TEXT NOT NULL,
			user_id        TEXT NOT NULL,
			extracted_text TEXT NOT NULL DEFAULT '',
			summary        TEXT,
			status         TEXT NOT NULL,
			ingested_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ingestions_document_id ON ingestions (document_id)`,
	}
	for _, stmt := range schema {
		if _, err := db.DB.ExecContext(context.Background(), stmt); err != nil {
			t.Fatalf("creating schema: %v", err)
		}
	}
	return db
}

func testPostgresConfig() config.PostgresConfig {
	return config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "docuflow_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "docuflow"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// bridgeBroker feeds published events straight into the consumer's message
// handler, standing in for the Kafka topic between the two services. handled
// carries the handler's verdict for each delivery.
type bridgeBroker struct {
	handler kafka.MessageHandler
	handled chan error
}

func (b *bridgeBroker) Publish(ctx context.Context, event kafka.Event) error {
	value, err := json.Marshal(event.Value)
	if err != nil {
		return err
	}
	go func() {
		b.handled <- b.handler(context.Background(), []byte(event.Key), value)
	}()
	return nil
}

// pipeline wires the full upload-to-status path over one database.
type pipeline struct {
	upload  *httptest.Server
	status  *httptest.Server
	handled chan error
}

func newPipeline(t *testing.T, db *postgres.Client) *pipeline {
	t.Helper()

	recordStore := ingeststore.New(db.DB)
	proc := consumer.NewProcessor(
		recordStore,
		fileaccess.NewLocal(),
		extract.NewPDF(),
		nil,
		10*time.Second,
		nil,
	)

	broker := &bridgeBroker{handler: proc.Handler(), handled: make(chan error, 8)}

	st := docstore.New(db.DB)
	pub := publisher.New(db, st, broker, config.PublishFailureAbort, nil)
	uploadCfg := config.UploadConfig{
		Dir:                  t.TempDir(),
		MaxFileSize:          32 << 20,
		PublishFailurePolicy: config.PublishFailureAbort,
	}
	uh := dochandler.New(pub, st, uploadCfg)
	uploadMux := http.NewServeMux()
	uploadMux.HandleFunc("POST /api/v1/documents", uh.Upload)
	uploadMux.HandleFunc("GET /api/v1/documents/{id}", uh.Get)
	uploadSrv := httptest.NewServer(uploadMux)
	t.Cleanup(uploadSrv.Close)

	sh := status.NewHandler(status.New(recordStore, nil, config.RedisConfig{}, nil))
	statusMux := http.NewServeMux()
	statusMux.HandleFunc("GET /api/v1/ingestions/{documentId}", sh.Get)
	statusSrv := httptest.NewServer(statusMux)
	t.Cleanup(statusSrv.Close)

	return &pipeline{upload: uploadSrv, status: statusSrv, handled: broker.handled}
}

func uploadPDF(t *testing.T, srv *httptest.Server, userID, fileName string, content []byte) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("userId", userID); err != nil {
		t.Fatalf("writing userId field: %v", err)
	}
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("creating file part: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("writing file part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing writer: %v", err)
	}

	resp, err := http.Post(srv.URL+"/api/v1/documents", w.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var doc map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("decoding upload response: %v", err)
	}
	return doc
}

func awaitDelivery(t *testing.T, p *pipeline) error {
	t.Helper()
	select {
	case err := <-p.handled:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("consumer never handled the event")
		return nil
	}
}

func queryStatus(t *testing.T, p *pipeline, documentID string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(p.status.URL + "/api/v1/ingestions/" + documentID)
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding status response: %v", err)
	}
	return resp.StatusCode, body
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

// TestUploadToFailedStatus exercises the full path with a corrupt PDF: the
// upload is accepted, the consumer's extraction fails, and the status query
// reports a terminal FAILED record.
func TestUploadToFailedStatus(t *testing.T) {
	db := skipIfNoPostgres(t)
	p := newPipeline(t, db)

	doc := uploadPDF(t, p.upload, "integration-user", "corrupt.pdf", []byte("not really a pdf"))
	documentID, _ := doc["id"].(string)
	if documentID == "" {
		t.Fatalf("upload response missing id: %v", doc)
	}

	// The handler records FAILED and re-raises, leaving the message
	// unacknowledged.
	if err := awaitDelivery(t, p); err == nil {
		t.Error("expected handler error for corrupt pdf")
	}

	code, body := queryStatus(t, p, documentID)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", code, body)
	}
	if body["status"] != ingest.StatusFailed {
		t.Errorf("expected FAILED, got %v", body["status"])
	}
	if body["extractedText"] != "" {
		t.Errorf("failed attempts carry no text, got %v", body["extractedText"])
	}
}

// TestStatusBeforeAnyAttempt verifies the NOT_FOUND contract for a document
// that was never uploaded.
func TestStatusBeforeAnyAttempt(t *testing.T) {
	db := skipIfNoPostgres(t)
	p := newPipeline(t, db)

	code, body := queryStatus(t, p, "00000000-0000-0000-0000-000000000000")
	if code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
	if body["status"] != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %v", body["status"])
	}
}

// TestRedeliveryAppendsSecondRecord delivers the same event twice and checks
// that the status query still resolves to a single, latest record.
func TestRedeliveryAppendsSecondRecord(t *testing.T) {
	db := skipIfNoPostgres(t)
	p := newPipeline(t, db)

	doc := uploadPDF(t, p.upload, "integration-user", "corrupt.pdf", []byte("still not a pdf"))
	documentID, _ := doc["id"].(string)
	awaitDelivery(t, p)

	// Simulate broker redelivery of the same event.
	recordStore := ingeststore.New(db.DB)
	proc := consumer.NewProcessor(recordStore, fileaccess.NewLocal(), extract.NewPDF(), nil, 10*time.Second, nil)
	fileURL, _ := doc["fileUrl"].(string)
	payload, _ := json.Marshal(map[string]string{
		"documentId": documentID,
		"userId":     "integration-user",
		"fileUrl":    fileURL,
	})
	proc.Handler()(context.Background(), []byte(documentID), payload)

	var count int
	err := db.DB.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM ingestions WHERE document_id = $1`, documentID,
	).Scan(&count)
	if err != nil {
		t.Fatalf("counting records: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 records after redelivery, got %d", count)
	}

	code, body := queryStatus(t, p, documentID)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body["status"] != ingest.StatusFailed {
		t.Errorf("expected FAILED, got %v", body["status"])
	}
}

// ---------------------------------------------------------------------------
// Env helpers
// ---------------------------------------------------------------------------

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
