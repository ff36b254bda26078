package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/docuflow/ingestion-platform/internal/ingest"
	apperrors "github.com/docuflow/ingestion-platform/pkg/errors"
)

func TestCreateInsertsTerminalRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	st := New(db)
	rec := NewRecord("d1", "u1", "Extracted text", ingest.StatusDone)

	mock.ExpectExec("INSERT INTO ingestions").
		WithArgs(rec.ID, "d1", "u1", "Extracted text", nil, ingest.StatusDone, rec.IngestedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := st.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestCreateWrapsPersistenceError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	st := New(db)
	rec := NewRecord("d1", "u1", "", ingest.StatusFailed)

	mock.ExpectExec("INSERT INTO ingestions").
		WillReturnError(errors.New("connection reset"))

	err = st.Create(context.Background(), rec)
	if !errors.Is(err, apperrors.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}

func TestFindByDocumentIDReturnsLatest(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	st := New(db)
	latest := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	// The query must order by recency so redelivered duplicates resolve to a
	// deterministic latest-wins answer.
	mock.ExpectQuery(`(?s)SELECT.+FROM ingestions.+WHERE document_id = \$1.+ORDER BY ingested_at DESC, id DESC.+LIMIT 1`).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "document_id", "user_id", "extracted_text", "summary", "status", "ingested_at"},
		).AddRow("rec-2", "d1", "u1", "second attempt", nil, ingest.StatusDone, latest))

	rec, err := st.FindByDocumentID(context.Background(), "d1")
	if err != nil {
		t.Fatalf("FindByDocumentID: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a record")
	}
	if rec.ID != "rec-2" || rec.ExtractedText != "second attempt" {
		t.Errorf("expected the most recent record, got %+v", rec)
	}
	if rec.Summary != nil {
		t.Errorf("summary must be absent, got %v", *rec.Summary)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestFindByDocumentIDAbsentIsNotAnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	st := New(db)
	mock.ExpectQuery(`(?s)SELECT.+FROM ingestions`).
		WithArgs("unknown").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "document_id", "user_id", "extracted_text", "summary", "status", "ingested_at"},
		))

	rec, err := st.FindByDocumentID(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("absence must not be an error, got %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record, got %+v", rec)
	}
}

func TestNewRecordAssignsIdentityOnce(t *testing.T) {
	a := NewRecord("d1", "u1", "", ingest.StatusFailed)
	b := NewRecord("d1", "u1", "", ingest.StatusFailed)
	if a.ID == b.ID {
		t.Error("each attempt must get its own id")
	}
	if a.IngestedAt.IsZero() {
		t.Error("ingestedAt must be set at creation")
	}
}
