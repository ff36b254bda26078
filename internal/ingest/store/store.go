// Package store persists ingestion attempts in PostgreSQL. Records are
// append-only: a terminal record is never updated, and a manual retry is a
// new record, not an edit.
//
// It requires an `ingestions` table:
//
//	CREATE TABLE ingestions (
//	    id             UUID PRIMARY KEY,
//	    document_id    UUID NOT NULL,
//	    user_id        TEXT NOT NULL,
//	    extracted_text TEXT NOT NULL DEFAULT '',
//	    summary        TEXT,
//	    status         TEXT NOT NULL DEFAULT 'PENDING',
//	    ingested_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
//	CREATE INDEX idx_ingestions_document_id ON ingestions (document_id, ingested_at DESC);
//
// There is deliberately no uniqueness constraint on document_id: duplicate
// terminal records from at-least-once redelivery are accepted, and reads
// pick the most recently created one.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/docuflow/ingestion-platform/internal/ingest"
	apperrors "github.com/docuflow/ingestion-platform/pkg/errors"
	"github.com/google/uuid"
)

// Store writes and reads ingestion records.
type Store struct {
	db *sql.DB
}

// New creates an ingestion store on the given database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// NewRecord builds a Record with a fresh id and ingestedAt set once, at
// creation time.
func NewRecord(documentID, userID, extractedText, status string) *ingest.Record {
	return &ingest.Record{
		ID:            uuid.NewString(),
		DocumentID:    documentID,
		UserID:        userID,
		ExtractedText: extractedText,
		Status:        status,
		IngestedAt:    time.Now().UTC(),
	}
}

// Create inserts the record. It is safe to call multiple times for the same
// documentId; each call appends an independent attempt. Failures wrap
// ErrPersistence so the consumer knows not to acknowledge the message.
func (s *Store) Create(ctx context.Context, rec *ingest.Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingestions (id, document_id, user_id, extracted_text, summary, status, ingested_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.DocumentID, rec.UserID, rec.ExtractedText, rec.Summary, rec.Status, rec.IngestedAt,
	)
	if err != nil {
		return apperrors.Newf(apperrors.ErrPersistence, 500,
			"inserting ingestion record for document %s: %v", rec.DocumentID, err)
	}
	return nil
}

// FindByDocumentID returns the most recently created record for the
// document (latest wins), or (nil, nil) when no attempt exists. Absence is a
// valid outcome, not an error: the document may not have been processed yet,
// or may never have been uploaded.
func (s *Store) FindByDocumentID(ctx context.Context, documentID string) (*ingest.Record, error) {
	var rec ingest.Record
	err := s.db.QueryRowContext(ctx,
		`SELECT id, document_id, user_id, extracted_text, summary, status, ingested_at
		 FROM ingestions
		 WHERE document_id = $1
		 ORDER BY ingested_at DESC, id DESC
		 LIMIT 1`,
		documentID,
	).Scan(&rec.ID, &rec.DocumentID, &rec.UserID, &rec.ExtractedText, &rec.Summary, &rec.Status, &rec.IngestedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying ingestion for document %s: %w", documentID, err)
	}
	return &rec, nil
}
