// Package store persists documents in PostgreSQL.
//
// It requires a `documents` table:
//
//	CREATE TABLE documents (
//	    id         UUID PRIMARY KEY,
//	    user_id    TEXT NOT NULL,
//	    file_url   TEXT NOT NULL,
//	    status     TEXT NOT NULL DEFAULT 'uploaded',
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/docuflow/ingestion-platform/internal/document"
	apperrors "github.com/docuflow/ingestion-platform/pkg/errors"
	"github.com/google/uuid"
)

// Store writes and reads document rows. Writes go through the Querier so the
// publisher can run them inside its emit-after-commit transaction.
type Store struct {
	db *sql.DB
}

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// New creates a document store on the given database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// NewDocument builds a Document with a freshly assigned id and the uploaded
// status. The id is never reassigned after this point.
func NewDocument(userID, fileURL string) *document.Document {
	now := time.Now().UTC()
	return &document.Document{
		ID:        uuid.NewString(),
		UserID:    userID,
		FileURL:   fileURL,
		Status:    document.StatusUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Insert writes the document row through q, which is either the pooled
// handle or an open transaction.
func (s *Store) Insert(ctx context.Context, q Querier, doc *document.Document) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO documents (id, user_id, file_url, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		doc.ID, doc.UserID, doc.FileURL, doc.Status, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

// GetByID loads a document row. Returns ErrDocumentNotFound when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*document.Document, error) {
	var doc document.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, file_url, status, created_at, updated_at
		 FROM documents WHERE id = $1`,
		id,
	).Scan(&doc.ID, &doc.UserID, &doc.FileURL, &doc.Status, &doc.CreatedAt, &doc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying document %s: %w", id, err)
	}
	return &doc, nil
}
