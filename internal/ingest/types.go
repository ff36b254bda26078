// Package ingest defines the consumer-side data model: one IngestionRecord
// per processing attempt, with a terminal status written exactly once.
package ingest

import (
	"time"

	apperrors "github.com/docuflow/ingestion-platform/pkg/errors"

	"github.com/docuflow/ingestion-platform/internal/document"
)

// Status values for an IngestionRecord. PENDING is a placeholder default;
// the consumer writes records directly with a terminal status.
const (
	StatusPending = "PENDING"
	StatusDone    = "DONE"
	StatusFailed  = "FAILED"
)

// Record is one processing attempt's outcome for a document. documentId is a
// plain correlation value, not an enforced foreign key: the document and
// ingestion stores live in different failure domains. Under at-least-once
// redelivery a document may accumulate several records; reads resolve the
// ambiguity with a latest-wins policy.
type Record struct {
	ID            string    `json:"id"`
	DocumentID    string    `json:"documentId"`
	UserID        string    `json:"userId"`
	ExtractedText string    `json:"extractedText"`
	Summary       *string   `json:"summary,omitempty"`
	Status        string    `json:"status"`
	IngestedAt    time.Time `json:"ingestedAt"`
}

// CompletedEvent is published to the outcomes topic after a terminal record
// is persisted. It is best-effort: downstream consumers (a future
// summarization service) can always rebuild it from the ingestion store.
type CompletedEvent struct {
	IngestionID string    `json:"ingestionId"`
	DocumentID  string    `json:"documentId"`
	UserID      string    `json:"userId"`
	Status      string    `json:"status"`
	IngestedAt  time.Time `json:"ingestedAt"`
}

// ValidateEvent checks a decoded DocumentUploaded event for the three
// required fields. A missing field makes the whole message poison.
func ValidateEvent(ev document.UploadedEvent) error {
	switch {
	case ev.DocumentID == "":
		return apperrors.New(apperrors.ErrMalformedEvent, 400, "documentId is required")
	case ev.UserID == "":
		return apperrors.New(apperrors.ErrMalformedEvent, 400, "userId is required")
	case ev.FileURL == "":
		return apperrors.New(apperrors.ErrMalformedEvent, 400, "fileUrl is required")
	}
	return nil
}
