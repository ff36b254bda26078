// Package document defines the upload-side data model and the event schema
// carried on the broker between the upload and ingestion services.
package document

import "time"

// StatusUploaded is the only upload-side status. The upload side does not
// track ingestion outcome; that lives in the ingestion store.
const StatusUploaded = "uploaded"

// Document is the upload-side record of a submitted file. Its id is assigned
// exactly once at creation and the ingestion pipeline never mutates the row.
type Document struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	FileURL   string    `json:"fileUrl"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UploadedEvent is the wire contract between the two services. All three
// fields are required; a payload missing any of them is a parse failure on
// the consumer side. FileURL is an absolute path, resolved by the publisher
// before the event leaves the upload service.
type UploadedEvent struct {
	DocumentID string `json:"documentId"`
	UserID     string `json:"userId"`
	FileURL    string `json:"fileUrl"`
}

// UploadResponse is returned to the caller after a document is accepted.
type UploadResponse struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	FileURL    string `json:"file_url"`
}
