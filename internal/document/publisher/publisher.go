// Package publisher implements the emit-after-commit write path of the
// upload service: the document row is durably committed to PostgreSQL first,
// and only then is the DocumentUploaded event published to the broker. A
// document with no event is possible (publish failed after commit) and is an
// observable inconsistency; an event for a document that does not exist is
// not possible.
package publisher

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/docuflow/ingestion-platform/internal/document"
	"github.com/docuflow/ingestion-platform/internal/document/store"
	"github.com/docuflow/ingestion-platform/pkg/config"
	apperrors "github.com/docuflow/ingestion-platform/pkg/errors"
	"github.com/docuflow/ingestion-platform/pkg/kafka"
	"github.com/docuflow/ingestion-platform/pkg/logger"
	"github.com/docuflow/ingestion-platform/pkg/metrics"
	"github.com/docuflow/ingestion-platform/pkg/postgres"
	"github.com/docuflow/ingestion-platform/pkg/resilience"
)

// Broker is the publish half of the broker channel.
type Broker interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Publisher coordinates document persistence and event production.
type Publisher struct {
	db      *postgres.Client
	store   *store.Store
	broker  Broker
	policy  config.PublishFailurePolicy
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Publisher with the given database, store, and broker.
func New(db *postgres.Client, st *store.Store, broker Broker, policy config.PublishFailurePolicy, m *metrics.Metrics) *Publisher {
	return &Publisher{
		db:      db,
		store:   st,
		broker:  broker,
		policy:  policy,
		metrics: m,
		logger:  slog.Default().With("component", "publisher"),
	}
}

// CreateDocument persists a document row and publishes the DocumentUploaded
// event after the transaction commits. The published fileUrl is resolved to
// an absolute path because the consumer runs in a different working context
// and cannot resolve relative paths.
//
// If the publish fails, the configured policy decides the outcome: abort
// returns a PublishError (the committed row stays behind, visibly
// un-ingested), degrade logs and returns the document anyway.
func (p *Publisher) CreateDocument(ctx context.Context, userID, fileURL string) (*document.Document, error) {
	if userID == "" || fileURL == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, 400, "userId and fileUrl are required")
	}

	doc := store.NewDocument(userID, fileURL)
	err := p.db.InTx(ctx, func(tx *sql.Tx) error {
		return p.store.Insert(ctx, tx, doc)
	})
	if err != nil {
		return nil, fmt.Errorf("creating document: %w", err)
	}
	if p.metrics != nil {
		p.metrics.DocumentsUploadedTotal.Inc()
	}

	absPath, err := filepath.Abs(fileURL)
	if err != nil {
		return nil, fmt.Errorf("resolving file url %s: %w", fileURL, err)
	}

	event := kafka.Event{
		Key: doc.ID,
		Value: document.UploadedEvent{
			DocumentID: doc.ID,
			UserID:     userID,
			FileURL:    absPath,
		},
	}

	publishErr := resilience.Retry(ctx, "publish-document-uploaded", resilience.RetryConfig{}, func() error {
		return p.broker.Publish(ctx, event)
	})
	if publishErr != nil {
		return p.handlePublishFailure(ctx, doc, publishErr)
	}

	logger.FromContext(ctx).Info("document uploaded event published",
		"document_id", doc.ID,
		"user_id", userID,
	)
	return doc, nil
}

// handlePublishFailure applies the configured publish-failure policy to a
// document whose row is already committed.
func (p *Publisher) handlePublishFailure(ctx context.Context, doc *document.Document, publishErr error) (*document.Document, error) {
	if p.metrics != nil {
		p.metrics.PublishFailuresTotal.WithLabelValues(string(p.policy)).Inc()
	}
	switch p.policy {
	case config.PublishFailureDegrade:
		logger.FromContext(ctx).Error("publish failed, document committed without event",
			"document_id", doc.ID,
			"policy", p.policy,
			"error", publishErr,
		)
		return doc, nil
	default:
		p.logger.Error("publish failed, aborting upload",
			"document_id", doc.ID,
			"error", publishErr,
		)
		return nil, apperrors.Newf(apperrors.ErrPublish, 502,
			"document %s committed but event not published: %v", doc.ID, publishErr)
	}
}
