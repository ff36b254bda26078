// Package consumer drives the ingestion pipeline: it receives
// DocumentUploaded events from the broker, reads and extracts the uploaded
// file, and records one terminal IngestionRecord per processing attempt.
//
// Delivery contract: the handler returns nil only after a terminal record is
// durably persisted, so the offset commit (the acknowledgment) never
// precedes the record. Malformed payloads are poison: they are logged,
// counted, and acknowledged without a record so the broker never requeues
// them. Every other failure is recorded as FAILED first and then propagated
// unacknowledged, leaving redelivery to the broker.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/docuflow/ingestion-platform/internal/document"
	"github.com/docuflow/ingestion-platform/internal/extract"
	"github.com/docuflow/ingestion-platform/internal/fileaccess"
	"github.com/docuflow/ingestion-platform/internal/ingest"
	"github.com/docuflow/ingestion-platform/internal/ingest/store"
	"github.com/docuflow/ingestion-platform/pkg/kafka"
	"github.com/docuflow/ingestion-platform/pkg/logger"
	"github.com/docuflow/ingestion-platform/pkg/metrics"
	"github.com/docuflow/ingestion-platform/pkg/resilience"
	"github.com/docuflow/ingestion-platform/pkg/tracing"
	"github.com/google/uuid"
)

// RecordStore is the consumer's view of the ingestion store.
type RecordStore interface {
	Create(ctx context.Context, rec *ingest.Record) error
}

// OutcomeRecorder receives terminal outcomes for best-effort downstream
// publication.
type OutcomeRecorder interface {
	Record(ev ingest.CompletedEvent)
}

// Processor executes the per-message state machine. Attempts share no
// mutable state, so a pool of workers may run Handle concurrently, including
// for duplicate deliveries of the same document.
type Processor struct {
	store          RecordStore
	files          fileaccess.Accessor
	extractor      extract.Extractor
	outcomes       OutcomeRecorder
	extractTimeout time.Duration
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

// NewProcessor wires the collaborators of the ingestion state machine.
// outcomes may be nil when no downstream topic is configured.
func NewProcessor(st RecordStore, files fileaccess.Accessor, ex extract.Extractor, outcomes OutcomeRecorder, extractTimeout time.Duration, m *metrics.Metrics) *Processor {
	return &Processor{
		store:          st,
		files:          files,
		extractor:      ex,
		outcomes:       outcomes,
		extractTimeout: extractTimeout,
		metrics:        m,
		logger:         slog.Default().With("component", "ingest-consumer"),
	}
}

// Handler returns the kafka.MessageHandler that runs one processing attempt
// per delivered message.
func (p *Processor) Handler() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[document.UploadedEvent](value)
		if err == nil {
			err = ingest.ValidateEvent(event)
		}
		if err != nil {
			// Poison message: discard without retry, no record is written.
			if p.metrics != nil {
				p.metrics.MalformedEventsTotal.Inc()
			}
			p.logger.Error("discarding malformed event",
				"key", string(key),
				"error", err,
			)
			return nil
		}
		return p.process(ctx, event)
	}
}

// process runs one attempt: RECEIVED -> EXTRACTING -> {DONE | FAILED}. The
// transient states are not persisted; only the terminal record is.
func (p *Processor) process(ctx context.Context, event document.UploadedEvent) error {
	attemptID := uuid.NewString()
	log := p.logger.With(
		"document_id", event.DocumentID,
		"attempt_id", attemptID,
	)
	ctx = logger.WithLogger(ctx, log)
	ctx, span := tracing.StartSpan(ctx, "ingest-attempt", attemptID)
	span.SetAttr("document_id", event.DocumentID)
	defer func() {
		span.End()
		span.Log()
	}()

	if p.metrics != nil {
		p.metrics.EventsConsumedTotal.Inc()
	}
	log.Info("processing document uploaded event", "file_url", event.FileURL)

	absPath, err := p.files.Resolve(event.FileURL)
	if err != nil {
		span.SetAttr("status", ingest.StatusFailed)
		return p.recordFailure(ctx, event, err)
	}

	readCtx, readSpan := tracing.StartChildSpan(ctx, "read-file")
	data, err := p.files.ReadBytes(readCtx, absPath)
	readSpan.End()
	if err != nil {
		span.SetAttr("status", ingest.StatusFailed)
		return p.recordFailure(ctx, event, err)
	}

	extractCtx, extractSpan := tracing.StartChildSpan(ctx, "extract-text")
	start := time.Now()
	var text string
	err = resilience.WithTimeout(extractCtx, p.extractTimeout, "extract", func(ctx context.Context) error {
		var exErr error
		text, exErr = p.extractor.Extract(ctx, data)
		return exErr
	})
	extractSpan.End()
	if p.metrics != nil {
		p.metrics.ExtractionDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		// A timeout is indistinguishable from any other extraction failure.
		span.SetAttr("status", ingest.StatusFailed)
		return p.recordFailure(ctx, event, err)
	}

	// Empty text is a successful result, not a failure.
	rec := store.NewRecord(event.DocumentID, event.UserID, text, ingest.StatusDone)
	if err := p.persist(ctx, rec); err != nil {
		return err
	}
	span.SetAttr("status", ingest.StatusDone)
	log.Info("document ingested",
		"ingestion_id", rec.ID,
		"text_bytes", len(text),
	)
	return nil
}

// recordFailure persists a FAILED record for the attempt and then re-raises
// the original error so the broker's redelivery policy governs retries. The
// attempt is never lost silently: the record is written before the error
// propagates.
func (p *Processor) recordFailure(ctx context.Context, event document.UploadedEvent, cause error) error {
	log := logger.FromContext(ctx)
	log.Error("ingestion attempt failed", "error", cause)

	rec := store.NewRecord(event.DocumentID, event.UserID, "", ingest.StatusFailed)
	if err := p.persist(ctx, rec); err != nil {
		return fmt.Errorf("recording failed attempt (cause: %v): %w", cause, err)
	}
	return fmt.Errorf("processing document %s: %w", event.DocumentID, cause)
}

// persist creates the terminal record and reports the outcome. A persistence
// failure propagates unwrapped into an unacknowledged message.
func (p *Processor) persist(ctx context.Context, rec *ingest.Record) error {
	persistCtx, persistSpan := tracing.StartChildSpan(ctx, "persist-record")
	err := p.store.Create(persistCtx, rec)
	persistSpan.End()
	if err != nil {
		logger.FromContext(ctx).Error("failed to persist ingestion record",
			"ingestion_id", rec.ID,
			"status", rec.Status,
			"error", err,
		)
		return err
	}
	if p.metrics != nil {
		p.metrics.IngestionsTotal.WithLabelValues(rec.Status).Inc()
	}
	if p.outcomes != nil {
		p.outcomes.Record(ingest.CompletedEvent{
			IngestionID: rec.ID,
			DocumentID:  rec.DocumentID,
			UserID:      rec.UserID,
			Status:      rec.Status,
			IngestedAt:  rec.IngestedAt,
		})
	}
	return nil
}

// IngestConsumer wraps a Kafka consumer to drive the ingestion pipeline.
type IngestConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates an IngestConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *IngestConsumer {
	return &IngestConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "ingest-consumer"),
	}
}

// Start begins consuming broker messages. It blocks until ctx is cancelled.
func (ic *IngestConsumer) Start(ctx context.Context) error {
	ic.logger.Info("ingest consumer starting")
	return ic.consumer.Start(ctx)
}
