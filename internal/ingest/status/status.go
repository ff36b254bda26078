// Package status provides the read-only ingestion status query. Lookups go
// through an optional Redis read-through cache: only terminal records are
// cached, because a terminal record is immutable and can never go stale.
// Absence and PENDING are never cached. Cache failures degrade silently to
// the store.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/docuflow/ingestion-platform/internal/ingest"
	"github.com/docuflow/ingestion-platform/pkg/config"
	pkgredis "github.com/docuflow/ingestion-platform/pkg/redis"

	"github.com/docuflow/ingestion-platform/pkg/metrics"
)

const keyPrefix = "ingestion:"

// RecordFinder is the read half of the ingestion store.
type RecordFinder interface {
	FindByDocumentID(ctx context.Context, documentID string) (*ingest.Record, error)
}

// Service answers ingestion status lookups by document id.
type Service struct {
	store   RecordFinder
	cache   *pkgredis.Client
	cfg     config.RedisConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a status query service. cache may be nil, in which case every
// lookup hits the store.
func New(store RecordFinder, cache *pkgredis.Client, cfg config.RedisConfig, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		cache:   cache,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "status-query"),
	}
}

// GetByDocumentID returns the latest ingestion record for the document, or
// (nil, nil) when no attempt exists. Callers must treat absence as a valid
// outcome, distinct from FAILED: it means "not yet processed" or "never
// uploaded", and the two are indistinguishable here.
func (s *Service) GetByDocumentID(ctx context.Context, documentID string) (*ingest.Record, error) {
	if rec, ok := s.cacheGet(ctx, documentID); ok {
		return rec, nil
	}

	rec, err := s.store.FindByDocumentID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("status lookup for document %s: %w", documentID, err)
	}
	if rec != nil && isTerminal(rec.Status) {
		s.cacheSet(ctx, documentID, rec)
	}
	return rec, nil
}

func isTerminal(status string) bool {
	return status == ingest.StatusDone || status == ingest.StatusFailed
}

func (s *Service) cacheGet(ctx context.Context, documentID string) (*ingest.Record, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, keyPrefix+documentID)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			s.logger.Error("cache get failed", "document_id", documentID, "error", err)
		}
		if s.metrics != nil {
			s.metrics.StatusCacheMissesTotal.Inc()
		}
		return nil, false
	}
	var rec ingest.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		s.logger.Error("cache unmarshal failed", "document_id", documentID, "error", err)
		if s.metrics != nil {
			s.metrics.StatusCacheMissesTotal.Inc()
		}
		return nil, false
	}
	if s.metrics != nil {
		s.metrics.StatusCacheHitsTotal.Inc()
	}
	return &rec, true
}

func (s *Service) cacheSet(ctx context.Context, documentID string, rec *ingest.Record) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		s.logger.Error("cache marshal failed", "document_id", documentID, "error", err)
		return
	}
	if err := s.cache.Set(ctx, keyPrefix+documentID, data, s.cfg.CacheTTL); err != nil {
		s.logger.Error("cache set failed", "document_id", documentID, "error", err)
	}
}
