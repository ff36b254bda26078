// Package outcomes provides a batch-oriented collector that publishes
// IngestionCompleted events to the outcomes topic in bulk. Publication is
// best-effort and never influences message acknowledgment: every event it
// carries is derivable from the ingestion store.
package outcomes

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/docuflow/ingestion-platform/internal/ingest"
	"github.com/docuflow/ingestion-platform/pkg/kafka"
	"github.com/docuflow/ingestion-platform/pkg/metrics"
)

// BatchBroker is the batch-publish half of the broker channel.
type BatchBroker interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector accumulates outcome events and flushes them to the broker when
// the batch reaches a configurable size or after a time interval.
type Collector struct {
	broker        BatchBroker
	mu            sync.Mutex
	buffer        []kafka.Event
	batchSize     int
	flushInterval time.Duration
	metrics       *metrics.Metrics
	logger        *slog.Logger
	done          chan struct{}
}

// NewCollector creates a Collector that flushes when the buffer reaches
// batchSize events or after flushInterval, whichever comes first.
func NewCollector(broker BatchBroker, batchSize int, flushInterval time.Duration, m *metrics.Metrics) *Collector {
	if batchSize <= 0 {
		batchSize = 50
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Collector{
		broker:        broker,
		buffer:        make([]kafka.Event, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		metrics:       m,
		logger:        slog.Default().With("component", "outcome-collector"),
		done:          make(chan struct{}),
	}
}

// Start launches the background flush loop; it returns immediately and the
// loop runs until ctx is cancelled.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.flush(ctx)
			case <-ctx.Done():
				// Final flush with a short deadline.
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				c.flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	c.logger.Info("outcome collector started",
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

// Record buffers an outcome event for a persisted terminal record. If the
// buffer reaches batchSize, an immediate flush is triggered.
func (c *Collector) Record(ev ingest.CompletedEvent) {
	c.mu.Lock()
	c.buffer = append(c.buffer, kafka.Event{Key: ev.DocumentID, Value: ev})
	shouldFlush := len(c.buffer) >= c.batchSize
	c.mu.Unlock()

	if shouldFlush {
		go c.flush(context.Background())
	}
}

// Close waits for the background flush loop to finish.
func (c *Collector) Close() {
	<-c.done
}

// BufferLen returns the current number of buffered events.
func (c *Collector) BufferLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

func (c *Collector) flush(ctx context.Context) {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = make([]kafka.Event, 0, c.batchSize)
	c.mu.Unlock()

	if err := c.broker.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("outcome flush failed, dropping batch",
			"batch_size", len(batch),
			"error", err,
		)
		return
	}
	if c.metrics != nil {
		c.metrics.OutcomeEventsPublishedTotal.Add(float64(len(batch)))
	}
	c.logger.Debug("outcome batch flushed", "events", len(batch))
}
