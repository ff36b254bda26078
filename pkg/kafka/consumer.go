// Package kafka provides the broker channel of the ingestion pipeline,
// backed by segmentio/kafka-go. The producer serialises events as JSON; the
// consumer delivers them to a MessageHandler and commits the offset only
// after the handler returns nil, giving at-least-once semantics: a crash or
// handler failure before commit leaves the message eligible for redelivery.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/docuflow/ingestion-platform/pkg/config"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"
)

// MessageHandler is a callback invoked for each Kafka message. Returning nil
// acknowledges the message; returning an error leaves it unacknowledged.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer reads messages from a Kafka topic with a consumer group and
// dispatches them to a MessageHandler from a pool of workers. Handlers must
// tolerate concurrent and duplicate delivery of the same message.
type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	handler MessageHandler
	workers int
}

// NewConsumer creates a Consumer for the given topic and handler. workers
// controls how many messages are processed concurrently; values below 1 are
// treated as 1.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler, workers int) *Consumer {
	if workers < 1 {
		workers = 1
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1e3,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})

	return &Consumer{
		reader:  r,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
		handler: handler,
		workers: workers,
	}
}

// Start runs the worker pool until ctx is cancelled. Each worker fetches,
// handles, and commits messages independently; no ordering is guaranteed
// across messages.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started", "workers", c.workers)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < c.workers; i++ {
		worker := i
		g.Go(func() error {
			return c.consumeLoop(ctx, worker)
		})
	}
	err := g.Wait()
	if closeErr := c.reader.Close(); closeErr != nil {
		c.logger.Error("failed to close reader", "error", closeErr)
	}
	return err
}

func (c *Consumer) consumeLoop(ctx context.Context, worker int) error {
	log := c.logger.With("worker", worker)
	for {
		select {
		case <-ctx.Done():
			log.Info("worker stopping", "reason", ctx.Err())
			return nil
		default:
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error("failed to fetch message", "error", err)
			continue
		}
		log.Debug("message received",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"value_size", len(msg.Value),
		)
		if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
			// No commit: the message stays eligible for redelivery. Back off
			// briefly so a persistently failing dependency is not hammered.
			log.Error("failed to process message, leaving unacknowledged",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			log.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// Close closes the underlying Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON is a generic helper that unmarshals a Kafka message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
