// Package kafka forwards committed order events from the outbox to Kafka.
package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/cimillas/grabticket/internal/domain"
	"github.com/cimillas/grabticket/internal/metrics"
)

// OutboxStore is the storage side of the outbox.
type OutboxStore interface {
	FetchUnsent(ctx context.Context, limit int) ([]domain.OutboxMessage, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, reason string, attempts int) error
}

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewWriter builds a writer for brokers. The topic comes from each message.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

type DispatcherConfig struct {
	BatchSize  int
	Interval   time.Duration
	MaxRetries int
	Backoff    time.Duration
}

// OutboxDispatcher polls the outbox and publishes unsent messages. Messages
// keyed by order id keep per-order ordering on a partition.
type OutboxDispatcher struct {
	logger *zap.Logger
	store  OutboxStore
	writer MessageWriter
	cfg    DispatcherConfig
}

func NewOutboxDispatcher(logger *zap.Logger, store OutboxStore, writer MessageWriter, cfg DispatcherConfig) *OutboxDispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutboxDispatcher{
		logger: logger.With(zap.String("component", "outbox_dispatcher")),
		store:  store,
		writer: writer,
		cfg:    cfg,
	}
}

// Run processes batches until ctx is cancelled.
func (d *OutboxDispatcher) Run(ctx context.Context) error {
	d.logger.Info("starting outbox dispatcher",
		zap.Int("batch_size", d.cfg.BatchSize),
		zap.Duration("interval", d.cfg.Interval),
		zap.Int("max_retries", d.cfg.MaxRetries),
	)

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := d.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error("failed to process outbox batch", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			d.logger.Info("outbox dispatcher stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// ProcessBatch publishes one batch of unsent messages. A message that cannot
// be published is marked failed and picked up again on a later batch.
func (d *OutboxDispatcher) ProcessBatch(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	msgs, err := d.store.FetchUnsent(ctx, d.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("fetch unsent: %w", err)
	}

	for _, msg := range msgs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := d.publish(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.logger.Error("failed to publish outbox message",
				zap.Error(err),
				zap.String("message_id", msg.ID),
				zap.String("topic", msg.Topic),
			)
		}
	}
	return nil
}

func (d *OutboxDispatcher) publish(ctx context.Context, msg domain.OutboxMessage) error {
	var lastErr error
	for attempt := 1; attempt <= d.cfg.MaxRetries; attempt++ {
		err := d.writer.WriteMessages(ctx, kafka.Message{
			Topic: msg.Topic,
			Key:   []byte(msg.AggregateID),
			Value: msg.Payload,
		})
		if err == nil {
			metrics.OutboxPublished.WithLabelValues("sent").Inc()
			if err := d.store.MarkSent(ctx, msg.ID); err != nil {
				return fmt.Errorf("mark sent: %w", err)
			}
			d.logger.Debug("outbox message published",
				zap.String("message_id", msg.ID),
				zap.String("aggregate_id", msg.AggregateID),
				zap.Int("attempt", attempt),
			)
			return nil
		}

		lastErr = err
		d.logger.Warn("publish attempt failed",
			zap.Error(err),
			zap.String("message_id", msg.ID),
			zap.Int("attempt", attempt),
		)
		if attempt < d.cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.cfg.Backoff * time.Duration(attempt)):
			}
		}
	}

	metrics.OutboxPublished.WithLabelValues("failed").Inc()
	reason := fmt.Sprintf("failed after %d attempts: %v", d.cfg.MaxRetries, lastErr)
	if err := d.store.MarkFailed(ctx, msg.ID, reason, d.cfg.MaxRetries); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return fmt.Errorf("publish after %d attempts: %w", d.cfg.MaxRetries, lastErr)
}

// Close closes the underlying writer.
func (d *OutboxDispatcher) Close() error {
	return d.writer.Close()
}
