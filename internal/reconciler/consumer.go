package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/TFFe0123/woody-nest/internal/domain"
	"github.com/TFFe0123/woody-nest/internal/publisher"
	"github.com/segmentio/kafka-go"
)

type Restorer interface {
	Restore(ctx context.Context, p *domain.Payment) error
}

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer makes sure every payment-confirmed event has an order row.
type Consumer struct {
	restorer Restorer
	reader   MessageReader
	logger   *slog.Logger
}

func NewConsumer(restorer Restorer, logger *slog.Logger, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    publisher.TopicPaymentConfirmed,
		GroupID:  "woody-reconciler",
		MaxBytes: 10e6, // 10MB
	})
	return NewConsumerWithReader(restorer, reader, logger)
}

func NewConsumerWithReader(restorer Restorer, reader MessageReader, logger *slog.Logger) *Consumer {
	return &Consumer{restorer: restorer, reader: reader, logger: logger}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Error("error closing kafka reader", "error", err)
	}
}

func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		c.logger.ErrorContext(ctx, "error reading message", "error", err)
		return
	}

	if t := eventType(m); t != "" && t != publisher.EventTypePaymentConfirmed {
		c.commit(ctx, m)
		return
	}

	var event domain.PaymentConfirmedEvent
	if err := json.Unmarshal(m.Value, &event); err != nil || event.OrderReference == "" {
		c.logger.ErrorContext(ctx, "skipping malformed payment event",
			"offset", m.Offset, "partition", m.Partition, "error", err)
		c.commit(ctx, m)
		return
	}

	if err := c.restorer.Restore(ctx, event.Payment()); err != nil {
		// Not committed, but the reader does not redeliver it in this session and
		// the next commit moves past it. The ledger sweep is what restores it.
		c.logger.ErrorContext(ctx, "failed to restore order from event",
			"order_reference", event.OrderReference, "error", err)
		return
	}

	c.commit(ctx, m)
}

func (c *Consumer) commit(ctx context.Context, m kafka.Message) {
	if err := c.reader.CommitMessages(ctx, m); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.ErrorContext(ctx, "failed to commit message", "offset", m.Offset, "error", err)
	}
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
