package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/TFFe0123/woody-nest/internal/domain"
	"github.com/segmentio/kafka-go"
)

const (
	TopicPaymentConfirmed     = "payment-confirmed"
	EventTypePaymentConfirmed = "PaymentConfirmed"
)

type EventPublisher interface {
	PublishPaymentConfirmed(ctx context.Context, event domain.PaymentConfirmedEvent) error
	Close() error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer  MessageWriter
	timeout time.Duration
}

func NewKafkaPublisher(brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  TopicPaymentConfirmed,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return NewPublisherWithWriter(w)
}

func NewPublisherWithWriter(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w, timeout: 5 * time.Second}
}

// PublishPaymentConfirmed keys the message by order reference so every event
// for one order lands on the same partition.
func (p *KafkaPublisher) PublishPaymentConfirmed(ctx context.Context, event domain.PaymentConfirmedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal payment event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderReference),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypePaymentConfirmed)},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish payment event %s: %w", event.OrderReference, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops events. Used when no brokers are configured; the
// reconciler sweep still covers missing orders from the payments ledger.
type NoopPublisher struct{}

func (NoopPublisher) PublishPaymentConfirmed(context.Context, domain.PaymentConfirmedEvent) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }
