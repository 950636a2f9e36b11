package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/TFFe0123/woody-nest/internal/domain"
	"github.com/TFFe0123/woody-nest/internal/publisher"
	"github.com/TFFe0123/woody-nest/pkg/logger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockRestorer struct {
	mu       sync.Mutex
	Restored []*domain.Payment
	Err      error
	FailRefs map[string]bool
}

func (m *MockRestorer) Restore(_ context.Context, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil || m.FailRefs[p.OrderReference] {
		return errors.New("restore failed")
	}
	m.Restored = append(m.Restored, p)
	return nil
}

func (m *MockRestorer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Restored)
}

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	closed    bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.queue) > 0 {
		m := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

func (f *fakeReader) Committed() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.committed...)
}

func eventMessage(t *testing.T, offset int64, event domain.PaymentConfirmedEvent) kafka.Message {
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{
		Offset: offset,
		Key:    []byte(event.OrderReference),
		Value:  payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(publisher.EventTypePaymentConfirmed)},
		},
	}
}

func TestConsumer_RestoresAndCommits(t *testing.T) {
	itemID := int64(42)
	reader := &fakeReader{queue: []kafka.Message{
		eventMessage(t, 1, domain.PaymentConfirmedEvent{
			OrderReference:   "order_42_1",
			PaymentReference: "pk_1",
			UserID:           "user-1",
			ItemID:           &itemID,
			ProductName:      "Oak Table",
			Amount:           150000,
			ApprovedAt:       "2024-03-01T10:00:00+09:00",
		}),
		{Offset: 2, Value: []byte("not json")},
		{Offset: 3, Value: []byte(`{}`), Headers: []kafka.Header{{Key: "event_type", Value: []byte("Other")}}},
	}}
	restorer := &MockRestorer{}
	c := NewConsumerWithReader(restorer, reader, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	require.Eventually(t, func() bool {
		return len(reader.Committed()) == 3
	}, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, 1, restorer.Count())
	p := restorer.Restored[0]
	assert.Equal(t, "order_42_1", p.OrderReference)
	assert.Equal(t, "Oak Table", p.ProductName)
	assert.Equal(t, domain.OrderStatusCompleted, p.Status)
	require.NotNil(t, p.ApprovedAt)
	assert.Equal(t, []int64{1, 2, 3}, reader.Committed())

	c.Close()
	assert.True(t, reader.closed)
}

func TestConsumer_RestoreFailureIsNotCommitted(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		eventMessage(t, 1, domain.PaymentConfirmedEvent{OrderReference: "order_1_1", UserID: "u"}),
		eventMessage(t, 2, domain.PaymentConfirmedEvent{OrderReference: "order_2_2", UserID: "u"}),
	}}
	restorer := &MockRestorer{FailRefs: map[string]bool{"order_1_1": true}}
	c := NewConsumerWithReader(restorer, reader, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	require.Eventually(t, func() bool {
		return len(reader.Committed()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []int64{2}, reader.Committed())
}

func TestConsumer_FailedEventRestoredBySweep(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		eventMessage(t, 1, domain.PaymentConfirmedEvent{OrderReference: "order_1_1", UserID: "u"}),
		eventMessage(t, 2, domain.PaymentConfirmedEvent{OrderReference: "order_2_2", UserID: "u"}),
	}}
	restorer := &MockRestorer{FailRefs: map[string]bool{"order_1_1": true}}
	c := NewConsumerWithReader(restorer, reader, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	// the later commit moves the group offset past the failed event
	require.Eventually(t, func() bool {
		return len(reader.Committed()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, 1, restorer.Count())

	restorer.mu.Lock()
	restorer.FailRefs = nil
	restorer.mu.Unlock()

	payments := &MockPayments{Payments: []*domain.Payment{{OrderReference: "order_1_1", UserID: "u"}}}
	n, err := NewSweeper(payments, restorer, time.Minute, time.Minute, logger.Discard()).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, restorer.Count())
}

type MockPayments struct {
	Payments  []*domain.Payment
	Err       error
	OlderThan time.Time
	Limit     int
}

func (m *MockPayments) ListUnreconciledPayments(_ context.Context, olderThan time.Time, limit int) ([]*domain.Payment, error) {
	m.OlderThan = olderThan
	m.Limit = limit
	return m.Payments, m.Err
}

func TestSweep_RestoresMissingOrders(t *testing.T) {
	payments := &MockPayments{Payments: []*domain.Payment{
		{OrderReference: "order_1_1"},
		{OrderReference: "order_2_2"},
		{OrderReference: "order_3_3"},
	}}
	restorer := &MockRestorer{FailRefs: map[string]bool{"order_2_2": true}}

	s := NewSweeper(payments, restorer, time.Minute, 5*time.Minute, logger.Discard())
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, now.Add(-5*time.Minute), payments.OlderThan)
	assert.Equal(t, defaultBatchSize, payments.Limit)
}

func TestSweep_ListError(t *testing.T) {
	payments := &MockPayments{Err: errors.New("db down")}
	s := NewSweeper(payments, &MockRestorer{}, 0, 0, logger.Discard())

	n, err := s.Sweep(context.Background())
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Equal(t, DefaultInterval, s.interval)
	assert.Equal(t, DefaultGrace, s.grace)
}

func TestSweeper_RunTicks(t *testing.T) {
	payments := &MockPayments{Payments: []*domain.Payment{{OrderReference: "order_1_1"}}}
	restorer := &MockRestorer{}
	s := NewSweeper(payments, restorer, 10*time.Millisecond, time.Minute, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return restorer.Count() > 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
