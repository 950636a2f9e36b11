package service

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/TFFe0123/woody-nest/internal/catalog"
	"github.com/TFFe0123/woody-nest/internal/domain"
	"github.com/TFFe0123/woody-nest/internal/idempotency"
	"github.com/TFFe0123/woody-nest/internal/payment"
	"github.com/TFFe0123/woody-nest/internal/repository"
)

// MockGateway implements Gateway for testing
type MockGateway struct {
	Result  *payment.Result
	Err     error
	Calls   atomic.Int32
	Entered chan struct{}
	Release chan struct{}
	LastReq payment.ConfirmRequest
}

func (m *MockGateway) Confirm(_ context.Context, req payment.ConfirmRequest) (*payment.Result, error) {
	m.Calls.Add(1)
	m.LastReq = req
	if m.Entered != nil {
		m.Entered <- struct{}{}
	}
	if m.Release != nil {
		<-m.Release
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Result, nil
}

// MockOrderStore implements OrderStore for testing
type MockOrderStore struct {
	mu             sync.Mutex
	Orders         map[string]*domain.Order
	Payments       []*domain.Payment
	GetErr         error
	CreateErr      error
	RecordErr      error
	CreateCalls    int
	PaymentCalls   int
	DuplicateOnAdd bool
}

func NewMockOrderStore() *MockOrderStore {
	return &MockOrderStore{Orders: map[string]*domain.Order{}}
}

func (m *MockOrderStore) CreateOrder(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if _, ok := m.Orders[order.OrderReference]; ok || m.DuplicateOnAdd {
		return repository.ErrDuplicateOrder
	}
	m.Orders[order.OrderReference] = order
	return nil
}

func (m *MockOrderStore) GetOrderByReference(_ context.Context, ref string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	o, ok := m.Orders[ref]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return o, nil
}

func (m *MockOrderStore) RecordPayment(_ context.Context, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PaymentCalls++
	if m.RecordErr != nil {
		return m.RecordErr
	}
	m.Payments = append(m.Payments, p)
	return nil
}

func (m *MockOrderStore) GetPaymentByReference(_ context.Context, ref string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.Payments {
		if p.OrderReference == ref {
			return p, nil
		}
	}
	return nil, repository.ErrPaymentNotFound
}

func (m *MockOrderStore) OrderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Orders)
}

// MockCatalog implements CatalogLookup for testing
type MockCatalog struct {
	Items map[int64]*domain.Furniture
	Err   error
	Calls []int64
}

func (m *MockCatalog) Find(_ context.Context, id int64) (*domain.Furniture, error) {
	m.Calls = append(m.Calls, id)
	if m.Err != nil {
		return nil, m.Err
	}
	f, ok := m.Items[id]
	if !ok {
		return nil, catalog.ErrFurnitureNotFound
	}
	return f, nil
}

// MockClaims implements idempotency.ClaimStore for testing
type MockClaims struct {
	ClaimErr  error
	Claimed   []string
	Released  []string
	ReleaseMu sync.Mutex
}

func (m *MockClaims) Claim(_ context.Context, ref string) (string, error) {
	if m.ClaimErr != nil {
		return "", m.ClaimErr
	}
	m.ReleaseMu.Lock()
	defer m.ReleaseMu.Unlock()
	m.Claimed = append(m.Claimed, ref)
	return "token-" + ref, nil
}

func (m *MockClaims) Release(_ context.Context, ref, token string) error {
	m.ReleaseMu.Lock()
	defer m.ReleaseMu.Unlock()
	m.Released = append(m.Released, ref)
	return nil
}

var _ idempotency.ClaimStore = (*MockClaims)(nil)

// MockPublisher implements publisher.EventPublisher for testing
type MockPublisher struct {
	mu     sync.Mutex
	Events []domain.PaymentConfirmedEvent
	Err    error
}

func (m *MockPublisher) PublishPaymentConfirmed(_ context.Context, e domain.PaymentConfirmedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Events = append(m.Events, e)
	return nil
}

func (m *MockPublisher) Close() error { return nil }
