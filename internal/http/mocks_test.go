package http

import (
	"context"
	"sync"
	"time"

	"github.com/TFFe0123/woody-nest/internal/auth"
	"github.com/TFFe0123/woody-nest/internal/catalog"
	"github.com/TFFe0123/woody-nest/internal/domain"
	"github.com/TFFe0123/woody-nest/internal/repository"
	"github.com/TFFe0123/woody-nest/internal/service"
)

// AuthenticatorMock accepts the tokens in Users.
type AuthenticatorMock struct {
	Users map[string]*auth.Identity
	Err   error
}

func (m AuthenticatorMock) Authenticate(_ context.Context, token string) (*auth.Identity, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	id, ok := m.Users[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return id, nil
}

type ConfirmerMock struct {
	Result  *service.ConfirmResult
	Err     error
	Panic   any
	Calls   int
	LastID  *auth.Identity
	LastReq domain.ConfirmRequest
}

func (m *ConfirmerMock) Confirm(_ context.Context, id *auth.Identity, req domain.ConfirmRequest) (*service.ConfirmResult, error) {
	m.Calls++
	m.LastID = id
	m.LastReq = req
	if m.Panic != nil {
		panic(m.Panic)
	}
	return m.Result, m.Err
}

type OrderListerMock struct {
	Orders []*domain.Order
	Err    error
	UserID string
}

func (m *OrderListerMock) ListOrdersByUserID(_ context.Context, userID string) ([]*domain.Order, error) {
	m.UserID = userID
	return m.Orders, m.Err
}

type FurnitureStoreMock struct {
	Items      map[int64]*domain.Furniture
	Err        error
	LastFilter catalog.Filter
	Created    []*domain.Furniture
}

func (m *FurnitureStoreMock) GetFurniture(_ context.Context, id int64) (*domain.Furniture, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	f, ok := m.Items[id]
	if !ok {
		return nil, catalog.ErrFurnitureNotFound
	}
	return f, nil
}

func (m *FurnitureStoreMock) ListFurniture(_ context.Context, filter catalog.Filter) ([]*domain.Furniture, error) {
	m.LastFilter = filter
	if m.Err != nil {
		return nil, m.Err
	}
	var out []*domain.Furniture
	for _, f := range m.Items {
		out = append(out, f)
	}
	return out, nil
}

func (m *FurnitureStoreMock) ListFurnitureByUserID(_ context.Context, userID string) ([]*domain.Furniture, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var out []*domain.Furniture
	for _, f := range m.Items {
		if f.UserID == userID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *FurnitureStoreMock) CreateFurniture(_ context.Context, f *domain.Furniture) error {
	if m.Err != nil {
		return m.Err
	}
	if m.Items == nil {
		m.Items = map[int64]*domain.Furniture{}
	}
	f.ID = int64(100 + len(m.Created))
	f.CreatedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m.Items[f.ID] = f
	m.Created = append(m.Created, f)
	return nil
}

// memoryStore implements service.OrderStore for end-to-end handler tests.
type memoryStore struct {
	mu       sync.Mutex
	orders   map[string]*domain.Order
	payments []*domain.Payment
}

func newMemoryStore() *memoryStore {
	return &memoryStore{orders: map[string]*domain.Order{}}
}

func (s *memoryStore) CreateOrder(_ context.Context, o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.OrderReference]; ok {
		return repository.ErrDuplicateOrder
	}
	s.orders[o.OrderReference] = o
	return nil
}

func (s *memoryStore) GetOrderByReference(_ context.Context, ref string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[ref]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return o, nil
}

func (s *memoryStore) RecordPayment(_ context.Context, p *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments = append(s.payments, p)
	return nil
}

func (s *memoryStore) GetPaymentByReference(_ context.Context, ref string) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.OrderReference == ref {
			return p, nil
		}
	}
	return nil, repository.ErrPaymentNotFound
}
