package service

import (
	"context"
	"time"

	"github.com/TFFe0123/woody-nest/internal/domain"
	"github.com/TFFe0123/woody-nest/internal/payment"
)

type Gateway interface {
	Confirm(ctx context.Context, req payment.ConfirmRequest) (*payment.Result, error)
}

type CatalogLookup interface {
	Find(ctx context.Context, id int64) (*domain.Furniture, error)
}

type OrderStore interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByReference(ctx context.Context, orderReference string) (*domain.Order, error)
	RecordPayment(ctx context.Context, payment *domain.Payment) error
	GetPaymentByReference(ctx context.Context, orderReference string) (*domain.Payment, error)
}

// ConfirmResult is what a confirmation produced. Duplicate is set when the
// order already existed and the processor was not called again.
type ConfirmResult struct {
	Payment   *payment.Result
	Order     *domain.Order
	Duplicate bool
}

type clock func() time.Time
