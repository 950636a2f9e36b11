package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/TFFe0123/woody-nest/internal/catalog"
	"github.com/TFFe0123/woody-nest/internal/domain"
	"github.com/TFFe0123/woody-nest/internal/payment"
	"github.com/TFFe0123/woody-nest/internal/repository"
	"github.com/google/uuid"
)

// OrderRecorder turns a processor-confirmed payment into ledger and order
// rows. Storage failures are logged, never returned; the reconciler repairs
// missing orders from the ledger.
type OrderRecorder struct {
	store   OrderStore
	catalog CatalogLookup
	logger  *slog.Logger
}

func NewOrderRecorder(store OrderStore, lookup CatalogLookup, logger *slog.Logger) *OrderRecorder {
	return &OrderRecorder{store: store, catalog: lookup, logger: logger}
}

func (r *OrderRecorder) Record(ctx context.Context, userID string, req domain.ConfirmRequest, res *payment.Result) *domain.Order {
	ctx = context.WithoutCancel(ctx)

	itemID := req.ResolveItemID()
	name := r.productName(ctx, req, itemID)
	if name == "" {
		name = res.OrderName
	}
	if name == "" {
		name = domain.DefaultProductName
	}

	paymentRef := res.PaymentKey
	if paymentRef == "" {
		paymentRef = req.PaymentReference
	}

	if res.TotalAmount != 0 && res.TotalAmount != req.Amount {
		r.logger.WarnContext(ctx, "amount_mismatch",
			"source", "processor",
			"order_reference", req.OrderReference,
			"client_amount", req.Amount,
			"processor_amount", res.TotalAmount)
	}

	p := &domain.Payment{
		ID:               uuid.New(),
		UserID:           userID,
		OrderReference:   req.OrderReference,
		PaymentReference: paymentRef,
		ProductName:      name,
		Amount:           req.Amount,
		Method:           res.Method,
		Status:           domain.OrderStatusCompleted,
		ItemID:           itemID,
		ApprovedAt:       parseApprovedAt(res.ApprovedAt),
	}
	if err := r.store.RecordPayment(ctx, p); err != nil && !errors.Is(err, repository.ErrDuplicatePayment) {
		r.logger.WarnContext(ctx, "failed to record payment ledger row",
			"order_reference", req.OrderReference,
			"payment_reference", paymentRef,
			"error", err)
	}

	order := orderFromPayment(p)
	if err := r.store.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, repository.ErrDuplicateOrder) {
			r.logger.InfoContext(ctx, "order already recorded", "order_reference", req.OrderReference)
			return order
		}
		r.logger.WarnContext(ctx, "failed to record order",
			"order_reference", req.OrderReference,
			"payment_reference", paymentRef,
			"user_id", userID,
			"error", err)
		return order
	}

	r.logger.InfoContext(ctx, "order recorded",
		"order_id", order.ID.String(),
		"order_reference", order.OrderReference,
		"product_name", order.ProductName,
		"amount", order.Amount)
	return order
}

// Restore writes the order row for a ledger payment that has none.
// An order that already exists counts as restored.
func (r *OrderRecorder) Restore(ctx context.Context, p *domain.Payment) error {
	_, err := r.restore(ctx, p)
	return err
}

func (r *OrderRecorder) restore(ctx context.Context, p *domain.Payment) (*domain.Order, error) {
	order := orderFromPayment(p)
	if order.ProductName == "" {
		order.ProductName = domain.DefaultProductName
	}

	err := r.store.CreateOrder(ctx, order)
	if err != nil && !errors.Is(err, repository.ErrDuplicateOrder) {
		return order, err
	}
	if err == nil {
		r.logger.InfoContext(ctx, "order restored",
			"order_id", order.ID.String(),
			"order_reference", order.OrderReference)
	}
	return order, nil
}

func (r *OrderRecorder) productName(ctx context.Context, req domain.ConfirmRequest, itemID *int64) string {
	if itemID == nil || r.catalog == nil {
		return ""
	}

	item, err := r.catalog.Find(ctx, *itemID)
	if err != nil {
		if !errors.Is(err, catalog.ErrFurnitureNotFound) {
			r.logger.WarnContext(ctx, "catalog lookup failed", "item_id", *itemID, "error", err)
		}
		return ""
	}

	if item.Price != req.Amount {
		r.logger.WarnContext(ctx, "amount_mismatch",
			"source", "catalog",
			"order_reference", req.OrderReference,
			"item_id", *itemID,
			"client_amount", req.Amount,
			"catalog_price", item.Price)
	}
	return item.Title
}

func orderFromPayment(p *domain.Payment) *domain.Order {
	return &domain.Order{
		ID:               uuid.New(),
		UserID:           p.UserID,
		OrderReference:   p.OrderReference,
		ProductName:      p.ProductName,
		Amount:           p.Amount,
		Status:           domain.OrderStatusCompleted,
		PaymentReference: p.PaymentReference,
		ItemID:           p.ItemID,
	}
}

func parseApprovedAt(v string) *time.Time {
	if v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil
	}
	return &t
}
