package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/TFFe0123/woody-nest/internal/auth"
	"github.com/TFFe0123/woody-nest/internal/domain"
	"github.com/TFFe0123/woody-nest/internal/idempotency"
	"github.com/TFFe0123/woody-nest/internal/payment"
	"github.com/TFFe0123/woody-nest/internal/publisher"
	"github.com/TFFe0123/woody-nest/internal/repository"
	"golang.org/x/sync/singleflight"
)

type ConfirmationService struct {
	gateway  Gateway
	orders   OrderStore
	recorder *OrderRecorder
	claims   idempotency.ClaimStore
	events   publisher.EventPublisher
	logger   *slog.Logger
	now      clock

	group singleflight.Group
}

func NewConfirmationService(
	gateway Gateway,
	orders OrderStore,
	recorder *OrderRecorder,
	claims idempotency.ClaimStore,
	events publisher.EventPublisher,
	logger *slog.Logger,
) *ConfirmationService {
	if claims == nil {
		claims = idempotency.NoopClaimStore{}
	}
	if events == nil {
		events = publisher.NoopPublisher{}
	}
	return &ConfirmationService{
		gateway:  gateway,
		orders:   orders,
		recorder: recorder,
		claims:   claims,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
}

// Confirm settles one checkout with the processor and records the order.
// Identical concurrent submissions share a single processor call; a
// submission for an order that is already recorded returns that order.
func (s *ConfirmationService) Confirm(ctx context.Context, id *auth.Identity, req domain.ConfirmRequest) (*ConfirmResult, error) {
	key := id.UserID + ":" + req.OrderReference

	v, err, shared := s.group.Do(key, func() (any, error) {
		return s.confirmOnce(ctx, id, req)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.InfoContext(ctx, "confirmation shared with concurrent request", "order_reference", req.OrderReference)
	}
	return v.(*ConfirmResult), nil
}

func (s *ConfirmationService) confirmOnce(ctx context.Context, id *auth.Identity, req domain.ConfirmRequest) (*ConfirmResult, error) {
	token, err := s.claims.Claim(ctx, req.OrderReference)
	switch {
	case errors.Is(err, idempotency.ErrClaimHeld):
		return nil, err
	case err != nil:
		// the unique index on orders still holds without the claim
		s.logger.WarnContext(ctx, "claim store unavailable", "order_reference", req.OrderReference, "error", err)
	default:
		defer func() {
			if err := s.claims.Release(context.WithoutCancel(ctx), req.OrderReference, token); err != nil {
				s.logger.WarnContext(ctx, "failed to release claim", "order_reference", req.OrderReference, "error", err)
			}
		}()
	}

	dup, err := s.recordedOrder(ctx, id, req)
	if err != nil {
		return nil, err
	}
	if dup != nil {
		return dup, nil
	}

	res, err := s.gateway.Confirm(ctx, payment.ConfirmRequest{
		PaymentKey: req.PaymentReference,
		OrderID:    req.OrderReference,
		Amount:     req.Amount,
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "payment confirmed",
		"order_reference", req.OrderReference,
		"payment_reference", res.PaymentKey,
		"amount", res.TotalAmount,
		"method", res.Method)

	order := s.recorder.Record(ctx, id.UserID, req, res)
	s.publish(ctx, order, res)

	return &ConfirmResult{Payment: res, Order: order}, nil
}

// recordedOrder returns the stored result for an already confirmed reference.
// A ledger payment without its order row counts as confirmed: the order is
// restored and the processor is not called again. Lookup failures are logged
// and treated as "not recorded".
func (s *ConfirmationService) recordedOrder(ctx context.Context, id *auth.Identity, req domain.ConfirmRequest) (*ConfirmResult, error) {
	order, err := s.orders.GetOrderByReference(ctx, req.OrderReference)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return s.recordedPayment(ctx, id, req)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "failed to check for recorded order", "order_reference", req.OrderReference, "error", err)
		return nil, nil
	}

	if order.UserID != id.UserID {
		return nil, fmt.Errorf("%w: %s", ErrReferenceConflict, req.OrderReference)
	}

	s.logger.InfoContext(ctx, "duplicate confirmation", "order_reference", req.OrderReference, "order_id", order.ID.String())
	return duplicateResult(order, nil), nil
}

func (s *ConfirmationService) recordedPayment(ctx context.Context, id *auth.Identity, req domain.ConfirmRequest) (*ConfirmResult, error) {
	p, err := s.orders.GetPaymentByReference(ctx, req.OrderReference)
	if errors.Is(err, repository.ErrPaymentNotFound) {
		return nil, nil
	}
	if err != nil {
		s.logger.WarnContext(ctx, "failed to check payment ledger", "order_reference", req.OrderReference, "error", err)
		return nil, nil
	}

	if p.UserID != id.UserID {
		return nil, fmt.Errorf("%w: %s", ErrReferenceConflict, req.OrderReference)
	}

	s.logger.WarnContext(ctx, "confirmed payment has no order, restoring",
		"order_reference", req.OrderReference,
		"payment_reference", p.PaymentReference)

	order, err := s.recorder.restore(context.WithoutCancel(ctx), p)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to restore order", "order_reference", req.OrderReference, "error", err)
	}
	return duplicateResult(order, p), nil
}

// duplicateResult rebuilds the processor view from stored rows. p is nil
// when only the order row is at hand.
func duplicateResult(order *domain.Order, p *domain.Payment) *ConfirmResult {
	res := &payment.Result{
		Status:      payment.StatusDone,
		PaymentKey:  order.PaymentReference,
		OrderID:     order.OrderReference,
		OrderName:   order.ProductName,
		TotalAmount: order.Amount,
	}
	if p != nil {
		res.Method = p.Method
		if p.ApprovedAt != nil {
			res.ApprovedAt = p.ApprovedAt.Format(time.RFC3339)
		}
	}
	return &ConfirmResult{Payment: res, Order: order, Duplicate: true}
}

func (s *ConfirmationService) publish(ctx context.Context, order *domain.Order, res *payment.Result) {
	event := domain.PaymentConfirmedEvent{
		OrderReference:   order.OrderReference,
		PaymentReference: order.PaymentReference,
		UserID:           order.UserID,
		ItemID:           order.ItemID,
		ProductName:      order.ProductName,
		Amount:           order.Amount,
		Method:           res.Method,
		ApprovedAt:       res.ApprovedAt,
		ConfirmedAt:      s.now().UTC(),
	}
	if err := s.events.PublishPaymentConfirmed(context.WithoutCancel(ctx), event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish payment event", "order_reference", order.OrderReference, "error", err)
	}
}
