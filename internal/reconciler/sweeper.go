package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/TFFe0123/woody-nest/internal/domain"
)

const (
	DefaultInterval = time.Minute
	// DefaultGrace leaves in-flight confirmations alone; the request path
	// writes the ledger row just before the order row.
	DefaultGrace     = 2 * time.Minute
	defaultBatchSize = 100
)

type PaymentLister interface {
	ListUnreconciledPayments(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Payment, error)
}

// Sweeper cross-checks the payments ledger against orders and restores
// the orders that are missing.
type Sweeper struct {
	payments PaymentLister
	restorer Restorer
	interval time.Duration
	grace    time.Duration
	batch    int
	logger   *slog.Logger
	now      func() time.Time
}

func NewSweeper(payments PaymentLister, restorer Restorer, interval, grace time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Sweeper{
		payments: payments,
		restorer: restorer,
		interval: interval,
		grace:    grace,
		batch:    defaultBatchSize,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.ErrorContext(ctx, "reconciliation sweep failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Sweep restores one batch of payments without orders and reports how many
// orders it wrote.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	payments, err := s.payments.ListUnreconciledPayments(ctx, s.now().Add(-s.grace), s.batch)
	if err != nil {
		return 0, fmt.Errorf("list unreconciled payments: %w", err)
	}

	restored := 0
	for _, p := range payments {
		s.logger.WarnContext(ctx, "payment without order",
			"order_reference", p.OrderReference,
			"payment_reference", p.PaymentReference,
			"user_id", p.UserID)

		if err := s.restorer.Restore(ctx, p); err != nil {
			s.logger.ErrorContext(ctx, "failed to restore order",
				"order_reference", p.OrderReference, "error", err)
			continue
		}
		restored++
	}

	if len(payments) > 0 {
		s.logger.InfoContext(ctx, "reconciliation sweep finished", "found", len(payments), "restored", restored)
	}
	return restored, nil
}
