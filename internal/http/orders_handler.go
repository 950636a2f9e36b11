package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/TFFe0123/woody-nest/internal/auth"
	"github.com/TFFe0123/woody-nest/internal/domain"
)

type OrderLister interface {
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
}

type OrdersHandler struct {
	orders  OrderLister
	logger  *slog.Logger
	timeout time.Duration
}

func NewOrdersHandler(orders OrderLister, logger *slog.Logger, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		logger:  logger,
		timeout: timeout,
	}
}

type OrderResponseDTO struct {
	ID          string `json:"id"`
	OrderID     string `json:"orderId"`
	ProductName string `json:"productName"`
	Amount      int64  `json:"amount"`
	Status      string `json:"status"`
	PaymentKey  string `json:"paymentKey"`
	ItemID      *int64 `json:"itemId,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "missing_token", msgMissingToken)
		return
	}

	orders, err := h.orders.ListOrdersByUserID(ctx, id.UserID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list orders", "user_id", id.UserID, "error", err)
		respondError(w, r, http.StatusInternalServerError, "internal_error", msgInternal)
		return
	}

	dtos := make([]OrderResponseDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, convertOrder(o))
	}

	respondJSON(w, r, http.StatusOK, dtos)
}

func convertOrder(o *domain.Order) OrderResponseDTO {
	return OrderResponseDTO{
		ID:          o.ID.String(),
		OrderID:     o.OrderReference,
		ProductName: o.ProductName,
		Amount:      o.Amount,
		Status:      string(o.Status),
		PaymentKey:  o.PaymentReference,
		ItemID:      o.ItemID,
		CreatedAt:   o.CreatedAt.Format(time.RFC3339),
	}
}
