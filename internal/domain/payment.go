package domain

import (
	"time"

	"github.com/google/uuid"
)

// Payment is the ledger row kept for every processor-confirmed charge.
// The reconciler compares it against orders to find missing order rows.
type Payment struct {
	ID               uuid.UUID
	UserID           string
	OrderReference   string
	PaymentReference string
	ProductName      string
	Amount           int64
	Method           string
	Status           OrderStatus
	ItemID           *int64
	ApprovedAt       *time.Time
	CreatedAt        time.Time
}

// PaymentConfirmedEvent is published after the processor confirms a charge.
type PaymentConfirmedEvent struct {
	OrderReference   string    `json:"order_reference"`
	PaymentReference string    `json:"payment_reference"`
	UserID           string    `json:"user_id"`
	ItemID           *int64    `json:"item_id,omitempty"`
	ProductName      string    `json:"product_name"`
	Amount           int64     `json:"amount"`
	Method           string    `json:"method,omitempty"`
	ApprovedAt       string    `json:"approved_at,omitempty"`
	ConfirmedAt      time.Time `json:"confirmed_at"`
}

// Payment converts the event back into a ledger row so the reconciler can
// restore an order from it.
func (e PaymentConfirmedEvent) Payment() *Payment {
	p := &Payment{
		UserID:           e.UserID,
		OrderReference:   e.OrderReference,
		PaymentReference: e.PaymentReference,
		ProductName:      e.ProductName,
		Amount:           e.Amount,
		Method:           e.Method,
		Status:           OrderStatusCompleted,
		ItemID:           e.ItemID,
		CreatedAt:        e.ConfirmedAt,
	}
	if t, err := time.Parse(time.RFC3339, e.ApprovedAt); err == nil {
		p.ApprovedAt = &t
	}
	return p
}
