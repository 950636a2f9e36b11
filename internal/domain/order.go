package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

// OrderStatusCompleted is the only status an order is ever written with.
const OrderStatusCompleted OrderStatus = "completed"

// DefaultProductName is shown when neither the catalog nor the processor
// can name the purchased item.
const DefaultProductName = "상품"

// Order is one row of the orders table. It is written once by a successful
// confirmation and never updated by this service.
type Order struct {
	ID               uuid.UUID
	UserID           string
	OrderReference   string
	ProductName      string
	Amount           int64
	Status           OrderStatus
	PaymentReference string
	ItemID           *int64
	CreatedAt        time.Time
}
