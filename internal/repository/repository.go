package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TFFe0123/woody-nest/internal/domain"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrDuplicateOrder   = errors.New("order for this reference already exists")
	ErrDuplicatePayment = errors.New("payment for this reference already recorded")
	ErrPaymentNotFound  = errors.New("payment not found")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	SSLMode           string
	MigrationsDirPath string
}

func (c *Credentials) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.DBName,
		sslMode)
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByReference(ctx context.Context, orderReference string) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
}

type PaymentRepository interface {
	RecordPayment(ctx context.Context, payment *domain.Payment) error
	GetPaymentByReference(ctx context.Context, orderReference string) (*domain.Payment, error)
	ListUnreconciledPayments(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Payment, error)
}

type Store interface {
	OrderRepository
	PaymentRepository
	RunMigrations(*Credentials) error
	Close() error
}
