package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/TFFe0123/woody-nest/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	db, err := sql.Open("postgres", cred.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}

	query := `INSERT INTO orders (id, user_id, order_id, product_name, amount, status, payment_key, furniture_id, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	          RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		order.ID,
		order.UserID,
		order.OrderReference,
		order.ProductName,
		order.Amount,
		order.Status,
		order.PaymentReference,
		nullableInt64(order.ItemID),
	).Scan(&order.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

const orderColumns = `id, user_id, order_id, product_name, amount, status, payment_key, furniture_id, created_at`

func (r *Repository) GetOrderByReference(ctx context.Context, orderReference string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, orderReference))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by reference: %w", err)
	}
	return order, nil
}

func (r *Repository) ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return orders, nil
}

func (r *Repository) RecordPayment(ctx context.Context, payment *domain.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	if payment.Status == "" {
		payment.Status = domain.OrderStatusCompleted
	}

	query := `INSERT INTO payments (id, user_id, order_id, payment_key, product_name, amount, payment_method, status, furniture_id, approved_at, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	          RETURNING created_at`

	var approvedAt sql.NullTime
	if payment.ApprovedAt != nil {
		approvedAt = sql.NullTime{Time: *payment.ApprovedAt, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		payment.ID,
		payment.UserID,
		payment.OrderReference,
		payment.PaymentReference,
		payment.ProductName,
		payment.Amount,
		payment.Method,
		payment.Status,
		nullableInt64(payment.ItemID),
		approvedAt,
	).Scan(&payment.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicatePayment
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

const paymentColumns = `p.id, p.user_id, p.order_id, p.payment_key, p.product_name, p.amount,
	p.payment_method, p.status, p.furniture_id, p.approved_at, p.created_at`

func (r *Repository) GetPaymentByReference(ctx context.Context, orderReference string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments p WHERE p.order_id = $1`

	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, orderReference))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query payment by reference: %w", err)
	}
	return payment, nil
}

// ListUnreconciledPayments returns ledger rows created before olderThan that
// have no order row, oldest first.
func (r *Repository) ListUnreconciledPayments(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + `
	          FROM payments p
	          LEFT JOIN orders o ON o.order_id = p.order_id
	          WHERE o.id IS NULL AND p.created_at < $1
	          ORDER BY p.created_at
	          LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("query unreconciled payments: %w", err)
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return payments, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order  domain.Order
		itemID sql.NullInt64
	)
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.OrderReference,
		&order.ProductName,
		&order.Amount,
		&order.Status,
		&order.PaymentReference,
		&itemID,
		&order.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if itemID.Valid {
		id := itemID.Int64
		order.ItemID = &id
	}
	return &order, nil
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var (
		p          domain.Payment
		itemID     sql.NullInt64
		approvedAt sql.NullTime
	)
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.OrderReference,
		&p.PaymentReference,
		&p.ProductName,
		&p.Amount,
		&p.Method,
		&p.Status,
		&itemID,
		&approvedAt,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if itemID.Valid {
		id := itemID.Int64
		p.ItemID = &id
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		p.ApprovedAt = &t
	}
	return &p, nil
}

func nullableInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
