package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/TFFe0123/woody-nest/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	// AllFilter is the storefront's "no filter" chip label.
	AllFilter = "전체"

	defaultListLimit = 50
	maxListLimit     = 200
)

var ErrFurnitureNotFound = errors.New("furniture not found")

type Filter struct {
	Style    string
	Material string
	Limit    int
}

type RepoInterface interface {
	GetFurniture(ctx context.Context, id int64) (*domain.Furniture, error)
	ListFurniture(ctx context.Context, filter Filter) ([]*domain.Furniture, error)
	ListFurnitureByUserID(ctx context.Context, userID string) ([]*domain.Furniture, error)
	CreateFurniture(ctx context.Context, f *domain.Furniture) error
	RunMigrations(migrationsPath string) error
	Close() error
}

type Repository struct {
	db     *sql.DB
	driver string
}

// NewRepository opens the catalog store. driver is "postgres" (the hosted
// database) or "sqlite" (a local file for development).
func NewRepository(driver, dsn string) (*Repository, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported catalog driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	return &Repository{db: db, driver: driver}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	var (
		driver database.Driver
		err    error
	)
	switch r.driver {
	case DriverSQLite:
		driver, err = sqlite.WithInstance(r.db, &sqlite.Config{})
	default:
		driver, err = postgres.WithInstance(r.db, &postgres.Config{
			MigrationsTable: "catalog_schema_migrations",
		})
	}
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		r.driver,
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

const furnitureColumns = `id, user_id, title, price, location, image, material, dimensions, condition, style, description, created_at`

func (r *Repository) GetFurniture(ctx context.Context, id int64) (*domain.Furniture, error) {
	query := `SELECT ` + furnitureColumns + ` FROM furniture WHERE id = $1`

	f, err := scanFurniture(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFurnitureNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query furniture by id: %w", err)
	}
	return f, nil
}

func (r *Repository) ListFurniture(ctx context.Context, filter Filter) ([]*domain.Furniture, error) {
	var (
		where []string
		args  []any
	)
	if s := normalizeFilter(filter.Style); s != "" {
		args = append(args, s)
		where = append(where, fmt.Sprintf("style = $%d", len(args)))
	}
	if m := normalizeFilter(filter.Material); m != "" {
		args = append(args, "%"+m+"%")
		where = append(where, fmt.Sprintf("material LIKE $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	args = append(args, limit)

	query := `SELECT ` + furnitureColumns + ` FROM furniture`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args))

	return r.queryFurniture(ctx, query, args...)
}

// ListFurnitureByUserID returns the listings a seller created, newest first.
func (r *Repository) ListFurnitureByUserID(ctx context.Context, userID string) ([]*domain.Furniture, error) {
	query := `SELECT ` + furnitureColumns + ` FROM furniture WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	return r.queryFurniture(ctx, query, userID)
}

// CreateFurniture inserts a listing and fills in its id and created_at.
func (r *Repository) CreateFurniture(ctx context.Context, f *domain.Furniture) error {
	query := `INSERT INTO furniture (user_id, title, price, location, image, material, dimensions, condition, style, description)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	          RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		nullableString(f.UserID),
		f.Title,
		f.Price,
		f.Location,
		nullableString(f.Image),
		f.Material,
		f.Dimensions,
		f.Condition,
		nullableString(f.Style),
		nullableString(f.Description),
	).Scan(&f.ID)
	if err != nil {
		return fmt.Errorf("insert furniture: %w", err)
	}

	stored, err := r.GetFurniture(ctx, f.ID)
	if err != nil {
		return fmt.Errorf("reload furniture %d: %w", f.ID, err)
	}
	f.CreatedAt = stored.CreatedAt
	return nil
}

func (r *Repository) queryFurniture(ctx context.Context, query string, args ...any) ([]*domain.Furniture, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query furniture: %w", err)
	}
	defer rows.Close()

	var items []*domain.Furniture
	for rows.Next() {
		f, err := scanFurniture(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan furniture: %w", err)
		}
		items = append(items, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return items, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFurniture(row rowScanner) (*domain.Furniture, error) {
	var (
		f                  domain.Furniture
		userID, image      sql.NullString
		style, description sql.NullString
	)
	err := row.Scan(
		&f.ID,
		&userID,
		&f.Title,
		&f.Price,
		&f.Location,
		&image,
		&f.Material,
		&f.Dimensions,
		&f.Condition,
		&style,
		&description,
		&f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	f.UserID = userID.String
	f.Image = image.String
	f.Style = style.String
	f.Description = description.String
	return &f, nil
}

func nullableString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func normalizeFilter(v string) string {
	v = strings.TrimSpace(v)
	if v == AllFilter {
		return ""
	}
	return v
}
