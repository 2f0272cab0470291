package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// modernc sqlite serializes writers; a single connection avoids
	// SQLITE_BUSY on concurrent checkout transactions.
	db.SetMaxOpenConns(1)

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
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

const productColumns = `id, name, description, price, category, image_url, stock, featured, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*Product, error) {
	p := &Product{}
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Category,
		&p.ImageURL,
		&p.Stock,
		&p.Featured,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *SQLiteRepository) GetProduct(ctx context.Context, id int64) (*Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = ?`, productColumns)

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	return p, nil
}

func (r *SQLiteRepository) ListProducts(ctx context.Context, filter Filter) ([]*Product, error) {
	var conditions []string
	var args []any

	if filter.Category != "" {
		if !filter.Category.Valid() {
			return nil, ErrInvalidCategory
		}
		conditions = append(conditions, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Search != "" {
		conditions = append(conditions, "(name LIKE ? OR description LIKE ?)")
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}
	if filter.MinPrice != nil {
		conditions = append(conditions, "price >= ?")
		args = append(args, *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		conditions = append(conditions, "price <= ?")
		args = append(args, *filter.MaxPrice)
	}
	if filter.Featured != nil {
		conditions = append(conditions, "featured = ?")
		args = append(args, *filter.Featured)
	}

	query := fmt.Sprintf(`SELECT %s FROM products`, productColumns)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	switch filter.Sort {
	case SortByName:
		query += " ORDER BY name"
	case SortByPriceAsc:
		query += " ORDER BY price"
	case SortByPriceDesc:
		query += " ORDER BY price DESC"
	case SortByNewest:
		query += " ORDER BY created_at DESC"
	default:
		query += " ORDER BY id"
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

func (r *SQLiteRepository) CreateProduct(ctx context.Context, p *Product) error {
	if !p.Category.Valid() {
		return ErrInvalidCategory
	}

	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	query := `INSERT INTO products (name, description, price, category, image_url, stock, featured, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		p.Name, p.Description, p.Price, p.Category, p.ImageURL, p.Stock, p.Featured, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted id: %w", err)
	}
	p.ID = id
	return nil
}

func (r *SQLiteRepository) UpdateProduct(ctx context.Context, p *Product) error {
	if !p.Category.Valid() {
		return ErrInvalidCategory
	}

	p.UpdatedAt = time.Now()

	query := `UPDATE products
	          SET name = ?, description = ?, price = ?, category = ?, image_url = ?, stock = ?, featured = ?, updated_at = ?
	          WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		p.Name, p.Description, p.Price, p.Category, p.ImageURL, p.Stock, p.Featured, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteProduct(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *SQLiteRepository) ConditionalDecrementStock(ctx context.Context, id int64, qty int) error {
	return conditionalDecrement(ctx, r.db, id, qty)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func conditionalDecrement(ctx context.Context, db execer, id int64, qty int) error {
	query := `UPDATE products SET stock = stock - ?, updated_at = ? WHERE id = ? AND stock >= ?`

	result, err := db.ExecContext(ctx, query, qty, time.Now(), id, qty)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (r *SQLiteRepository) IncrementStock(ctx context.Context, id int64, qty int) error {
	query := `UPDATE products SET stock = stock + ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, qty, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to increment stock: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeductStock(ctx context.Context, lines []Deduction) ([]*Product, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// First pass: validate every line before touching any stock.
	snapshots := make([]*Product, 0, len(lines))
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = ?`, productColumns)
	for _, line := range lines {
		p, err := scanProduct(tx.QueryRowContext(ctx, query, line.ProductID))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query product: %w", err)
		}
		if p.Stock < line.Quantity {
			return nil, ErrInsufficientStock
		}
		snapshots = append(snapshots, p)
	}

	// Second pass: decrement, each update still conditional on stock.
	for i, line := range lines {
		if err := conditionalDecrement(ctx, tx, line.ProductID, line.Quantity); err != nil {
			return nil, err
		}
		snapshots[i].Stock -= line.Quantity
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit stock deduction: %w", err)
	}

	return snapshots, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
