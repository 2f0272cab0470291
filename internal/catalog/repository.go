package catalog

import (
	"context"
	"errors"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidCategory   = errors.New("invalid product category")
)

// Repository defines the interface for catalog data operations.
// Consumers define this interface, not the SQLite implementation.
type Repository interface {
	GetProduct(ctx context.Context, id int64) (*Product, error)
	ListProducts(ctx context.Context, filter Filter) ([]*Product, error)
	CreateProduct(ctx context.Context, p *Product) error
	UpdateProduct(ctx context.Context, p *Product) error
	DeleteProduct(ctx context.Context, id int64) error

	// ConditionalDecrementStock subtracts qty from the product's stock only
	// if at least qty units are available, otherwise ErrInsufficientStock.
	ConditionalDecrementStock(ctx context.Context, id int64, qty int) error
	IncrementStock(ctx context.Context, id int64, qty int) error

	// DeductStock validates every line against live stock and then decrements
	// all of them in a single transaction. Any missing product or short stock
	// aborts the whole deduction with no stock changed. Returns the products
	// as they were at commit time, in line order.
	DeductStock(ctx context.Context, lines []Deduction) ([]*Product, error)
}
