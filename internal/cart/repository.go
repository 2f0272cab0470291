package cart

import (
	"context"
	"errors"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrLineNotFound = errors.New("item not found in cart")
)

// CartRepository defines the interface for cart session persistence.
// Consumers define this interface, not the MongoDB implementation.
type CartRepository interface {
	GetCart(ctx context.Context, sessionID string) (*Cart, error)
	UpsertLine(ctx context.Context, sessionID string, line Line) error
	UpdateLineQuantity(ctx context.Context, sessionID string, productID int64, quantity int) error
	RemoveLine(ctx context.Context, sessionID string, productID int64) error
	DeleteCart(ctx context.Context, sessionID string) error
	SetCouponCode(ctx context.Context, sessionID string, code string) error
	ClearCouponCode(ctx context.Context, sessionID string) error
}
