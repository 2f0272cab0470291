package order

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrDuplicateOrderID  = errors.New("order with this id already exists")
	ErrInvalidTransition = errors.New("illegal order status transition")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// OutboxEvent is a pending integration event written in the same transaction
// as the order change it describes.
type OutboxEvent struct {
	ID          int
	AggregateID string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *Order) error
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	FindOrdersByEmail(ctx context.Context, email string) ([]*Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status Status) (*Order, error)
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int) error
	Close() error
}
