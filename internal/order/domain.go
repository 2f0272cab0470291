package order

import (
	"fmt"
	"math/rand"
	"time"
)

type Status string

const (
	StatusPlaced     Status = "Placed"
	StatusProcessing Status = "Processing"
	StatusDelivered  Status = "Delivered"
	StatusCancelled  Status = "Cancelled"
)

// CanTransitionTo reports whether the status change is legal.
// Delivered to Delivered is allowed so that repeated delivery
// confirmations stay idempotent.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPlaced:
		return next == StatusProcessing || next == StatusCancelled
	case StatusProcessing:
		return next == StatusDelivered
	case StatusDelivered:
		return next == StatusDelivered
	default:
		return false
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusPlaced, StatusProcessing, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

type Line struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
}

type ShippingAddress struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
	Country string `json:"country"`
}

// Order is an immutable snapshot taken at checkout commit. Line prices and
// totals never change after creation; only Status, UpdatedAt and DeliveredAt
// move.
type Order struct {
	OrderID         string          `json:"order_id"`
	CustomerEmail   string          `json:"customer_email"`
	CustomerName    string          `json:"customer_name"`
	Lines           []Line          `json:"lines"`
	Subtotal        float64         `json:"subtotal"`
	Tax             float64         `json:"tax"`
	Shipping        float64         `json:"shipping"`
	Discount        float64         `json:"discount"`
	DiscountCode    string          `json:"discount_code,omitempty"`
	Total           float64         `json:"total"`
	PaymentMethod   string          `json:"payment_method"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	Notes           string          `json:"notes,omitempty"`
	Status          Status          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
}

// NewOrderID builds a human-readable order id from the current timestamp and
// a random suffix. Uniqueness is enforced by the primary key; callers retry
// with a fresh id on collision.
func NewOrderID() string {
	return fmt.Sprintf("ORD-%d-%04d", time.Now().UnixMilli(), rand.Intn(10000))
}
