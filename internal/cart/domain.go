package cart

import (
	"time"

	"github.com/fjod/go_storefront/internal/money"
)

// Shipping and tax policy for the cart page: a flat fee whenever the cart is
// non-empty. The checkout path applies its own free-shipping threshold.
const (
	FlatShippingFee = 5.99
	TaxRate         = 0.08
)

type Cart struct {
	ID         string    `bson:"_id,omitempty" json:"-"`
	SessionID  string    `bson:"session_id" json:"session_id"`
	Lines      []Line    `bson:"lines" json:"lines"`
	CouponCode string    `bson:"coupon_code,omitempty" json:"coupon_code,omitempty"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at" json:"updated_at"`
}

// Line references a catalog product. Name and Price are snapshots taken at
// add time for display; MaxStock is the product stock observed then. None of
// these are trusted at checkout, which always re-reads the catalog.
type Line struct {
	ProductID int64     `bson:"product_id" json:"product_id"`
	Name      string    `bson:"name" json:"name"`
	Price     float64   `bson:"price" json:"price"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	MaxStock  int       `bson:"max_stock" json:"max_stock"`
	AddedAt   time.Time `bson:"added_at" json:"added_at"`
}

type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Shipping float64 `json:"shipping"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

func (c *Cart) FindLine(productID int64) *Line {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return &c.Lines[i]
		}
	}
	return nil
}

func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

func (c *Cart) ItemCount() int {
	count := 0
	for _, line := range c.Lines {
		count += line.Quantity
	}
	return count
}

func (c *Cart) Subtotal() float64 {
	subtotal := 0.0
	for _, line := range c.Lines {
		subtotal += line.Price * float64(line.Quantity)
	}
	return money.Round2(subtotal)
}

// Totals computes the cart-page totals. Discounts are applied downstream by
// the checkout preview, not here.
func (c *Cart) Totals() Totals {
	subtotal := c.Subtotal()

	shipping := 0.0
	if subtotal > 0 {
		shipping = FlatShippingFee
	}
	tax := money.Round2(subtotal * TaxRate)

	return Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    money.Round2(subtotal + shipping + tax),
	}
}
