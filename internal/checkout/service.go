package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/discount"
	"github.com/fjod/go_storefront/internal/money"
	"github.com/fjod/go_storefront/internal/order"
)

const (
	// FreeShippingThreshold waives the flat fee once the subtotal exceeds it.
	FreeShippingThreshold = 50.0

	maxNotesLength = 500
	maxIDRetries   = 3
)

var emailRe = regexp.MustCompile(`^\S+@\S+\.\S+$`)

var paymentMethods = map[string]bool{
	"Credit Card":      true,
	"PayPal":           true,
	"Cash on Delivery": true,
	"Bank Transfer":    true,
}

// CartStore is the slice of the cart service checkout needs.
type CartStore interface {
	GetCart(ctx context.Context, sessionID string) (*cart.Cart, error)
	Clear(ctx context.Context, sessionID string) error
	SetCouponCode(ctx context.Context, sessionID string, code string) error
	ClearCouponCode(ctx context.Context, sessionID string) error
}

// Inventory is the slice of the catalog checkout needs: the atomic commit
// and its compensating increment.
type Inventory interface {
	DeductStock(ctx context.Context, deductions []catalog.Deduction) ([]*catalog.Product, error)
	IncrementStock(ctx context.Context, id int64, quantity int) error
}

type OrderCreator interface {
	CreateOrder(ctx context.Context, o *order.Order) error
}

type CustomerInfo struct {
	Email           string                `json:"email"`
	Name            string                `json:"name"`
	PaymentMethod   string                `json:"payment_method"`
	ShippingAddress order.ShippingAddress `json:"shipping_address"`
	Notes           string                `json:"notes"`
}

// Quote is the totals breakdown shown at preview and frozen into the order
// at commit.
type Quote struct {
	Subtotal float64         `json:"subtotal"`
	Shipping float64         `json:"shipping"`
	Tax      float64         `json:"tax"`
	Discount float64         `json:"discount"`
	Total    float64         `json:"total"`
	Coupon   *discount.State `json:"coupon,omitempty"`
}

type Confirmation struct {
	OrderID string  `json:"order_id"`
	Total   float64 `json:"total"`
}

type Service struct {
	carts     CartStore
	inventory Inventory
	orders    OrderCreator
}

func NewService(carts CartStore, inventory Inventory, orders OrderCreator) *Service {
	return &Service{
		carts:     carts,
		inventory: inventory,
		orders:    orders,
	}
}

// ApplyCoupon validates the code against the session's current subtotal and
// attaches it to the cart. Invalid or expired codes clear any stored coupon
// and surface the validation error.
func (s *Service) ApplyCoupon(ctx context.Context, sessionID, code string) (*discount.State, error) {
	c, err := s.carts.GetCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}

	state, err := discount.Evaluate(code, c.Subtotal())
	if err != nil || state == nil {
		if clearErr := s.carts.ClearCouponCode(ctx, sessionID); clearErr != nil {
			log.Printf("clear coupon for session %s failed: %v", sessionID, clearErr)
		}
		return nil, err
	}

	if err := s.carts.SetCouponCode(ctx, sessionID, state.Code); err != nil {
		return nil, err
	}
	return state, nil
}

// Preview computes the totals the cart would check out at right now, without
// touching stock. An expired or invalid stored coupon is cleared and the
// error surfaced so the shopper sees why the discount vanished.
func (s *Service) Preview(ctx context.Context, sessionID string) (*Quote, error) {
	c, err := s.carts.GetCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}

	subtotal := c.Subtotal()
	state, err := discount.Evaluate(c.CouponCode, subtotal)
	if err != nil {
		if clearErr := s.carts.ClearCouponCode(ctx, sessionID); clearErr != nil {
			log.Printf("clear coupon for session %s failed: %v", sessionID, clearErr)
		}
		return nil, err
	}

	q := buildQuote(subtotal, state)
	return &q, nil
}

// PlaceOrder commits the checkout: validates the customer, atomically
// deducts stock for every cart line, persists the order and clears the
// session. Stock is the only external side effect before the order insert,
// and it is compensated if the insert fails.
func (s *Service) PlaceOrder(ctx context.Context, sessionID string, info CustomerInfo) (*Confirmation, error) {
	info, err := validateCustomer(info)
	if err != nil {
		return nil, err
	}

	c, err := s.carts.GetCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}

	// Coupon problems at commit drop the discount instead of blocking the
	// sale. The cart-level subtotal is only used for validation here; the
	// real one is recomputed from commit-time prices below.
	state, stateErr := discount.Evaluate(c.CouponCode, c.Subtotal())
	if stateErr != nil {
		log.Printf("dropping coupon %q for session %s: %v", c.CouponCode, sessionID, stateErr)
		state = nil
	}

	deductions := make([]catalog.Deduction, len(c.Lines))
	for i, line := range c.Lines {
		deductions[i] = catalog.Deduction{ProductID: line.ProductID, Quantity: line.Quantity}
	}

	snapshots, err := s.inventory.DeductStock(ctx, deductions)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrProductGone, err)
		}
		return nil, err
	}

	lines := make([]order.Line, len(snapshots))
	subtotal := 0.0
	for i, p := range snapshots {
		qty := deductions[i].Quantity
		lineSubtotal := money.Round2(p.Price * float64(qty))
		lines[i] = order.Line{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  qty,
			Subtotal:  lineSubtotal,
		}
		subtotal += lineSubtotal
	}
	subtotal = money.Round2(subtotal)

	if state != nil {
		// Recompute against the committed subtotal, prices may have moved
		// since the coupon was applied.
		state, _ = discount.Evaluate(state.Code, subtotal)
	}
	q := buildQuote(subtotal, state)

	o := &order.Order{
		CustomerEmail:   info.Email,
		CustomerName:    info.Name,
		Lines:           lines,
		Subtotal:        q.Subtotal,
		Tax:             q.Tax,
		Shipping:        q.Shipping,
		Discount:        q.Discount,
		Total:           q.Total,
		PaymentMethod:   info.PaymentMethod,
		ShippingAddress: info.ShippingAddress,
		Notes:           info.Notes,
		Status:          order.StatusPlaced,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	if q.Coupon != nil {
		o.DiscountCode = q.Coupon.Code
	}

	if err := s.persistOrder(ctx, o); err != nil {
		s.compensateStock(ctx, deductions)
		return nil, err
	}

	if err := s.carts.Clear(ctx, sessionID); err != nil {
		log.Printf("clear cart for session %s after order %s failed: %v", sessionID, o.OrderID, err)
	}

	return &Confirmation{OrderID: o.OrderID, Total: o.Total}, nil
}

// persistOrder retries with a fresh id on collision; the id carries a random
// suffix so a retry almost always clears it.
func (s *Service) persistOrder(ctx context.Context, o *order.Order) error {
	var err error
	for attempt := 0; attempt < maxIDRetries; attempt++ {
		o.OrderID = order.NewOrderID()
		err = s.orders.CreateOrder(ctx, o)
		if err == nil {
			return nil
		}
		if !errors.Is(err, order.ErrDuplicateOrderID) {
			return err
		}
	}
	return err
}

func (s *Service) compensateStock(ctx context.Context, deductions []catalog.Deduction) {
	for _, d := range deductions {
		if err := s.inventory.IncrementStock(ctx, d.ProductID, d.Quantity); err != nil {
			log.Printf("compensating increment for product %d failed: %v", d.ProductID, err)
		}
	}
}

func validateCustomer(info CustomerInfo) (CustomerInfo, error) {
	info.Email = strings.ToLower(strings.TrimSpace(info.Email))
	if !emailRe.MatchString(info.Email) {
		return info, ErrInvalidEmail
	}

	if info.PaymentMethod == "" {
		info.PaymentMethod = "Credit Card"
	}
	if !paymentMethods[info.PaymentMethod] {
		return info, fmt.Errorf("%w: %q", ErrUnknownPayment, info.PaymentMethod)
	}

	if len(info.Notes) > maxNotesLength {
		return info, ErrInvalidNotes
	}

	return info, nil
}

func buildQuote(subtotal float64, state *discount.State) Quote {
	shipping := cart.FlatShippingFee
	if subtotal > FreeShippingThreshold {
		shipping = 0
	}
	tax := money.Round2(subtotal * cart.TaxRate)

	discountValue := 0.0
	if state != nil {
		discountValue = state.Value
	}

	total := money.Round2(subtotal + shipping + tax - discountValue)
	if total < 0 {
		total = 0
	}

	return Quote{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Discount: discountValue,
		Total:    total,
		Coupon:   state,
	}
}
