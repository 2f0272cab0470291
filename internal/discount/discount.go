// Package discount maps coupon codes to discount policies. Evaluation is
// stateless: percentage values are always derived from the subtotal passed
// in, never cached from an earlier cart state.
package discount

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/go_storefront/internal/money"
)

type Kind string

const (
	KindPercentage   Kind = "percentage"
	KindFreeShipping Kind = "free-shipping"
)

var (
	ErrInvalidCoupon = errors.New("invalid coupon code")
	ErrCouponExpired = errors.New("coupon has expired")
)

// FreeShippingCredit is the fixed value credited by the FREESHIP coupon.
const FreeShippingCredit = 5.99

type policy struct {
	kind       Kind
	percentage float64
}

var coupons = map[string]policy{
	"SAVE10":    {kind: KindPercentage, percentage: 0.10},
	"WELCOME15": {kind: KindPercentage, percentage: 0.15},
	"HOLIDAY25": {kind: KindPercentage, percentage: 0.25},
	"FREESHIP":  {kind: KindFreeShipping},
}

// expiredCoupons is a denylist checked before the coupon table: a code that
// was once valid invalidates an already-applied discount.
var expiredCoupons = map[string]bool{
	"HOLIDAY2023": true,
}

// State is the discount derived for one evaluation. Attached to the session
// for display only; the authoritative value is recomputed at checkout.
type State struct {
	Code    string  `json:"code"`
	Kind    Kind    `json:"kind"`
	Value   float64 `json:"value"`
	Message string  `json:"message"`
}

// Normalize uppercases and trims a raw coupon string.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Evaluate resolves a coupon code against the given subtotal. An empty code
// clears the discount silently (nil, nil). Unknown codes fail with
// ErrInvalidCoupon, denylisted codes with ErrCouponExpired; in both cases
// any previously applied discount must be dropped by the caller.
func Evaluate(code string, subtotal float64) (*State, error) {
	normalized := Normalize(code)
	if normalized == "" {
		return nil, nil
	}

	if expiredCoupons[normalized] {
		return nil, fmt.Errorf("%w: %s", ErrCouponExpired, normalized)
	}

	p, ok := coupons[normalized]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCoupon, normalized)
	}

	state := &State{
		Code:    normalized,
		Kind:    p.kind,
		Message: fmt.Sprintf("Coupon %q applied successfully!", normalized),
	}

	switch p.kind {
	case KindPercentage:
		state.Value = money.Round2(subtotal * p.percentage)
	case KindFreeShipping:
		state.Value = FreeShippingCredit
	}

	return state, nil
}
