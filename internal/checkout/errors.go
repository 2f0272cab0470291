package checkout

import "errors"

var (
	ErrEmptyCart      = errors.New("cart is empty, nothing to checkout")
	ErrInvalidEmail   = errors.New("a valid email address is required")
	ErrProductGone    = errors.New("a cart item is no longer available")
	ErrInvalidNotes   = errors.New("order notes are limited to 500 characters")
	ErrUnknownPayment = errors.New("unsupported payment method")
)
