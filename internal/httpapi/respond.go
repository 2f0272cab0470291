package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/checkout"
	"github.com/fjod/go_storefront/internal/discount"
	"github.com/fjod/go_storefront/internal/order"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleDomainError maps sentinel errors from the domain packages onto HTTP
// status codes. Anything unrecognized is a 500 with no internals leaked.
func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, cart.ErrCartNotFound),
		errors.Is(err, cart.ErrLineNotFound),
		errors.Is(err, order.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())

	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrInvalidEmail),
		errors.Is(err, checkout.ErrInvalidNotes),
		errors.Is(err, checkout.ErrUnknownPayment),
		errors.Is(err, catalog.ErrInvalidCategory):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())

	case errors.Is(err, catalog.ErrInsufficientStock),
		errors.Is(err, cart.ErrOutOfStock),
		errors.Is(err, checkout.ErrProductGone),
		errors.Is(err, order.ErrDuplicateOrderID),
		errors.Is(err, order.ErrInvalidTransition):
		respondError(w, http.StatusConflict, "conflict", err.Error())

	case errors.Is(err, discount.ErrInvalidCoupon),
		errors.Is(err, discount.ErrCouponExpired):
		respondError(w, http.StatusUnprocessableEntity, "invalid_coupon", err.Error())

	default:
		log.Printf("unhandled domain error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
