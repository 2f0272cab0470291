package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/go-chi/chi/v5"
)

type ProductHandler struct {
	catalog catalog.Repository
	timeout time.Duration
}

func NewProductHandler(repo catalog.Repository, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		catalog: repo,
		timeout: timeout,
	}
}

func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}

	products, err := h.catalog.ListProducts(ctx, filter)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	if products == nil {
		products = []*catalog.Product{}
	}

	respondJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "id must be a positive integer")
		return
	}

	product, err := h.catalog.GetProduct(ctx, id)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, product)
}

func parseFilter(w http.ResponseWriter, r *http.Request) (catalog.Filter, bool) {
	q := r.URL.Query()
	filter := catalog.Filter{
		Search: q.Get("q"),
		Sort:   catalog.SortOrder(q.Get("sort")),
	}

	if c := q.Get("category"); c != "" {
		cat := catalog.Category(c)
		if !cat.Valid() {
			respondError(w, http.StatusBadRequest, "invalid_category", "unknown category")
			return filter, false
		}
		filter.Category = cat
	}

	if v := q.Get("min_price"); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil || price < 0 {
			respondError(w, http.StatusBadRequest, "invalid_price", "min_price must be a non-negative number")
			return filter, false
		}
		filter.MinPrice = &price
	}

	if v := q.Get("max_price"); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil || price < 0 {
			respondError(w, http.StatusBadRequest, "invalid_price", "max_price must be a non-negative number")
			return filter, false
		}
		filter.MaxPrice = &price
	}

	if v := q.Get("featured"); v != "" {
		featured, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_featured", "featured must be true or false")
			return filter, false
		}
		filter.Featured = &featured
	}

	return filter, true
}
