package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/discount"
	"github.com/fjod/go_storefront/internal/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCarts implements CartStore in memory.
type fakeCarts struct {
	mu    sync.Mutex
	carts map[string]*cart.Cart
}

func newFakeCarts() *fakeCarts {
	return &fakeCarts{carts: make(map[string]*cart.Cart)}
}

func (f *fakeCarts) seed(sessionID string, coupon string, lines ...cart.Line) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.carts[sessionID] = &cart.Cart{
		SessionID:  sessionID,
		Lines:      lines,
		CouponCode: coupon,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
}

func (f *fakeCarts) GetCart(_ context.Context, sessionID string) (*cart.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[sessionID]
	if !ok {
		return &cart.Cart{SessionID: sessionID}, nil
	}
	cp := *c
	cp.Lines = append([]cart.Line(nil), c.Lines...)
	return &cp, nil
}

func (f *fakeCarts) Clear(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.carts, sessionID)
	return nil
}

func (f *fakeCarts) SetCouponCode(_ context.Context, sessionID string, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[sessionID]
	if !ok {
		return cart.ErrCartNotFound
	}
	c.CouponCode = code
	return nil
}

func (f *fakeCarts) ClearCouponCode(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.carts[sessionID]; ok {
		c.CouponCode = ""
	}
	return nil
}

func (f *fakeCarts) has(sessionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.carts[sessionID]
	return ok
}

func (f *fakeCarts) coupon(sessionID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.carts[sessionID]; ok {
		return c.CouponCode
	}
	return ""
}

// fakeOrders captures created orders; optional error script per call.
type fakeOrders struct {
	mu      sync.Mutex
	created []*order.Order
	errs    []error
	calls   int
}

func (f *fakeOrders) CreateOrder(_ context.Context, o *order.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return err
		}
	}
	cp := *o
	f.created = append(f.created, &cp)
	return nil
}

func (f *fakeOrders) last() *order.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.created) == 0 {
		return nil
	}
	return f.created[len(f.created)-1]
}

func setup(t *testing.T) (*Service, *fakeCarts, *catalog.MemoryStore, *fakeOrders) {
	carts := newFakeCarts()
	store := catalog.NewMemoryStore()
	orders := &fakeOrders{}
	return NewService(carts, store, orders), carts, store, orders
}

func seedProduct(t *testing.T, store *catalog.MemoryStore, name string, price float64, stock int) *catalog.Product {
	p := &catalog.Product{Name: name, Price: price, Category: catalog.CategoryElectronics, Stock: stock}
	require.NoError(t, store.CreateProduct(context.Background(), p))
	return p
}

func customer() CustomerInfo {
	return CustomerInfo{
		Email: "jane@example.com",
		Name:  "Jane Doe",
	}
}

func cartLine(p *catalog.Product, qty int) cart.Line {
	return cart.Line{ProductID: p.ID, Name: p.Name, Price: p.Price, Quantity: qty, MaxStock: p.Stock}
}

func TestPlaceOrder_Success(t *testing.T) {
	svc, carts, store, orders := setup(t)
	ctx := context.Background()

	p := seedProduct(t, store, "Widget", 20.00, 5)
	carts.seed("sess-1", "", cartLine(p, 2))

	conf, err := svc.PlaceOrder(ctx, "sess-1", customer())
	require.NoError(t, err)
	require.NotNil(t, conf)
	assert.NotEmpty(t, conf.OrderID)

	// Stock committed
	got, err := store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)

	// Order snapshot
	o := orders.last()
	require.NotNil(t, o)
	assert.Equal(t, 40.00, o.Subtotal)
	assert.Equal(t, cart.FlatShippingFee, o.Shipping)
	assert.Equal(t, 3.20, o.Tax)
	assert.Equal(t, 0.00, o.Discount)
	assert.Equal(t, 49.19, o.Total)
	assert.Equal(t, order.StatusPlaced, o.Status)
	assert.Equal(t, "Credit Card", o.PaymentMethod)
	assert.Equal(t, conf.Total, o.Total)

	// Session cleared
	assert.False(t, carts.has("sess-1"))
}

func TestPlaceOrder_InsufficientStock_NoSideEffects(t *testing.T) {
	svc, carts, store, orders := setup(t)
	ctx := context.Background()

	p := seedProduct(t, store, "Widget", 20.00, 2)
	carts.seed("sess-1", "", cartLine(p, 3))

	_, err := svc.PlaceOrder(ctx, "sess-1", customer())
	assert.ErrorIs(t, err, catalog.ErrInsufficientStock)

	got, _ := store.GetProduct(ctx, p.ID)
	assert.Equal(t, 2, got.Stock, "stock untouched on failure")
	assert.Nil(t, orders.last())
	assert.True(t, carts.has("sess-1"), "cart kept so the shopper can adjust it")
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	svc, _, _, _ := setup(t)

	_, err := svc.PlaceOrder(context.Background(), "sess-1", customer())
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestPlaceOrder_InvalidEmail(t *testing.T) {
	svc, carts, store, _ := setup(t)

	p := seedProduct(t, store, "Widget", 20.00, 5)
	carts.seed("sess-1", "", cartLine(p, 1))

	for _, email := range []string{"", "not-an-email", "a@b", "spaces in@mail.com"} {
		info := customer()
		info.Email = email
		_, err := svc.PlaceOrder(context.Background(), "sess-1", info)
		assert.ErrorIs(t, err, ErrInvalidEmail, "email %q", email)
	}

	got, _ := store.GetProduct(context.Background(), p.ID)
	assert.Equal(t, 5, got.Stock)
}

func TestPlaceOrder_ProductGone(t *testing.T) {
	svc, carts, store, _ := setup(t)
	ctx := context.Background()

	p := seedProduct(t, store, "Widget", 20.00, 5)
	carts.seed("sess-1", "", cartLine(p, 1))
	require.NoError(t, store.DeleteProduct(ctx, p.ID))

	_, err := svc.PlaceOrder(ctx, "sess-1", customer())
	assert.ErrorIs(t, err, ErrProductGone)
}

func TestPlaceOrder_FreeShippingOverThreshold(t *testing.T) {
	svc, carts, store, orders := setup(t)

	p := seedProduct(t, store, "Widget", 30.00, 5)
	carts.seed("sess-1", "", cartLine(p, 2))

	_, err := svc.PlaceOrder(context.Background(), "sess-1", customer())
	require.NoError(t, err)

	o := orders.last()
	assert.Equal(t, 60.00, o.Subtotal)
	assert.Equal(t, 0.00, o.Shipping)
	assert.Equal(t, 64.80, o.Total)
}

func TestPlaceOrder_WithCoupon(t *testing.T) {
	svc, carts, store, orders := setup(t)

	p := seedProduct(t, store, "Widget", 50.00, 5)
	carts.seed("sess-1", "SAVE10", cartLine(p, 2))

	conf, err := svc.PlaceOrder(context.Background(), "sess-1", customer())
	require.NoError(t, err)

	o := orders.last()
	assert.Equal(t, 100.00, o.Subtotal)
	assert.Equal(t, 0.00, o.Shipping)
	assert.Equal(t, 8.00, o.Tax)
	assert.Equal(t, 10.00, o.Discount)
	assert.Equal(t, "SAVE10", o.DiscountCode)
	assert.Equal(t, 98.00, o.Total)
	assert.Equal(t, 98.00, conf.Total)
}

func TestPlaceOrder_ExpiredCouponDroppedSilently(t *testing.T) {
	svc, carts, store, orders := setup(t)

	p := seedProduct(t, store, "Widget", 50.00, 5)
	carts.seed("sess-1", "HOLIDAY2023", cartLine(p, 2))

	_, err := svc.PlaceOrder(context.Background(), "sess-1", customer())
	require.NoError(t, err, "expired coupon must not block the sale")

	o := orders.last()
	assert.Equal(t, 0.00, o.Discount)
	assert.Empty(t, o.DiscountCode)
}

func TestPlaceOrder_RetriesOnDuplicateID(t *testing.T) {
	svc, carts, store, orders := setup(t)
	orders.errs = []error{order.ErrDuplicateOrderID}

	p := seedProduct(t, store, "Widget", 20.00, 5)
	carts.seed("sess-1", "", cartLine(p, 1))

	conf, err := svc.PlaceOrder(context.Background(), "sess-1", customer())
	require.NoError(t, err)
	assert.NotEmpty(t, conf.OrderID)
	assert.Equal(t, 2, orders.calls)
}

func TestPlaceOrder_PersistFailureRestoresStock(t *testing.T) {
	svc, carts, store, orders := setup(t)
	dbErr := errors.New("orders db down")
	orders.errs = []error{dbErr}

	p := seedProduct(t, store, "Widget", 20.00, 5)
	carts.seed("sess-1", "", cartLine(p, 2))

	_, err := svc.PlaceOrder(context.Background(), "sess-1", customer())
	assert.ErrorIs(t, err, dbErr)

	got, _ := store.GetProduct(context.Background(), p.ID)
	assert.Equal(t, 5, got.Stock, "compensating increment after failed insert")
}

func TestPlaceOrder_ConcurrentLastUnit(t *testing.T) {
	svc, carts, store, orders := setup(t)
	ctx := context.Background()

	p := seedProduct(t, store, "Widget", 20.00, 1)
	carts.seed("sess-a", "", cartLine(p, 1))
	carts.seed("sess-b", "", cartLine(p, 1))

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, sess := range []string{"sess-a", "sess-b"} {
		wg.Add(1)
		go func(sessionID string) {
			defer wg.Done()
			_, err := svc.PlaceOrder(ctx, sessionID, customer())
			results <- err
		}(sess)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, catalog.ErrInsufficientStock)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one checkout wins the last unit")

	got, _ := store.GetProduct(ctx, p.ID)
	assert.Equal(t, 0, got.Stock)
	assert.Len(t, orders.created, 1)
}

func TestApplyCoupon_Valid(t *testing.T) {
	svc, carts, store, _ := setup(t)

	p := seedProduct(t, store, "Widget", 50.00, 5)
	carts.seed("sess-1", "", cartLine(p, 2))

	state, err := svc.ApplyCoupon(context.Background(), "sess-1", "save10")
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", state.Code)
	assert.Equal(t, 10.00, state.Value)
	assert.Equal(t, "SAVE10", carts.coupon("sess-1"))
}

func TestApplyCoupon_InvalidClearsStored(t *testing.T) {
	svc, carts, store, _ := setup(t)

	p := seedProduct(t, store, "Widget", 50.00, 5)
	carts.seed("sess-1", "SAVE10", cartLine(p, 2))

	_, err := svc.ApplyCoupon(context.Background(), "sess-1", "FOO123")
	assert.ErrorIs(t, err, discount.ErrInvalidCoupon)
	assert.Empty(t, carts.coupon("sess-1"))
}

func TestApplyCoupon_EmptyCart(t *testing.T) {
	svc, _, _, _ := setup(t)

	_, err := svc.ApplyCoupon(context.Background(), "sess-1", "SAVE10")
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestPreview_TotalsWithStoredCoupon(t *testing.T) {
	svc, carts, store, _ := setup(t)

	p := seedProduct(t, store, "Widget", 50.00, 5)
	carts.seed("sess-1", "WELCOME15", cartLine(p, 2))

	q, err := svc.Preview(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 100.00, q.Subtotal)
	assert.Equal(t, 0.00, q.Shipping)
	assert.Equal(t, 8.00, q.Tax)
	assert.Equal(t, 15.00, q.Discount)
	assert.Equal(t, 93.00, q.Total)
	require.NotNil(t, q.Coupon)
	assert.Equal(t, "WELCOME15", q.Coupon.Code)
}

func TestPreview_ExpiredCouponClearedWithError(t *testing.T) {
	svc, carts, store, _ := setup(t)

	p := seedProduct(t, store, "Widget", 50.00, 5)
	carts.seed("sess-1", "HOLIDAY2023", cartLine(p, 1))

	_, err := svc.Preview(context.Background(), "sess-1")
	assert.ErrorIs(t, err, discount.ErrCouponExpired)
	assert.Empty(t, carts.coupon("sess-1"))
}

func TestValidateCustomer_PaymentAndNotes(t *testing.T) {
	svc, carts, store, orders := setup(t)

	p := seedProduct(t, store, "Widget", 20.00, 10)
	carts.seed("sess-1", "", cartLine(p, 1))

	info := customer()
	info.PaymentMethod = "Barter"
	_, err := svc.PlaceOrder(context.Background(), "sess-1", info)
	assert.ErrorIs(t, err, ErrUnknownPayment)

	info = customer()
	info.Notes = string(make([]byte, 501))
	_, err = svc.PlaceOrder(context.Background(), "sess-1", info)
	assert.ErrorIs(t, err, ErrInvalidNotes)

	info = customer()
	info.PaymentMethod = "PayPal"
	info.Email = "Jane@Example.COM"
	_, err = svc.PlaceOrder(context.Background(), "sess-1", info)
	require.NoError(t, err)

	o := orders.last()
	assert.Equal(t, "PayPal", o.PaymentMethod)
	assert.Equal(t, "jane@example.com", o.CustomerEmail)
}
