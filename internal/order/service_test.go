package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	orders          map[string]*Order
	updateCallCount int
	updateErr       error
}

func newMockRepository(orders ...*Order) *mockRepository {
	m := &mockRepository{orders: make(map[string]*Order)}
	for _, o := range orders {
		m.orders[o.OrderID] = o
	}
	return m
}

func (m *mockRepository) CreateOrder(_ context.Context, o *Order) error {
	if _, ok := m.orders[o.OrderID]; ok {
		return ErrDuplicateOrderID
	}
	m.orders[o.OrderID] = o
	return nil
}

func (m *mockRepository) GetOrder(_ context.Context, orderID string) (*Order, error) {
	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (m *mockRepository) FindOrdersByEmail(_ context.Context, email string) ([]*Order, error) {
	var out []*Order
	for _, o := range m.orders {
		if o.CustomerEmail == email {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockRepository) UpdateOrderStatus(_ context.Context, orderID string, status Status) (*Order, error) {
	m.updateCallCount++
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now()
	if status == StatusDelivered && o.DeliveredAt == nil {
		now := time.Now()
		o.DeliveredAt = &now
	}
	return o, nil
}

func (m *mockRepository) GetUnprocessedEvents(context.Context, int) ([]*OutboxEvent, error) {
	return nil, nil
}

func (m *mockRepository) MarkEventAsProcessed(context.Context, int) error { return nil }

func (m *mockRepository) Close() error { return nil }

type mockStockAdjuster struct {
	increments map[int64]int
	err        error
}

func newMockStockAdjuster() *mockStockAdjuster {
	return &mockStockAdjuster{increments: make(map[int64]int)}
}

func (m *mockStockAdjuster) IncrementStock(_ context.Context, id int64, quantity int) error {
	if m.err != nil {
		return m.err
	}
	m.increments[id] += quantity
	return nil
}

func placedOrder(id string) *Order {
	return &Order{
		OrderID:       id,
		CustomerEmail: "jane@example.com",
		Lines: []Line{
			{ProductID: 1, Name: "Laptop", Price: 999.99, Quantity: 2, Subtotal: 1999.98},
			{ProductID: 2, Name: "Mouse", Price: 29.99, Quantity: 1, Subtotal: 29.99},
		},
		Subtotal:  2029.97,
		Total:     2192.37,
		Status:    StatusPlaced,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func TestTransition_PlacedToProcessing(t *testing.T) {
	repo := newMockRepository(placedOrder("ORD-1"))
	svc := NewService(repo, newMockStockAdjuster())

	updated, err := svc.Transition(context.Background(), "ORD-1", StatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, updated.Status)
}

func TestTransition_Illegal(t *testing.T) {
	repo := newMockRepository(placedOrder("ORD-1"))
	svc := NewService(repo, newMockStockAdjuster())

	_, err := svc.Transition(context.Background(), "ORD-1", StatusDelivered)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 0, repo.updateCallCount)
}

func TestTransition_OrderNotFound(t *testing.T) {
	svc := NewService(newMockRepository(), newMockStockAdjuster())

	_, err := svc.Transition(context.Background(), "ORD-missing", StatusProcessing)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestTransition_DeliveredToDelivered_NoOp(t *testing.T) {
	o := placedOrder("ORD-1")
	o.Status = StatusDelivered
	deliveredAt := time.Now().Add(-time.Hour)
	o.DeliveredAt = &deliveredAt

	repo := newMockRepository(o)
	svc := NewService(repo, newMockStockAdjuster())

	updated, err := svc.Transition(context.Background(), "ORD-1", StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, updated.Status)
	assert.Equal(t, deliveredAt, *updated.DeliveredAt, "DeliveredAt is stamped once")
	assert.Equal(t, 0, repo.updateCallCount, "repeated delivery does not touch the store")
}

func TestCancel_RestoresStock(t *testing.T) {
	repo := newMockRepository(placedOrder("ORD-1"))
	stock := newMockStockAdjuster()
	svc := NewService(repo, stock)

	updated, err := svc.Cancel(context.Background(), "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, updated.Status)
	assert.Equal(t, 2, stock.increments[1])
	assert.Equal(t, 1, stock.increments[2])
}

func TestCancel_StockRestoreFailureIsNonFatal(t *testing.T) {
	repo := newMockRepository(placedOrder("ORD-1"))
	stock := newMockStockAdjuster()
	stock.err = errors.New("product gone")
	svc := NewService(repo, stock)

	// Cancellation still succeeds; restore failures are only logged
	updated, err := svc.Cancel(context.Background(), "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, updated.Status)
}

func TestCancel_ProcessingOrderRejected(t *testing.T) {
	o := placedOrder("ORD-1")
	o.Status = StatusProcessing
	repo := newMockRepository(o)
	stock := newMockStockAdjuster()
	svc := NewService(repo, stock)

	_, err := svc.Cancel(context.Background(), "ORD-1")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Empty(t, stock.increments)
}
