package order

import (
	"context"
	"fmt"
	"log"
)

// StockAdjuster is the slice of the catalog the lifecycle needs: returning
// units to stock when an order is cancelled.
type StockAdjuster interface {
	IncrementStock(ctx context.Context, id int64, quantity int) error
}

type Service struct {
	repo  OrderRepository
	stock StockAdjuster
}

func NewService(repo OrderRepository, stock StockAdjuster) *Service {
	return &Service{repo: repo, stock: stock}
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	return s.repo.GetOrder(ctx, orderID)
}

func (s *Service) FindOrdersByEmail(ctx context.Context, email string) ([]*Order, error) {
	return s.repo.FindOrdersByEmail(ctx, email)
}

// Transition moves the order to the next status. Re-delivering a delivered
// order is a no-op that returns the stored order unchanged. Cancellation
// returns the order's units to stock best-effort; a product that has since
// been deleted is skipped.
func (s *Service) Transition(ctx context.Context, orderID string, next Status) (*Order, error) {
	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !o.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, o.Status, next)
	}

	if o.Status == StatusDelivered && next == StatusDelivered {
		return o, nil
	}

	updated, err := s.repo.UpdateOrderStatus(ctx, orderID, next)
	if err != nil {
		return nil, err
	}

	if next == StatusCancelled {
		s.restoreStock(ctx, updated)
	}

	return updated, nil
}

func (s *Service) Cancel(ctx context.Context, orderID string) (*Order, error) {
	return s.Transition(ctx, orderID, StatusCancelled)
}

func (s *Service) restoreStock(ctx context.Context, o *Order) {
	for _, line := range o.Lines {
		if err := s.stock.IncrementStock(ctx, line.ProductID, line.Quantity); err != nil {
			log.Printf("restore stock for order %s product %d failed: %v", o.OrderID, line.ProductID, err)
		}
	}
}
