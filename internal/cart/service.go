package cart

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/fjod/go_storefront/internal/catalog"
	"golang.org/x/sync/singleflight"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrOutOfStock      = errors.New("product is out of stock")
)

// ProductGetter is the slice of the catalog the cart needs: live product
// reads for validating additions. The catalog's stock is always the source
// of truth; cart snapshots are display-only.
type ProductGetter interface {
	GetProduct(ctx context.Context, id int64) (*catalog.Product, error)
}

type Service struct {
	repo    CartRepository
	cache   CartCache
	catalog ProductGetter
	sfg     singleflight.Group // Prevents cache stampede
}

func NewService(repo CartRepository, c CartCache, products ProductGetter) *Service {
	return &Service{
		repo:    repo,
		cache:   c,
		catalog: products,
	}
}

// GetCart returns the session's cart, an empty cart if none exists yet.
func (s *Service) GetCart(ctx context.Context, sessionID string) (*Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(sessionID, func() (interface{}, error) {

		c, err := s.cache.Get(ctx, sessionID)
		if err == nil {
			return c, nil // cart is in cache
		}

		if !errors.Is(err, ErrCacheMiss) {
			log.Printf("cache get error: %v", err) // log cache error but continue
		}

		c, errGet := s.repo.GetCart(ctx, sessionID)
		if errGet != nil && errors.Is(errGet, ErrCartNotFound) {
			return &Cart{
				SessionID: sessionID,
				Lines:     nil,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}, nil
		}
		if errGet != nil {
			return nil, errGet
		}

		go func() {
			errSet := s.cache.Set(context.Background(), sessionID, c)
			if errSet != nil {
				log.Printf("cache set error: %v", errSet)
			}
		}()

		return c, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*Cart), nil
}

// AddItem validates the addition against live catalog stock and merges it
// into the session's cart. The stored line gets a fresh stock snapshot.
func (s *Service) AddItem(ctx context.Context, sessionID string, productID int64, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return err
	}

	if product.Stock < 1 {
		return ErrOutOfStock
	}

	existingQty := 0
	c, err := s.repo.GetCart(ctx, sessionID)
	if err != nil && !errors.Is(err, ErrCartNotFound) {
		return err
	}
	if c != nil {
		if line := c.FindLine(productID); line != nil {
			existingQty = line.Quantity
		}
	}

	newQuantity := existingQty + quantity
	if newQuantity > product.Stock {
		return catalog.ErrInsufficientStock
	}

	line := Line{
		ProductID: productID,
		Name:      product.Name,
		Price:     product.Price,
		Quantity:  newQuantity,
		MaxStock:  product.Stock,
		AddedAt:   time.Now(),
	}

	if errAdd := s.repo.UpsertLine(ctx, sessionID, line); errAdd != nil {
		log.Printf("repo upsert line error: %v", errAdd)
		return errAdd
	}

	s.invalidateCache(sessionID)
	return nil
}

// UpdateQuantity re-validates the requested quantity against live stock.
func (s *Service) UpdateQuantity(ctx context.Context, sessionID string, productID int64, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return err
	}

	if quantity > product.Stock {
		return catalog.ErrInsufficientStock
	}

	if errUpdate := s.repo.UpdateLineQuantity(ctx, sessionID, productID, quantity); errUpdate != nil {
		if errors.Is(errUpdate, ErrLineNotFound) {
			return ErrLineNotFound
		}
		log.Printf("repo update line quantity error: %v", errUpdate)
		return errUpdate
	}

	s.invalidateCache(sessionID)
	return nil
}

// RemoveItem removes a line. Removing an absent product reports
// ErrLineNotFound; callers treat it as a non-fatal message.
func (s *Service) RemoveItem(ctx context.Context, sessionID string, productID int64) error {
	if err := s.repo.RemoveLine(ctx, sessionID, productID); err != nil {
		if errors.Is(err, ErrLineNotFound) || errors.Is(err, ErrCartNotFound) {
			return ErrLineNotFound
		}
		log.Printf("repo remove line error: %v", err)
		return err
	}

	s.invalidateCache(sessionID)
	return nil
}

// Clear empties the cart unconditionally, coupon state included.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	if err := s.repo.DeleteCart(ctx, sessionID); err != nil && !errors.Is(err, ErrCartNotFound) {
		log.Printf("repo delete cart error: %v", err)
		return err
	}

	s.invalidateCache(sessionID)
	return nil
}

func (s *Service) SetCouponCode(ctx context.Context, sessionID string, code string) error {
	if err := s.repo.SetCouponCode(ctx, sessionID, code); err != nil {
		return err
	}

	s.invalidateCache(sessionID)
	return nil
}

func (s *Service) ClearCouponCode(ctx context.Context, sessionID string) error {
	if err := s.repo.ClearCouponCode(ctx, sessionID); err != nil && !errors.Is(err, ErrCartNotFound) {
		return err
	}

	s.invalidateCache(sessionID)
	return nil
}

func (s *Service) invalidateCache(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, sessionID); err != nil {
		log.Printf("cache invalidate error: %v", err)
	}
}
