package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore implements Repository with in-memory storage. Used in tests
// and as a seedable fixture store; semantics match the SQLite repository,
// including the two-pass validate-then-decrement deduction.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[int64]*Product
	nextID   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[int64]*Product),
		nextID:   1,
	}
}

func (s *MemoryStore) GetProduct(_ context.Context, id int64) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.products[id]
	if !exists {
		return nil, ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListProducts(_ context.Context, filter Filter) ([]*Product, error) {
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, ErrInvalidCategory
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var products []*Product
	for _, p := range s.products {
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(p.Name), needle) &&
				!strings.Contains(strings.ToLower(p.Description), needle) {
				continue
			}
		}
		if filter.MinPrice != nil && p.Price < *filter.MinPrice {
			continue
		}
		if filter.MaxPrice != nil && p.Price > *filter.MaxPrice {
			continue
		}
		if filter.Featured != nil && p.Featured != *filter.Featured {
			continue
		}
		cp := *p
		products = append(products, &cp)
	}

	sort.Slice(products, func(i, j int) bool {
		a, b := products[i], products[j]
		switch filter.Sort {
		case SortByName:
			return a.Name < b.Name
		case SortByPriceAsc:
			return a.Price < b.Price
		case SortByPriceDesc:
			return a.Price > b.Price
		case SortByNewest:
			return a.CreatedAt.After(b.CreatedAt)
		default:
			return a.ID < b.ID
		}
	})

	return products, nil
}

func (s *MemoryStore) CreateProduct(_ context.Context, p *Product) error {
	if !p.Category.Valid() {
		return ErrInvalidCategory
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	p.ID = s.nextID
	s.nextID++
	p.CreatedAt = now
	p.UpdatedAt = now

	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateProduct(_ context.Context, p *Product) error {
	if !p.Category.Valid() {
		return ErrInvalidCategory
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.products[p.ID]
	if !exists {
		return ErrProductNotFound
	}

	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now()
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *MemoryStore) ConditionalDecrementStock(_ context.Context, id int64, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decrementLocked(id, qty)
}

func (s *MemoryStore) decrementLocked(id int64, qty int) error {
	p, exists := s.products[id]
	if !exists {
		return ErrProductNotFound
	}
	if p.Stock < qty {
		return ErrInsufficientStock
	}
	p.Stock -= qty
	p.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) IncrementStock(_ context.Context, id int64, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.products[id]
	if !exists {
		return ErrProductNotFound
	}
	p.Stock += qty
	p.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) DeductStock(_ context.Context, lines []Deduction) ([]*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: validate all lines before mutating any stock.
	need := make(map[int64]int, len(lines))
	for _, line := range lines {
		p, exists := s.products[line.ProductID]
		if !exists {
			return nil, ErrProductNotFound
		}
		need[line.ProductID] += line.Quantity
		if p.Stock < need[line.ProductID] {
			return nil, ErrInsufficientStock
		}
	}

	// Second pass: decrement all lines.
	snapshots := make([]*Product, 0, len(lines))
	for _, line := range lines {
		if err := s.decrementLocked(line.ProductID, line.Quantity); err != nil {
			return nil, err
		}
		cp := *s.products[line.ProductID]
		snapshots = append(snapshots, &cp)
	}

	return snapshots, nil
}
