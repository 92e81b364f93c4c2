package catalog

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore keeps the catalog in process, ordered by insertion.
type MemoryStore struct {
	mu       sync.RWMutex
	products []Product
	nextID   int64
}

// NewMemoryStore returns a store holding copies of the provided products.
func NewMemoryStore(seed []Product) *MemoryStore {
	s := &MemoryStore{products: make([]Product, 0, len(seed)), nextID: 1}
	for _, p := range seed {
		if p.ID >= s.nextID {
			s.nextID = p.ID + 1
		}
		s.products = append(s.products, p)
	}
	for i := range s.products {
		if s.products[i].ID == 0 {
			s.products[i].ID = s.nextID
			s.nextID++
		}
	}
	return s
}

func (s *MemoryStore) ByCode(_ context.Context, code string) (Product, error) {
	code = strings.TrimSpace(code)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if code == "" {
		return Product{}, ErrNotFound
	}
	for _, p := range s.products {
		if strings.EqualFold(p.Code, code) {
			return p, nil
		}
	}
	return Product{}, ErrNotFound
}

func (s *MemoryStore) ByID(_ context.Context, id int64) (Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.ID == id {
			return p, nil
		}
	}
	return Product{}, ErrNotFound
}

func (s *MemoryStore) Search(_ context.Context, query string) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		if p.Matches(query) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemoryStore) Create(_ context.Context, p Product) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codeTakenLocked(p.Code, 0) {
		return Product{}, ErrDuplicateCode
	}
	p.ID = s.nextID
	s.nextID++
	s.products = append(s.products, p)
	return p, nil
}

func (s *MemoryStore) Update(_ context.Context, p Product) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.products {
		if s.products[i].ID != p.ID {
			continue
		}
		if s.codeTakenLocked(p.Code, p.ID) {
			return Product{}, ErrDuplicateCode
		}
		s.products[i] = p
		return p, nil
	}
	return Product{}, ErrNotFound
}

func (s *MemoryStore) codeTakenLocked(code string, except int64) bool {
	for _, existing := range s.products {
		if existing.ID != except && strings.EqualFold(existing.Code, code) {
			return true
		}
	}
	return false
}
