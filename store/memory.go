package store

import (
	"sync"
	"time"

	"telegram-shop/model"
)

// MemoryOrderStore keeps orders for the lifetime of the process.
type MemoryOrderStore struct {
	mu     sync.RWMutex
	orders []*model.Order
}

func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{}
}

func (s *MemoryOrderStore) Append(order *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, cloneOrder(order))
	return nil
}

func (s *MemoryOrderStore) List() ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, *cloneOrder(o))
	}
	return out, nil
}

func (s *MemoryOrderStore) Find(id string) (*model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.ID == id {
			return cloneOrder(o), nil
		}
	}
	return nil, model.ErrOrderNotFound
}

func (s *MemoryOrderStore) UpdateStatus(id string, status model.Status, at time.Time) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ID == id {
			o.Status = status
			o.UpdatedAt = &at
			return cloneOrder(o), nil
		}
	}
	return nil, model.ErrOrderNotFound
}

func (s *MemoryOrderStore) Close() error { return nil }

func cloneOrder(o *model.Order) *model.Order {
	c := *o
	c.Items = append([]model.CartLine(nil), o.Items...)
	if o.UpdatedAt != nil {
		t := *o.UpdatedAt
		c.UpdatedAt = &t
	}
	return &c
}
