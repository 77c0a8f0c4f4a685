package store

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"

	"telegram-shop/model"
)

// KVOrderStore keeps the whole orders list as one JSON array under a single key.
// Every change reads, modifies and rewrites the full array.
type KVOrderStore struct {
	mu  sync.Mutex
	kv  KV
	key string
}

func NewKVOrderStore(kv KV, key string) *KVOrderStore {
	return &KVOrderStore{kv: kv, key: key}
}

func (s *KVOrderStore) Append(order *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders, err := s.load()
	if err != nil {
		return err
	}
	orders = append(orders, *cloneOrder(order))
	return s.save(orders)
}

func (s *KVOrderStore) List() ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *KVOrderStore) Find(id string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if orders[i].ID == id {
			return &orders[i], nil
		}
	}
	return nil, model.ErrOrderNotFound
}

func (s *KVOrderStore) UpdateStatus(id string, status model.Status, at time.Time) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if orders[i].ID != id {
			continue
		}
		orders[i].Status = status
		orders[i].UpdatedAt = &at
		if err := s.save(orders); err != nil {
			return nil, err
		}
		return cloneOrder(&orders[i]), nil
	}
	return nil, model.ErrOrderNotFound
}

func (s *KVOrderStore) Close() error { return nil }

func (s *KVOrderStore) load() ([]model.Order, error) {
	raw, ok, err := s.kv.Get(s.key)
	if err != nil {
		return nil, errors.Wrap(err, "load orders")
	}
	orders := []model.Order{}
	if !ok {
		return orders, nil
	}
	if err := json.Unmarshal(raw, &orders); err != nil {
		return nil, errors.Wrap(err, "decode orders")
	}
	return orders, nil
}

func (s *KVOrderStore) save(orders []model.Order) error {
	raw, err := json.Marshal(orders)
	if err != nil {
		return errors.Wrap(err, "encode orders")
	}
	return errors.Wrap(s.kv.Set(s.key, raw), "save orders")
}
