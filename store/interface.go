package store

import (
	"time"

	"telegram-shop/model"
)

// KV is flat key-value storage holding whole JSON documents per key.
type KV interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
}

// OrderStore is append-mostly: only status and update time change after Append.
type OrderStore interface {
	Append(order *model.Order) error
	List() ([]model.Order, error)
	Find(id string) (*model.Order, error)
	UpdateStatus(id string, status model.Status, at time.Time) (*model.Order, error)

	Close() error
}
