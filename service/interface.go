package service

import (
	"context"

	"telegram-shop/model"
)

// ProductFinder resolves a product id to its current catalog entry.
type ProductFinder interface {
	Find(id int64) (model.Product, error)
}

type CatalogInterface interface {
	ProductFinder
	List(category, search string) []model.Product
}

type OrderServiceInterface interface {
	Submit(draft model.OrderDraft) (*model.Order, error)
	List() ([]model.Order, error)
	Find(id string) (*model.Order, error)
	ListByChat(chatID string) ([]model.Order, error)
	UpdateStatus(id string, status model.Status) (*model.Order, error)
}

// Sender delivers one HTML message with an optional inline keyboard.
type Sender interface {
	Send(ctx context.Context, chatID, text string, keyboard [][]model.Button) error
}

type NotifierInterface interface {
	NotifyOrder(ctx context.Context, order *model.Order) error
}
