package service

import (
	"time"

	"github.com/pkg/errors"

	"telegram-shop/model"
	"telegram-shop/store"
)

type OrderService struct {
	store  store.OrderStore
	ids    IDGenerator
	now    func() time.Time
	strict bool
}

// NewOrderService returns an order service. With strict set, status updates
// must follow model.CanTransition.
func NewOrderService(st store.OrderStore, ids IDGenerator, strict bool) *OrderService {
	return &OrderService{store: st, ids: ids, now: time.Now, strict: strict}
}

// Submit persists a draft as a pending order. The draft is expected to be
// validated already; the total is recomputed from the item lines.
func (s *OrderService) Submit(draft model.OrderDraft) (*model.Order, error) {
	draft.Items = append([]model.CartLine{}, draft.Items...)
	total, err := model.CheckedLinesTotal(draft.Items)
	if err != nil {
		return nil, errors.Wrap(err, "submit order")
	}
	draft.Total = total

	order := &model.Order{
		ID:         s.ids.NextID(),
		OrderDraft: draft,
		Status:     model.StatusPending,
		CreatedAt:  s.now(),
	}
	if err := s.store.Append(order); err != nil {
		return nil, errors.Wrap(err, "submit order")
	}
	return order, nil
}

func (s *OrderService) List() ([]model.Order, error) {
	return s.store.List()
}

func (s *OrderService) Find(id string) (*model.Order, error) {
	return s.store.Find(id)
}

func (s *OrderService) ListByChat(chatID string) ([]model.Order, error) {
	orders, err := s.store.List()
	if err != nil {
		return nil, err
	}
	out := []model.Order{}
	for _, o := range orders {
		if chatID != "" && o.ChatID == chatID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *OrderService) UpdateStatus(id string, status model.Status) (*model.Order, error) {
	if !status.Valid() {
		return nil, model.ErrUnknownStatus
	}
	if s.strict {
		current, err := s.store.Find(id)
		if err != nil {
			return nil, err
		}
		if !model.CanTransition(current.Status, status) {
			return nil, model.ErrTransitionNotAllowed
		}
	}
	return s.store.UpdateStatus(id, status, s.now())
}
