package model

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

// transitions is the lifecycle used when strict status updates are enabled.
var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderDraft is what the storefront submits at checkout.
type OrderDraft struct {
	CustomerName    string     `json:"customerName"`
	CustomerPhone   string     `json:"customerPhone"`
	CustomerAddress string     `json:"customerAddress"`
	PaymentMethod   string     `json:"paymentMethod"`
	Items           []CartLine `json:"items"`
	Total           int64      `json:"total"`
	// ChatID is the Telegram user of the mini-app session, if known.
	ChatID string `json:"chatId,omitempty"`
}

type Order struct {
	ID string `json:"id"`
	OrderDraft
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"timestamp"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}
