package model

import "errors"

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrInvalidQuantity      = errors.New("quantity must be > 0")
	ErrCartLimit            = errors.New("cart item limit reached")
	ErrAmountOverflow       = errors.New("order amount out of range")
	ErrUnknownStatus        = errors.New("unknown order status")
	ErrTransitionNotAllowed = errors.New("order status transition not allowed")
)
