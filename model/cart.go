package model

import "math"

// CartLine is a product snapshot taken when it was added, plus a quantity >= 1.
type CartLine struct {
	Product
	Quantity int `json:"quantity"`
}

func (l CartLine) LineTotal() int64 {
	return l.Price * int64(l.Quantity)
}

// CheckedLineTotal is LineTotal that fails instead of wrapping around.
func (l CartLine) CheckedLineTotal() (int64, error) {
	if l.Quantity < 0 || l.Price < 0 {
		return 0, ErrInvalidQuantity
	}
	if l.Quantity > 0 && l.Price > math.MaxInt64/int64(l.Quantity) {
		return 0, ErrAmountOverflow
	}
	return l.Price * int64(l.Quantity), nil
}

func LinesTotal(lines []CartLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.LineTotal()
	}
	return total
}

// CheckedLinesTotal sums line totals, failing on negative quantities or int64 overflow.
func CheckedLinesTotal(lines []CartLine) (int64, error) {
	var total int64
	for _, l := range lines {
		lt, err := l.CheckedLineTotal()
		if err != nil {
			return 0, err
		}
		if lt > math.MaxInt64-total {
			return 0, ErrAmountOverflow
		}
		total += lt
	}
	return total, nil
}

// CheckedQuantity sums quantities, failing on overflow.
func CheckedQuantity(lines []CartLine) (int, error) {
	n := 0
	for _, l := range lines {
		if l.Quantity < 0 {
			return 0, ErrInvalidQuantity
		}
		if l.Quantity > math.MaxInt-n {
			return 0, ErrAmountOverflow
		}
		n += l.Quantity
	}
	return n, nil
}
