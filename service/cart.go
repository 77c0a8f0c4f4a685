package service

import (
	"encoding/json"
	"math"

	"github.com/pkg/errors"

	"telegram-shop/model"
	"telegram-shop/store"
)

// Cart holds the lines of one storefront session and rewrites the whole
// cart to its KV key after every change.
type Cart struct {
	kv       store.KV
	key      string
	products ProductFinder
	maxItems int
	lines    []model.CartLine
}

// LoadCart reads the cart stored under key. A missing key yields an empty cart.
func LoadCart(kv store.KV, key string, products ProductFinder, maxItems int) (*Cart, error) {
	c := &Cart{kv: kv, key: key, products: products, maxItems: maxItems}

	raw, ok, err := kv.Get(key)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if ok {
		var lines []model.CartLine
		if err := json.Unmarshal(raw, &lines); err != nil {
			return nil, errors.Wrap(err, "decode cart")
		}
		// stored lines never have a quantity below one; skip any that do
		for _, l := range lines {
			if l.Quantity > 0 {
				c.lines = append(c.lines, l)
			}
		}
		if _, err := model.CheckedLinesTotal(c.lines); err != nil {
			return nil, errors.Wrap(err, "decode cart")
		}
	}
	return c, nil
}

func (c *Cart) Add(productID int64, quantity int) error {
	if quantity < 1 {
		return model.ErrInvalidQuantity
	}
	p, err := c.products.Find(productID)
	if err != nil {
		return err
	}

	i := c.index(productID)
	next := quantity
	if i >= 0 {
		if quantity > math.MaxInt-c.lines[i].Quantity {
			return c.overflow()
		}
		next += c.lines[i].Quantity
	}
	if err := c.admit(i, p, next); err != nil {
		return err
	}

	if i >= 0 {
		c.lines[i].Quantity = next
	} else {
		c.lines = append(c.lines, model.CartLine{Product: p, Quantity: quantity})
	}
	return c.save()
}

// SetQuantity overwrites a line in place; quantity <= 0 removes it.
// Lines that are not in the cart are left alone.
func (c *Cart) SetQuantity(productID int64, quantity int) error {
	i := c.index(productID)
	if i < 0 {
		return nil
	}
	if quantity <= 0 {
		return c.Remove(productID)
	}
	if err := c.admit(i, c.lines[i].Product, quantity); err != nil {
		return err
	}
	c.lines[i].Quantity = quantity
	return c.save()
}

func (c *Cart) Remove(productID int64) error {
	i := c.index(productID)
	if i < 0 {
		return nil
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	return c.save()
}

func (c *Cart) Clear() error {
	c.lines = nil
	return c.save()
}

func (c *Cart) Total() int64 {
	return model.LinesTotal(c.lines)
}

func (c *Cart) ItemCount() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

func (c *Cart) Lines() []model.CartLine {
	return append([]model.CartLine{}, c.lines...)
}

// admit checks that putting quantity of p at line i (-1 for a new line)
// keeps the cart within maxItems and its total within int64.
func (c *Cart) admit(i int, p model.Product, quantity int) error {
	others := c.ItemCount()
	if i >= 0 {
		others -= c.lines[i].Quantity
	}
	if quantity > math.MaxInt-others {
		return c.overflow()
	}
	if c.maxItems > 0 && quantity > c.maxItems-others {
		return model.ErrCartLimit
	}

	candidate := append([]model.CartLine{}, c.lines...)
	if i >= 0 {
		candidate[i].Quantity = quantity
	} else {
		candidate = append(candidate, model.CartLine{Product: p, Quantity: quantity})
	}
	_, err := model.CheckedLinesTotal(candidate)
	return err
}

// overflow reports ErrCartLimit when a limit is configured, since any
// quantity that large is over it anyway.
func (c *Cart) overflow() error {
	if c.maxItems > 0 {
		return model.ErrCartLimit
	}
	return model.ErrAmountOverflow
}

func (c *Cart) index(productID int64) int {
	for i, l := range c.lines {
		if l.ID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) save() error {
	lines := c.lines
	if lines == nil {
		lines = []model.CartLine{}
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return errors.Wrap(err, "encode cart")
	}
	return errors.Wrap(c.kv.Set(c.key, raw), "save cart")
}
