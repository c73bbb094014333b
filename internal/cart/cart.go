// Package cart implements the shopping cart: the line arithmetic and a store
// that owns one cart, hydrates it from a persister and writes it back after
// every change.
package cart

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidLine  = errors.New("invalid cart line")
	ErrLineNotFound = errors.New("cart line not found")
)

// Line is one product in the cart. Name and unit price are copied from the
// catalog when the product is first added.
type Line struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

// Total returns unit price times quantity
func (l Line) Total() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

func (l Line) validate() error {
	switch {
	case l.ProductID == "":
		return fmt.Errorf("%w: product id is empty", ErrInvalidLine)
	case l.Quantity < 1:
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidLine)
	case l.UnitPrice < 0:
		return fmt.Errorf("%w: unit price must not be negative", ErrInvalidLine)
	}
	return nil
}

// Cart is an ordered set of lines with at most one line per product
type Cart struct {
	lines []Line
}

// New returns an empty cart
func New() *Cart {
	return &Cart{}
}

// FromLines builds a cart by adding each line in order. Invalid lines are
// dropped, duplicates are merged.
func FromLines(lines []Line) *Cart {
	c := New()
	for _, l := range lines {
		_ = c.Add(l)
	}
	return c
}

func (c *Cart) index(productID string) int {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Add merges line into the cart. An existing line keeps its name and unit
// price and only has its quantity increased.
func (c *Cart) Add(line Line) error {
	if err := line.validate(); err != nil {
		return err
	}

	if i := c.index(line.ProductID); i >= 0 {
		c.lines[i].Quantity += line.Quantity
		return nil
	}

	c.lines = append(c.lines, line)
	return nil
}

// UpdateQuantity sets the quantity of a line, never below 1
func (c *Cart) UpdateQuantity(productID string, quantity int) error {
	i := c.index(productID)
	if i < 0 {
		return ErrLineNotFound
	}

	c.lines[i].Quantity = max(1, quantity)
	return nil
}

// Remove deletes the line for productID if there is one
func (c *Cart) Remove(productID string) {
	if i := c.index(productID); i >= 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
	}
}

// Clear empties the cart
func (c *Cart) Clear() {
	c.lines = nil
}

// Subtotal sums unit price times quantity over all lines
func (c *Cart) Subtotal() int64 {
	var total int64
	for _, l := range c.lines {
		total += l.Total()
	}
	return total
}

// Count sums the quantities of all lines
func (c *Cart) Count() int {
	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// Len returns the number of distinct lines
func (c *Cart) Len() int {
	return len(c.lines)
}

// IsEmpty reports whether the cart has no lines
func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Line returns the line for productID
func (c *Cart) Line(productID string) (Line, bool) {
	if i := c.index(productID); i >= 0 {
		return c.lines[i], true
	}
	return Line{}, false
}

// Lines returns a copy of the lines in insertion order
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Clone returns an independent copy of the cart
func (c *Cart) Clone() *Cart {
	return &Cart{lines: c.Lines()}
}
