package cart

import (
	"errors"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/money"
)

var (
	ErrLineNotFound    = errors.New("cart line not found")
	ErrInvalidQuantity = errors.New("quantity must be zero or greater")
)

// Line is one product/size pair held by a shopper.
type Line struct {
	ID             uuid.UUID      `json:"id"`
	ProductID      uuid.UUID      `json:"product_id"`
	Name           string         `json:"name"`
	UnitPriceCents int            `json:"unit_price_cents"`
	Quantity       int            `json:"quantity"`
	Size           string         `json:"size"`
	ImageRef       string         `json:"image_ref"`
	List           enums.CartList `json:"list"`
}

func (l Line) key() lineKey {
	return lineKey{productID: l.ProductID, size: l.Size}
}

// LineTotalCents returns unit price times quantity.
func (l Line) LineTotalCents() int {
	return l.UnitPriceCents * l.Quantity
}

type lineKey struct {
	productID uuid.UUID
	size      string
}

// Snapshot is the product data frozen onto a line when it is added.
type Snapshot struct {
	ProductID      uuid.UUID
	Name           string
	UnitPriceCents int
	ImageRef       string
}

// Cart holds both the active cart list and the saved-for-later list.
// Lines are unique by (product, size) across both lists.
type Cart struct {
	lines []Line
}

// New wraps existing lines. Lines with a blank list default to the cart list.
func New(lines []Line) *Cart {
	c := &Cart{lines: make([]Line, 0, len(lines))}
	for _, line := range lines {
		if line.List == "" {
			line.List = enums.CartListCart
		}
		c.lines = append(c.lines, line)
	}
	return c
}

// Lines returns a copy of every line in both lists.
func (c *Cart) Lines() []Line {
	return append([]Line(nil), c.lines...)
}

// Items returns the lines in the cart list.
func (c *Cart) Items() []Line {
	return c.filter(enums.CartListCart)
}

// Saved returns the lines saved for later.
func (c *Cart) Saved() []Line {
	return c.filter(enums.CartListSaved)
}

func (c *Cart) filter(list enums.CartList) []Line {
	out := []Line{}
	for _, line := range c.lines {
		if line.List == list {
			out = append(out, line)
		}
	}
	return out
}

// Count returns the number of units in the cart list.
func (c *Cart) Count() int {
	total := 0
	for _, line := range c.lines {
		if line.List == enums.CartListCart {
			total += line.Quantity
		}
	}
	return total
}

// AddItem bumps the quantity of the matching line or inserts a new one with quantity 1.
// A matching saved line moves back to the cart. Stock is not checked here.
func (c *Cart) AddItem(p Snapshot, size string) Line {
	key := lineKey{productID: p.ProductID, size: size}
	for i := range c.lines {
		if c.lines[i].key() != key {
			continue
		}
		c.lines[i].Quantity++
		c.lines[i].List = enums.CartListCart
		return c.lines[i]
	}
	line := Line{
		ID:             uuid.New(),
		ProductID:      p.ProductID,
		Name:           p.Name,
		UnitPriceCents: p.UnitPriceCents,
		Quantity:       1,
		Size:           size,
		ImageRef:       p.ImageRef,
		List:           enums.CartListCart,
	}
	c.lines = append(c.lines, line)
	return line
}

// UpdateQuantity sets a line quantity. Zero removes the line.
func (c *Cart) UpdateQuantity(lineID uuid.UUID, qty int) error {
	if qty < 0 {
		return ErrInvalidQuantity
	}
	if qty == 0 {
		return c.RemoveItem(lineID)
	}
	idx := c.indexOf(lineID)
	if idx < 0 {
		return ErrLineNotFound
	}
	c.lines[idx].Quantity = qty
	return nil
}

// RemoveItem drops a line from whichever list holds it.
func (c *Cart) RemoveItem(lineID uuid.UUID) error {
	idx := c.indexOf(lineID)
	if idx < 0 {
		return ErrLineNotFound
	}
	c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
	return nil
}

// SaveForLater moves a line from the cart to the saved list.
func (c *Cart) SaveForLater(lineID uuid.UUID) error {
	return c.move(lineID, enums.CartListSaved)
}

// MoveToCart moves a saved line back into the cart.
func (c *Cart) MoveToCart(lineID uuid.UUID) error {
	return c.move(lineID, enums.CartListCart)
}

func (c *Cart) move(lineID uuid.UUID, list enums.CartList) error {
	idx := c.indexOf(lineID)
	if idx < 0 {
		return ErrLineNotFound
	}
	c.lines[idx].List = list
	return nil
}

// Clear empties the cart list and keeps saved lines.
func (c *Cart) Clear() {
	c.lines = c.Saved()
}

// Total sums unit price times quantity over the cart list, in cents.
func (c *Cart) Total() int {
	total := 0
	for _, line := range c.lines {
		if line.List == enums.CartListCart {
			total += line.LineTotalCents()
		}
	}
	return total
}

// FormatTotal renders Total with two fraction digits.
func (c *Cart) FormatTotal(currency string) string {
	return money.FormatWithCurrency(c.Total(), currency)
}

// Merge folds incoming lines into the cart. Duplicates by (product, size) sum
// their quantities and keep the list of the existing line. Lines with a
// non-positive quantity are ignored. New lines always get a fresh id.
func (c *Cart) Merge(incoming []Line) {
	index := make(map[lineKey]int, len(c.lines))
	for i, line := range c.lines {
		index[line.key()] = i
	}
	for _, line := range incoming {
		if line.Quantity <= 0 {
			continue
		}
		if i, ok := index[line.key()]; ok {
			c.lines[i].Quantity += line.Quantity
			continue
		}
		line.ID = uuid.New()
		if line.List == "" {
			line.List = enums.CartListCart
		}
		c.lines = append(c.lines, line)
		index[line.key()] = len(c.lines) - 1
	}
}

func (c *Cart) indexOf(lineID uuid.UUID) int {
	for i, line := range c.lines {
		if line.ID == lineID {
			return i
		}
	}
	return -1
}
