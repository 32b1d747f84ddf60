package cart

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront/pkg/types"
)

// ProductRef is what a catalog card hands to the cart when the shopper clicks
// add-to-cart.
type ProductRef struct {
	ID          types.ID
	Name        string
	Price       decimal.Decimal
	OldPrice    *decimal.Decimal
	ImageURL    string
	Description string
	Category    string
	Size        string
	Color       string
}

// LineItem is one product-and-quantity entry. Quantity is always >= 1.
type LineItem struct {
	ID       types.ID        `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Size     string          `json:"size,omitempty"`
	Color    string          `json:"color,omitempty"`
	Image    string          `json:"image,omitempty"`
	Category string          `json:"category,omitempty"`
}

func (l LineItem) Total() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is the ordered sequence of line items, at most one per product id.
type Cart []LineItem

// IndexOf returns the position of id, or -1.
func (c Cart) IndexOf(id types.ID) int {
	for i, line := range c {
		if line.ID == id {
			return i
		}
	}
	return -1
}

func (c Cart) Clone() Cart {
	if c == nil {
		return Cart{}
	}
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

// Count is the total quantity shown on the header badge.
func (c Cart) Count() int {
	total := 0
	for _, line := range c {
		total += line.Quantity
	}
	return total
}

// withProduct returns a copy of c with ref added: an existing line gains one
// unit, otherwise a new line is appended with quantity 1.
func (c Cart) withProduct(ref ProductRef) Cart {
	next := c.Clone()
	if idx := next.IndexOf(ref.ID); idx >= 0 {
		next[idx].Quantity++
		return next
	}
	return append(next, LineItem{
		ID:       ref.ID,
		Name:     ref.Name,
		Price:    ref.Price,
		Quantity: 1,
		Size:     ref.Size,
		Color:    ref.Color,
		Image:    ref.ImageURL,
		Category: ref.Category,
	})
}

func (c Cart) without(pos int) Cart {
	next := make(Cart, 0, len(c)-1)
	next = append(next, c[:pos]...)
	return append(next, c[pos+1:]...)
}
