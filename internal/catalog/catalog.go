package catalog

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/storefrontapi"
	"github.com/angelmondragon/storefront/pkg/types"
)

// Source is the remote product API.
type Source interface {
	Products(ctx context.Context) ([]storefrontapi.Product, error)
	CategoriesWithProducts(ctx context.Context) ([]storefrontapi.Category, error)
}

// Status is the state of the product grid.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusEmpty   Status = "empty"
	StatusFailed  Status = "failed"
)

const (
	EmptyTitle   = "No products found"
	EmptyDetail  = "The catalog is empty. Run the backend seed."
	FailedTitle  = "Error loading products"
	FailedDetail = "Check that the server is running."

	// AllCategories disables the category filter.
	AllCategories = "all"
)

// Catalog holds the product list fetched for one page. It is loaded at most
// once per call to LoadProducts; there is no retry or cache beyond that.
type Catalog struct {
	src  Source
	logg *logger.Logger

	mu       sync.RWMutex
	status   Status
	products []storefrontapi.Product
	byID     map[types.ID]storefrontapi.Product
}

func New(src Source, logg *logger.Logger) *Catalog {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Catalog{src: src, logg: logg, status: StatusLoading}
}

// LoadProducts fetches GET /products once. Failures leave the catalog in
// StatusFailed and are returned; the grid shows the error state either way.
func (c *Catalog) LoadProducts(ctx context.Context) error {
	if c.src == nil {
		c.setFailed()
		return pkgerrors.New(pkgerrors.CodeDependency, "product source not configured")
	}
	products, err := c.src.Products(ctx)
	if err != nil {
		c.logg.Error(ctx, "load products", err)
		c.setFailed()
		return err
	}

	byID := make(map[types.ID]storefrontapi.Product, len(products))
	for _, p := range products {
		if _, dup := byID[p.ID]; !dup {
			byID[p.ID] = p
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = products
	c.byID = byID
	if len(products) == 0 {
		c.status = StatusEmpty
	} else {
		c.status = StatusReady
	}
	return nil
}

// LoadCategoriesWithProducts returns the grouped catalog, or an empty list
// when the call fails.
func (c *Catalog) LoadCategoriesWithProducts(ctx context.Context) []storefrontapi.Category {
	if c.src == nil {
		return []storefrontapi.Category{}
	}
	categories, err := c.src.CategoriesWithProducts(ctx)
	if err != nil {
		c.logg.Error(ctx, "load categories", err)
		return []storefrontapi.Category{}
	}
	if categories == nil {
		return []storefrontapi.Category{}
	}
	return categories
}

func (c *Catalog) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Loaded reports whether LoadProducts has completed successfully.
func (c *Catalog) Loaded() bool {
	s := c.Status()
	return s == StatusReady || s == StatusEmpty
}

func (c *Catalog) Products() []storefrontapi.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]storefrontapi.Product, len(c.products))
	copy(out, c.products)
	return out
}

// Find resolves id to the reference the cart stores.
func (c *Catalog) Find(id types.ID) (cart.ProductRef, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.byID[id]
	if !ok {
		return cart.ProductRef{}, false
	}
	return ToRef(p), true
}

// View is what the product grid shows.
type View struct {
	Status Status
	Cards  []Card
}

// Query narrows and orders the grid.
type Query struct {
	Category string
	Sort     string
}

// View returns the grid for q. Unknown sort keys keep the API order.
func (c *Catalog) View(q Query) View {
	c.mu.RLock()
	status := c.status
	products := make([]storefrontapi.Product, 0, len(c.products))
	category := strings.TrimSpace(q.Category)
	for _, p := range c.products {
		if category == "" || strings.EqualFold(category, AllCategories) || strings.EqualFold(p.Category, category) {
			products = append(products, p)
		}
	}
	c.mu.RUnlock()

	sorted, err := Sort(products, q.Sort)
	if err != nil {
		sorted = products
	}
	cards := make([]Card, 0, len(sorted))
	for _, p := range sorted {
		cards = append(cards, NewCard(p))
	}
	return View{Status: status, Cards: cards}
}

func (c *Catalog) setFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = StatusFailed
	c.products = nil
	c.byID = nil
}

// Card is one product in the grid.
type Card struct {
	Product storefrontapi.Product
	// DiscountPercent is zero when there is no badge.
	DiscountPercent int64
}

func NewCard(p storefrontapi.Product) Card {
	return Card{Product: p, DiscountPercent: DiscountPercent(p)}
}

func (c Card) HasDiscount() bool { return hasDiscount(c.Product) }

// DiscountPercent is round((old-price)/old*100) when the product has an old
// price above its current price, else zero.
func DiscountPercent(p storefrontapi.Product) int64 {
	if !hasDiscount(p) {
		return 0
	}
	old := *p.OldPrice
	return old.Sub(p.Price).Div(old).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func hasDiscount(p storefrontapi.Product) bool {
	return p.OldPrice != nil && p.OldPrice.IsPositive() && p.OldPrice.GreaterThan(p.Price)
}

// ToRef copies the fields a cart line needs.
func ToRef(p storefrontapi.Product) cart.ProductRef {
	ref := cart.ProductRef{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		ImageURL:    p.ImageURL,
		Description: p.Description,
		Category:    p.Category,
		Size:        p.Size,
		Color:       p.Color,
	}
	if p.OldPrice != nil {
		old := *p.OldPrice
		ref.OldPrice = &old
	}
	return ref
}
