package render

import (
	"encoding/json"
	"sort"
	"sync"
)

// Element ids the projector writes to. A page only carries the ones it has.
const (
	IDHeaderLoginBtn     = "header-login-btn"
	IDUserMenu           = "user-menu"
	IDUserName           = "user-name"
	IDCheckoutBtn        = "checkout-btn"
	IDLoginRequired      = "login-required"
	IDCartItems          = "cart-items"
	IDCartHeader         = "cart-header"
	IDCartCount          = "cart-count"
	IDSubtotal           = "subtotal"
	IDFreight            = "freight"
	IDDiscount           = "discount"
	IDTotal              = "total"
	IDSelectedSummary    = "selected-summary"
	IDSelectedItemsCount = "selected-items-count"
	IDSelectedItemsTotal = "selected-items-total"
	IDSelectedCount      = "selected-count"
	IDSelectedTotal      = "selected-total"
	IDSelectAllCheckbox  = "select-all-checkbox"
	IDProductsGrid       = "products-grid"
	IDLoading            = "loading"
)

// HeaderIDs are present on every page.
var HeaderIDs = []string{IDHeaderLoginBtn, IDUserMenu, IDUserName, IDCartCount}

// CartPageIDs are the elements of the cart page.
var CartPageIDs = append(append([]string{}, HeaderIDs...),
	IDCheckoutBtn, IDLoginRequired, IDCartItems, IDCartHeader,
	IDSubtotal, IDFreight, IDDiscount, IDTotal,
	IDSelectedSummary, IDSelectedItemsCount, IDSelectedItemsTotal,
	IDSelectedCount, IDSelectedTotal, IDSelectAllCheckbox,
)

// ProductsPageIDs are the elements of the product listing page.
var ProductsPageIDs = append(append([]string{}, HeaderIDs...), IDProductsGrid, IDLoading)

// HomePageIDs: the header over the featured product grid.
var HomePageIDs = append(append([]string{}, HeaderIDs...), IDProductsGrid, IDLoading)

// CheckoutPageIDs summarize the selection being checked out.
var CheckoutPageIDs = append(append([]string{}, HeaderIDs...),
	IDCheckoutBtn, IDLoginRequired,
	IDSubtotal, IDFreight, IDDiscount, IDTotal,
	IDSelectedSummary, IDSelectedItemsCount, IDSelectedItemsTotal,
)

// LoginPageIDs carry only the session elements.
var LoginPageIDs = append([]string{}, HeaderIDs...)

// Element is the projected state of one on-screen element.
type Element struct {
	ID       string `json:"id"`
	Text     string `json:"text,omitempty"`
	HTML     string `json:"html,omitempty"`
	Hidden   bool   `json:"hidden"`
	Disabled bool   `json:"disabled,omitempty"`
	Checked  bool   `json:"checked,omitempty"`
}

// Document is the set of elements a page exposes, keyed by id.
type Document struct {
	mu       sync.RWMutex
	elements map[string]*Element
}

func NewDocument(ids ...string) *Document {
	d := &Document{elements: make(map[string]*Element, len(ids))}
	for _, id := range ids {
		d.elements[id] = &Element{ID: id}
	}
	return d
}

// Element returns a copy of the element with id.
func (d *Document) Element(id string) (Element, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	el, ok := d.elements[id]
	if !ok {
		return Element{}, false
	}
	return *el, true
}

func (d *Document) Has(id string) bool {
	_, ok := d.Element(id)
	return ok
}

// Elements returns copies of every element ordered by id.
func (d *Document) Elements() []Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Element, 0, len(d.elements))
	for _, el := range d.elements {
		out = append(out, *el)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (d *Document) MarshalJSON() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]Element, len(d.elements))
	for id, el := range d.elements {
		out[id] = *el
	}
	return json.Marshal(out)
}

// update applies fn to the element with id. Absent elements are skipped.
func (d *Document) update(id string, fn func(*Element)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.elements[id]; ok {
		fn(el)
	}
}

func (d *Document) setText(id, text string) {
	d.update(id, func(el *Element) { el.Text = text })
}

func (d *Document) setHidden(id string, hidden bool) {
	d.update(id, func(el *Element) { el.Hidden = hidden })
}
