package render

import (
	"bytes"
	"context"
	"html/template"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/catalog"
	"github.com/angelmondragon/storefront/pkg/logger"
)

const (
	placeholderImage = "https://via.placeholder.com/100x100?text=Product"
	defaultCategory  = "General"
	defaultName      = "Unnamed product"
)

var templates = template.Must(template.New("render").Funcs(template.FuncMap{
	"money":  Money,
	"orElse": orElse,
	"deref":  deref,
}).Parse(`
{{define "cart-empty"}}<div class="empty-cart"><h3>Your cart is empty</h3><p>Add some great products!</p><a href="index.html" class="btn">Continue shopping</a></div>{{end}}

{{define "cart-rows"}}{{range .}}<div class="cart-item{{if .Selected}} selected{{end}}" data-id="{{.Line.ID}}" data-index="{{.Index}}">
<div class="cart-item-select"><input type="checkbox" class="item-checkbox" data-index="{{.Index}}"{{if .Selected}} checked{{end}}></div>
<img src="{{orElse .Line.Image "` + placeholderImage + `"}}" alt="{{orElse .Line.Name "Product"}}">
<div class="cart-item-details"><h4>{{orElse .Line.Name "` + defaultName + `"}}</h4>
<div class="cart-item-category">{{orElse .Line.Category "` + defaultCategory + `"}}</div>
<div class="cart-item-price">{{money .Line.Price}}</div>
{{if .Line.Size}}<div class="cart-item-variant">Size: {{.Line.Size}}</div>{{end}}
{{if .Line.Color}}<div class="cart-item-variant">Color: {{.Line.Color}}</div>{{end}}</div>
<div class="cart-item-controls"><div class="quantity-controls"><button type="button" data-action="decrement" data-index="{{.Index}}">−</button><span>{{.Line.Quantity}}</span><button type="button" data-action="increment" data-index="{{.Index}}">+</button></div>
<button type="button" class="remove-btn" data-action="remove" data-index="{{.Index}}">Remove</button></div>
<div class="cart-item-total">{{money .Line.Total}}</div>
</div>
{{end}}{{end}}

{{define "grid-empty"}}<div class="empty-state"><h3>` + catalog.EmptyTitle + `</h3><p>` + catalog.EmptyDetail + `</p></div>{{end}}

{{define "grid-failed"}}<div class="error-state"><h3>` + catalog.FailedTitle + `</h3><p>` + catalog.FailedDetail + `</p></div>{{end}}

{{define "grid-cards"}}{{range .}}<div class="product-card">
{{if .HasDiscount}}<div class="discount-badge">-{{.DiscountPercent}}%</div>{{end}}
<img src="{{.Product.ImageURL}}" alt="{{.Product.Name}}" class="product-image">
<div class="product-info"><div class="product-title">{{.Product.Name}}</div>
<div class="product-prices">{{if .HasDiscount}}<div class="price-with-discount"><span class="product-old-price">{{money (deref .Product.OldPrice)}}</span><span class="product-price discount">{{money .Product.Price}}</span></div>{{else}}<span class="product-price">{{money .Product.Price}}</span>{{end}}</div>
<p class="product-description">{{.Product.Description}}</p>
<div class="product-actions"><a href="product.html?id={{.Product.ID}}" class="btn-details">Details</a><button class="add-to-cart" data-id="{{.Product.ID}}">Add</button></div>
</div></div>
{{end}}{{end}}
`))

// State is everything the projector reflects. Catalog is nil on pages
// without a product grid.
type State struct {
	Authenticated bool
	FirstName     string
	Cart          cart.Cart
	Selection     cart.Selection
	Catalog       *catalog.View
}

type row struct {
	Index    int
	Line     cart.LineItem
	Selected bool
}

// Projector mirrors State into a Document. It holds no state of its own, so
// syncing the same State twice yields the same Document.
type Projector struct {
	logg *logger.Logger
}

func NewProjector(logg *logger.Logger) *Projector {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Projector{logg: logg}
}

func (p *Projector) Sync(ctx context.Context, doc *Document, st State) {
	if doc == nil {
		return
	}
	p.syncSession(doc, st)
	p.syncCart(ctx, doc, st)
	if st.Catalog != nil {
		p.syncGrid(ctx, doc, *st.Catalog)
	}
}

func (p *Projector) syncSession(doc *Document, st State) {
	doc.setHidden(IDUserMenu, !st.Authenticated)
	doc.setHidden(IDHeaderLoginBtn, st.Authenticated)
	doc.setHidden(IDLoginRequired, st.Authenticated)

	name := ""
	if st.Authenticated {
		name = st.FirstName
	}
	doc.setText(IDUserName, name)
}

func (p *Projector) syncCart(ctx context.Context, doc *Document, st State) {
	totals := cart.ComputeTotals(st.Cart, st.Selection)

	doc.update(IDCheckoutBtn, func(el *Element) {
		el.Hidden = !st.Authenticated
		el.Disabled = totals.SelectedLines == 0
	})

	empty := len(st.Cart) == 0
	doc.setHidden(IDCartHeader, empty)
	if doc.Has(IDCartItems) {
		html := p.cartItemsHTML(ctx, st)
		doc.update(IDCartItems, func(el *Element) { el.HTML = html })
	}

	doc.setText(IDCartCount, strconv.Itoa(totals.ItemCount))
	doc.setText(IDSubtotal, Money(totals.Subtotal))
	doc.setText(IDFreight, Freight(totals.Freight))
	doc.setText(IDDiscount, Discount(totals.Discount))
	doc.setText(IDTotal, Money(totals.Total))

	doc.setHidden(IDSelectedSummary, empty || totals.SelectedCount == 0)
	doc.setText(IDSelectedItemsCount, strconv.Itoa(totals.SelectedCount))
	doc.setText(IDSelectedItemsTotal, Money(totals.SelectedSubtotal))
	doc.setText(IDSelectedCount, selectedLabel(totals.SelectedCount))
	doc.setText(IDSelectedTotal, "Total: "+Money(totals.SelectedSubtotal))

	allSelected := !empty && totals.SelectedLines == len(st.Cart)
	doc.update(IDSelectAllCheckbox, func(el *Element) { el.Checked = allSelected })
}

func (p *Projector) cartItemsHTML(ctx context.Context, st State) string {
	if len(st.Cart) == 0 {
		return p.execute(ctx, "cart-empty", nil)
	}
	rows := make([]row, 0, len(st.Cart))
	for i, line := range st.Cart {
		rows = append(rows, row{Index: i, Line: line, Selected: st.Selection.Has(line.ID)})
	}
	return p.execute(ctx, "cart-rows", rows)
}

func (p *Projector) syncGrid(ctx context.Context, doc *Document, view catalog.View) {
	doc.setHidden(IDLoading, view.Status != catalog.StatusLoading)
	if !doc.Has(IDProductsGrid) {
		return
	}

	var html string
	switch view.Status {
	case catalog.StatusLoading:
		html = ""
	case catalog.StatusFailed:
		html = p.execute(ctx, "grid-failed", nil)
	default:
		if len(view.Cards) == 0 {
			html = p.execute(ctx, "grid-empty", nil)
		} else {
			html = p.execute(ctx, "grid-cards", view.Cards)
		}
	}
	doc.update(IDProductsGrid, func(el *Element) { el.HTML = html })
}

func (p *Projector) execute(ctx context.Context, name string, data any) string {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		p.logg.Error(p.logg.WithField(ctx, "template", name), "render template", err)
		return ""
	}
	return buf.String()
}

func orElse(v any, fallback string) string {
	s := ""
	switch t := v.(type) {
	case string:
		s = t
	case interface{ String() string }:
		s = t.String()
	}
	if s == "" {
		return fallback
	}
	return s
}

func deref(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
