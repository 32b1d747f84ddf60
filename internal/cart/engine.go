package cart

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront/internal/notify"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/angelmondragon/storefront/pkg/types"
)

// ProductFinder resolves product ids against the catalog loaded for the page.
type ProductFinder interface {
	Find(id types.ID) (ProductRef, bool)
}

// SessionView is the part of the session the cart needs at checkout.
type SessionView interface {
	IsAuthenticated() bool
	FirstName() string
}

// Syncer re-projects state after a mutation.
type Syncer interface {
	Sync(ctx context.Context)
}

// Deps are the collaborators of an Engine; only Store is required.
type Deps struct {
	Store      *Store
	Selections *SelectionRegistry
	ClientID   string
	Catalog    ProductFinder
	Session    SessionView
	Notifier   notify.Notifier
	Syncer     Syncer
	Metrics    *metrics.CartMetrics
	Logger     *logger.Logger
}

// Engine owns one shopper's cart and selection for a page session. Every
// mutation persists first and only then updates the in-memory state, so a
// failed write leaves the cart unchanged.
type Engine struct {
	mu        sync.Mutex
	deps      Deps
	cart      Cart
	selection Selection
}

func NewEngine(deps Deps) (*Engine, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &Engine{deps: deps, cart: Cart{}, selection: Selection{}}, nil
}

// SetSyncer attaches the projector once the page that owns the engine exists.
func (e *Engine) SetSyncer(s Syncer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deps.Syncer = s
}

// SetCatalog attaches the product list loaded for the page.
func (e *Engine) SetCatalog(f ProductFinder) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deps.Catalog = f
}

// Hydrate reloads the cart from storage and the selection from the registry,
// dropping selected ids that no longer have a line.
func (e *Engine) Hydrate(ctx context.Context) {
	e.mu.Lock()
	e.cart = e.deps.Store.Load(ctx)
	stored := e.deps.Selections.Load(e.deps.ClientID)
	e.selection = stored.restrictTo(e.cart)
	if e.selection.Len() != stored.Len() {
		e.deps.Selections.Store(e.deps.ClientID, e.selection)
	}
	e.mu.Unlock()
}

// Cart returns a copy of the current lines.
func (e *Engine) Cart() Cart {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart.Clone()
}

func (e *Engine) Selection() Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selection.Clone()
}

// SelectedPositions lists the positions of selected lines in cart order.
func (e *Engine) SelectedPositions() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	positions := make([]int, 0, e.selection.Len())
	for i, line := range e.cart {
		if e.selection.Has(line.ID) {
			positions = append(positions, i)
		}
	}
	return positions
}

func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart.Count()
}

func (e *Engine) Totals() Totals {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ComputeTotals(e.cart, e.selection)
}

// AddOrIncrement adds one unit of ref to the cart.
func (e *Engine) AddOrIncrement(ctx context.Context, ref ProductRef) error {
	if ref.ID.IsZero() {
		return e.fail(ctx, "add", pkgerrors.New(pkgerrors.CodeValidation, "product id is required"))
	}
	if ref.Price.IsNegative() {
		return e.fail(ctx, "add", pkgerrors.New(pkgerrors.CodeValidation, "product price must not be negative"))
	}

	e.mu.Lock()
	next := e.cart.withProduct(ref)
	err := e.commit(ctx, next, e.selection)
	e.mu.Unlock()
	if err != nil {
		return e.fail(ctx, "add", err)
	}

	name := strings.TrimSpace(ref.Name)
	if name == "" {
		name = "Product"
	}
	return e.succeed(ctx, "add", fmt.Sprintf("%s added to cart!", name))
}

// AddByID adds the catalog product with the given id.
func (e *Engine) AddByID(ctx context.Context, id types.ID) error {
	e.mu.Lock()
	catalog := e.deps.Catalog
	e.mu.Unlock()

	var (
		ref ProductRef
		ok  bool
	)
	if catalog != nil {
		ref, ok = catalog.Find(id)
	}
	if !ok {
		return e.fail(ctx, "add", pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", id)))
	}
	return e.AddOrIncrement(ctx, ref)
}

// ChangeQuantity adds delta to the line at pos; reaching zero removes it.
func (e *Engine) ChangeQuantity(ctx context.Context, pos, delta int) error {
	e.mu.Lock()
	if err := e.checkPosition(pos); err != nil {
		e.mu.Unlock()
		return e.fail(ctx, "change_quantity", err)
	}
	current := e.cart[pos].Quantity
	qty := current + delta
	if delta > 0 && qty < current {
		e.mu.Unlock()
		return e.fail(ctx, "change_quantity", pkgerrors.New(pkgerrors.CodeValidation, "quantity is too large"))
	}
	if qty <= 0 {
		e.mu.Unlock()
		return e.RemoveAt(ctx, pos)
	}
	next := e.cart.Clone()
	next[pos].Quantity = qty
	err := e.commit(ctx, next, e.selection)
	e.mu.Unlock()
	if err != nil {
		return e.fail(ctx, "change_quantity", err)
	}
	return e.succeed(ctx, "change_quantity", "Quantity updated!")
}

func (e *Engine) ChangeQuantityByID(ctx context.Context, id types.ID, delta int) error {
	return e.ChangeQuantity(ctx, e.positionOf(id), delta)
}

// RemoveAt deletes the line at pos. Its id leaves the selection; every other
// selected line stays selected.
func (e *Engine) RemoveAt(ctx context.Context, pos int) error {
	e.mu.Lock()
	if err := e.checkPosition(pos); err != nil {
		e.mu.Unlock()
		return e.fail(ctx, "remove", err)
	}
	removed := e.cart[pos].ID
	nextSel := e.selection.Clone()
	delete(nextSel, removed)
	err := e.commit(ctx, e.cart.without(pos), nextSel)
	e.mu.Unlock()
	if err != nil {
		return e.fail(ctx, "remove", err)
	}
	return e.succeed(ctx, "remove", "Product removed from cart!")
}

func (e *Engine) RemoveByID(ctx context.Context, id types.ID) error {
	return e.RemoveAt(ctx, e.positionOf(id))
}

// ToggleSelect marks or unmarks the line at pos for checkout. Selection is
// never persisted.
func (e *Engine) ToggleSelect(ctx context.Context, pos int, selected bool) error {
	e.mu.Lock()
	if err := e.checkPosition(pos); err != nil {
		e.mu.Unlock()
		return e.fail(ctx, "select", err)
	}
	next := e.selection.Clone()
	if selected {
		next[e.cart[pos].ID] = struct{}{}
	} else {
		delete(next, e.cart[pos].ID)
	}
	e.setSelection(next)
	e.mu.Unlock()

	e.observe("select", nil)
	e.sync(ctx)
	return nil
}

func (e *Engine) ToggleSelectByID(ctx context.Context, id types.ID, selected bool) error {
	return e.ToggleSelect(ctx, e.positionOf(id), selected)
}

// SelectAll selects every line, or none.
func (e *Engine) SelectAll(ctx context.Context, flag bool) {
	e.mu.Lock()
	next := Selection{}
	if flag {
		for _, line := range e.cart {
			next[line.ID] = struct{}{}
		}
	}
	e.setSelection(next)
	e.mu.Unlock()

	e.observe("select_all", nil)
	e.sync(ctx)
}

// Clear empties the cart and the selection and removes the storage entry.
func (e *Engine) Clear(ctx context.Context) error {
	e.mu.Lock()
	if err := e.deps.Store.Clear(ctx); err != nil {
		e.mu.Unlock()
		return e.fail(ctx, "clear", err)
	}
	e.cart = Cart{}
	e.setSelection(Selection{})
	e.mu.Unlock()
	return e.succeed(ctx, "clear", "Cart cleared!")
}

// Checkout stages the selected lines, in cart order, under
// selectedForCheckout. No order is placed.
func (e *Engine) Checkout(ctx context.Context) (Cart, error) {
	session := e.deps.Session
	if session == nil || !session.IsAuthenticated() {
		return nil, e.fail(ctx, "checkout", pkgerrors.New(pkgerrors.CodeNotAuthenticated, "Log in to check out!"))
	}

	e.mu.Lock()
	selected := make(Cart, 0, e.selection.Len())
	for _, line := range e.cart {
		if e.selection.Has(line.ID) {
			selected = append(selected, line)
		}
	}
	e.mu.Unlock()

	if len(selected) == 0 {
		return nil, e.fail(ctx, "checkout", pkgerrors.New(pkgerrors.CodeEmptySelection, "Select at least one item to check out!"))
	}
	if err := e.deps.Store.SaveCheckout(ctx, selected); err != nil {
		return nil, e.fail(ctx, "checkout", err)
	}

	msg := "Purchase completed successfully! (simulation)"
	if first := session.FirstName(); first != "" {
		msg = fmt.Sprintf("Purchase completed successfully, %s! (simulation)", first)
	}
	e.observe("checkout", nil)
	notify.Success(ctx, e.deps.Notifier, msg)
	return selected, nil
}

// SeedSample replaces the cart with two sample products for manual runs.
func (e *Engine) SeedSample(ctx context.Context) error {
	e.mu.Lock()
	err := e.commit(ctx, SampleCart(), Selection{})
	e.mu.Unlock()
	if err != nil {
		return e.fail(ctx, "seed", err)
	}
	return e.succeed(ctx, "seed", "Sample products added to cart!")
}

// SampleCart is the fixture used by SeedSample.
func SampleCart() Cart {
	return Cart{
		{
			ID:       "1",
			Name:     "Camiseta Básica Premium",
			Price:    decimal.RequireFromString("79.90"),
			Quantity: 2,
			Size:     "M",
			Color:    "Preto",
			Image:    "https://images.unsplash.com/photo-1521572163474-6864f9cf17ab?w=300&h=300&fit=crop",
			Category: "Masculino",
		},
		{
			ID:       "2",
			Name:     "Calça Jeans Slim",
			Price:    decimal.RequireFromString("129.90"),
			Quantity: 1,
			Size:     "42",
			Color:    "Azul Escuro",
			Image:    "https://images.unsplash.com/photo-1542272604-787c3835535d?w=300&h=300&fit=crop",
			Category: "Masculino",
		},
	}
}

// commit persists next and then installs it with sel. Callers hold e.mu.
func (e *Engine) commit(ctx context.Context, next Cart, sel Selection) error {
	if err := e.deps.Store.Save(ctx, next); err != nil {
		return err
	}
	e.cart = next
	e.setSelection(sel.restrictTo(next))
	return nil
}

// setSelection installs sel and mirrors it into the registry. Callers hold e.mu.
func (e *Engine) setSelection(sel Selection) {
	e.selection = sel
	e.deps.Selections.Store(e.deps.ClientID, sel)
}

// checkPosition validates pos against the current cart. Callers hold e.mu.
func (e *Engine) checkPosition(pos int) error {
	if pos < 0 || pos >= len(e.cart) {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no cart item at position %d", pos))
	}
	return nil
}

func (e *Engine) positionOf(id types.ID) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cart.IndexOf(id)
}

func (e *Engine) succeed(ctx context.Context, op, message string) error {
	e.observe(op, nil)
	e.sync(ctx)
	notify.Success(ctx, e.deps.Notifier, message)
	return nil
}

func (e *Engine) fail(ctx context.Context, op string, err error) error {
	e.observe(op, err)
	ctx = e.deps.Logger.WithFields(ctx, map[string]any{"op": op, "code": string(pkgerrors.CodeOf(err))})
	e.deps.Logger.Warn(ctx, "cart operation failed")
	notify.Failure(ctx, e.deps.Notifier, err)
	return err
}

func (e *Engine) observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = string(pkgerrors.CodeOf(err))
	}
	e.deps.Metrics.Observe(op, result)
}

func (e *Engine) sync(ctx context.Context) {
	e.mu.Lock()
	s := e.deps.Syncer
	e.mu.Unlock()
	if s != nil {
		s.Sync(ctx)
	}
}
