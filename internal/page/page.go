package page

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/catalog"
	"github.com/angelmondragon/storefront/internal/notify"
	"github.com/angelmondragon/storefront/internal/render"
	"github.com/angelmondragon/storefront/internal/session"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/angelmondragon/storefront/pkg/storage"
	"github.com/angelmondragon/storefront/pkg/storefrontapi"
)

// Kind selects which element set a page exposes.
type Kind string

const (
	KindHome     Kind = "home"
	KindProducts Kind = "products"
	KindCart     Kind = "cart"
	KindCheckout Kind = "checkout"
	KindLogin    Kind = "login"
)

func (k Kind) ids() []string {
	switch k {
	case KindHome:
		return render.HomePageIDs
	case KindProducts:
		return render.ProductsPageIDs
	case KindCheckout:
		return render.CheckoutPageIDs
	case KindLogin:
		return render.LoginPageIDs
	}
	return render.CartPageIDs
}

// ShowsGrid reports whether the page renders the product grid.
func (k Kind) ShowsGrid() bool {
	return k == KindHome || k == KindProducts
}

// ParseKind maps a route segment onto a Kind; unknown values are rejected.
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindHome, KindProducts, KindCart, KindCheckout, KindLogin:
		return k, true
	}
	return "", false
}

// Deps are shared by every page the factory builds.
type Deps struct {
	Storage    storage.Storage
	Selections *cart.SelectionRegistry
	Source     catalog.Source
	Auth       session.Authenticator
	Notifier   notify.Notifier
	Metrics    *metrics.CartMetrics
	Logger     *logger.Logger
}

// Factory builds one Page per shopper event.
type Factory struct {
	deps Deps
}

func NewFactory(deps Deps) (*Factory, error) {
	if deps.Storage == nil {
		return nil, errors.New("page storage required")
	}
	if deps.Selections == nil {
		return nil, errors.New("selection registry required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &Factory{deps: deps}, nil
}

// Selections exposes the shared registry so callers can sweep it.
func (f *Factory) Selections() *cart.SelectionRegistry { return f.deps.Selections }

// Open wires the stores of clientID's page. Nothing is read until Load.
func (f *Factory) Open(clientID string, kind Kind) (*Page, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, errors.New("client id required")
	}
	if kind == "" {
		kind = KindCart
	}

	kv := storage.Namespaced(f.deps.Storage, clientID)
	recorder := &notify.Recorder{}
	notifier := notify.Multi{recorder, f.deps.Notifier}

	p := &Page{
		clientID:  clientID,
		kind:      kind,
		logg:      f.deps.Logger,
		notes:     recorder,
		doc:       render.NewDocument(kind.ids()...),
		projector: render.NewProjector(f.deps.Logger),
		catalog:   catalog.New(f.deps.Source, f.deps.Logger),
	}
	p.session = session.NewStore(kv, f.deps.Auth, notifier, f.deps.Logger)

	engine, err := cart.NewEngine(cart.Deps{
		Store:      cart.NewStore(kv, f.deps.Logger),
		Selections: f.deps.Selections,
		ClientID:   clientID,
		Catalog:    p.catalog,
		Session:    p.session,
		Notifier:   notifier,
		Metrics:    f.deps.Metrics,
		Logger:     f.deps.Logger,
	})
	if err != nil {
		return nil, err
	}
	p.cart = engine

	p.session.SetSyncer(p)
	p.cart.SetSyncer(p)
	return p, nil
}

// HasSession reports whether clientID holds a complete session. A partial
// one is cleared by the hydration.
func (f *Factory) HasSession(ctx context.Context, clientID string) bool {
	p, err := f.Open(clientID, KindCart)
	if err != nil {
		return false
	}
	p.session.Hydrate(ctx)
	return p.session.IsAuthenticated()
}

// Page is one shopper's view: session, cart, catalog and the projected
// document. It lives for a single page event.
type Page struct {
	clientID string
	kind     Kind
	logg     *logger.Logger

	session   *session.Store
	cart      *cart.Engine
	catalog   *catalog.Catalog
	projector *render.Projector
	doc       *render.Document
	notes     *notify.Recorder

	mu    sync.Mutex
	query catalog.Query
}

func (p *Page) ClientID() string { return p.clientID }
func (p *Page) Kind() Kind { return p.kind }
func (p *Page) Session() *session.Store { return p.session }
func (p *Page) Cart() *cart.Engine { return p.cart }
func (p *Page) Catalog() *catalog.Catalog { return p.catalog }
func (p *Page) Document() *render.Document { return p.doc }
func (p *Page) Notifications() []notify.Notification {
	return p.notes.All()
}

// Load hydrates the session, then the cart, then projects both. A products
// page also fetches the catalog; that failure shows in the grid and is not
// returned.
func (p *Page) Load(ctx context.Context) {
	ctx = p.logg.WithClientID(ctx, p.clientID)
	p.session.Hydrate(ctx)
	p.cart.Hydrate(ctx)
	if p.kind.ShowsGrid() {
		_ = p.catalog.LoadProducts(p.remoteContext(ctx))
	}
	p.Sync(ctx)
}

// EnsureCatalog loads the product list if this page has not yet.
func (p *Page) EnsureCatalog(ctx context.Context) error {
	if p.catalog.Loaded() {
		return nil
	}
	return p.catalog.LoadProducts(p.remoteContext(ctx))
}

// remoteContext forwards the session token to the product API.
func (p *Page) remoteContext(ctx context.Context) context.Context {
	return storefrontapi.ContextWithToken(ctx, p.session.Token())
}

// SetQuery changes the grid filter and re-projects.
func (p *Page) SetQuery(ctx context.Context, q catalog.Query) {
	p.mu.Lock()
	p.query = q
	p.mu.Unlock()
	p.Sync(ctx)
}

// Sync projects the current state into the document.
func (p *Page) Sync(ctx context.Context) {
	p.projector.Sync(ctx, p.doc, p.state())
}

func (p *Page) state() render.State {
	st := render.State{
		Authenticated: p.session.IsAuthenticated(),
		FirstName:     p.session.FirstName(),
		Cart:          p.cart.Cart(),
		Selection:     p.cart.Selection(),
	}
	if p.kind.ShowsGrid() {
		p.mu.Lock()
		q := p.query
		p.mu.Unlock()
		view := p.catalog.View(q)
		st.Catalog = &view
	}
	return st
}

// Snapshot is what a page event returns to the shopper.
type Snapshot struct {
	ClientID      string                `json:"clientId"`
	Page          Kind                  `json:"page"`
	Authenticated bool                  `json:"authenticated"`
	User          *session.User         `json:"user,omitempty"`
	Cart          cart.Cart             `json:"cart"`
	Selected      []int                 `json:"selectedPositions"`
	Totals        cart.Totals           `json:"totals"`
	Document      *render.Document      `json:"document"`
	Notifications []notify.Notification `json:"notifications"`
}

func (p *Page) Snapshot() Snapshot {
	return Snapshot{
		ClientID:      p.clientID,
		Page:          p.kind,
		Authenticated: p.session.IsAuthenticated(),
		User:          p.session.CurrentUser(),
		Cart:          p.cart.Cart(),
		Selected:      p.cart.SelectedPositions(),
		Totals:        p.cart.Totals(),
		Document:      p.doc,
		Notifications: p.notes.All(),
	}
}
