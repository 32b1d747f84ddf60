package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront/api/controllers"
	"github.com/angelmondragon/storefront/api/middleware"
	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/page"
	"github.com/angelmondragon/storefront/internal/postal"
	"github.com/angelmondragon/storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/angelmondragon/storefront/pkg/storage"
	"github.com/angelmondragon/storefront/pkg/storefrontapi"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

// fakeUpstream serves the remote product and auth API.
func fakeUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/products", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id":1,"name":"Vestido","price":120,"oldPrice":150},{"id":2,"name":"Blusa","price":90}]`)
	})
	mux.HandleFunc("/categories/with-products", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id":1,"name":"Vestidos","products":[{"id":1,"name":"Vestido","price":120}]}]`)
	})
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body storefrontapi.Credentials
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"message":"Invalid email or password"}`)
			return
		}
		io.WriteString(w, `{"user":{"id":7,"name":"Ana Souza","email":"`+body.Email+`"},"token":"tok-7"}`)
	})
	mux.HandleFunc("/auth/register", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"user":{"id":8,"name":"Bia"},"message":"created"}`)
	})
	mux.HandleFunc("/ws/01001000/json/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"cep":"01001-000","logradouro":"Praça da Sé","bairro":"Sé","localidade":"São Paulo","uf":"SP"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestRouter(t *testing.T, env string) http.Handler {
	t.Helper()
	upstream := fakeUpstream(t)
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})

	cfg := &config.Config{App: config.AppConfig{Env: env}}
	api, err := storefrontapi.NewClient(upstream.URL)
	if err != nil {
		t.Fatalf("api client: %v", err)
	}
	reg := prometheus.NewRegistry()
	pages, err := page.NewFactory(page.Deps{
		Storage:    storage.NewMemory(),
		Selections: cart.NewSelectionRegistry(time.Hour),
		Source:     api,
		Auth:       api,
		Metrics:    metrics.NewCartMetrics(reg),
		Logger:     logg,
	})
	if err != nil {
		t.Fatalf("page factory: %v", err)
	}
	postalClient := postal.NewClient(postal.WithBaseURL(upstream.URL + "/ws"))

	return NewRouter(cfg, logg, pages, api, postalClient, nil,
		map[string]controllers.Pinger{"storage": stubPinger{}},
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	)
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func do(t *testing.T, h http.Handler, method, path, clientID, body string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if clientID != "" {
		req.Header.Set(middleware.ClientIDHeader, clientID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: decode: %v (%s)", method, path, err, rec.Body.String())
		}
	}
	return rec.Code, env
}

func snapshot(t *testing.T, raw json.RawMessage) page.Snapshot {
	t.Helper()
	var snap struct {
		Cart          cart.Cart `json:"cart"`
		Selected      []int     `json:"selectedPositions"`
		Authenticated bool      `json:"authenticated"`
		Notifications []struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"notifications"`
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	out := page.Snapshot{Cart: snap.Cart, Selected: snap.Selected, Authenticated: snap.Authenticated}
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestRouter(t, "dev")

	if code, _ := do(t, h, http.MethodGet, "/health/live", "", ""); code != http.StatusOK {
		t.Fatalf("live: %d", code)
	}
	if code, _ := do(t, h, http.MethodGet, "/health/ready", "", ""); code != http.StatusOK {
		t.Fatalf("ready: %d", code)
	}

	const client = "metrics-client-1"
	do(t, h, http.MethodPost, "/api/v1/cart/seed", client, "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if !strings.Contains(rec.Body.String(), "storefront_cart_operations_total") {
		t.Fatalf("expected cart metrics, got %s", rec.Body.String())
	}
}

func TestHealthReadyReportsFailingDependency(t *testing.T) {
	logg := logger.New(logger.Options{Output: io.Discard})
	handler := controllers.HealthReady(&config.Config{}, logg, map[string]controllers.Pinger{
		"redis": stubPinger{err: errors.New("down")},
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestCartFlow(t *testing.T) {
	h := newTestRouter(t, "dev")
	const client = "cart-client-01"

	code, env := do(t, h, http.MethodPost, "/api/v1/cart/items", client, `{"productId":1}`)
	if code != http.StatusOK {
		t.Fatalf("add by id: %d %+v", code, env.Error)
	}
	do(t, h, http.MethodPost, "/api/v1/cart/items", client, `{"product":{"id":3,"name":"Saia","price":40}}`)
	do(t, h, http.MethodPost, "/api/v1/cart/items", client, `{"productId":"1"}`)

	code, env = do(t, h, http.MethodGet, "/api/v1/cart", client, "")
	if code != http.StatusOK {
		t.Fatalf("view: %d", code)
	}
	snap := snapshot(t, env.Data)
	if len(snap.Cart) != 2 || snap.Cart[0].Quantity != 2 || snap.Cart[1].Name != "Saia" {
		t.Fatalf("unexpected cart %+v", snap.Cart)
	}

	do(t, h, http.MethodPut, "/api/v1/cart/items/1/selection", client, `{"selected":true}`)
	code, env = do(t, h, http.MethodPatch, "/api/v1/cart/items/0", client, `{"delta":-2}`)
	if code != http.StatusOK {
		t.Fatalf("decrement: %d %+v", code, env.Error)
	}
	snap = snapshot(t, env.Data)
	if len(snap.Cart) != 1 || len(snap.Selected) != 1 || snap.Selected[0] != 0 {
		t.Fatalf("selection should follow the remaining line, got cart=%+v selected=%v", snap.Cart, snap.Selected)
	}

	code, env = do(t, h, http.MethodDelete, "/api/v1/cart/items/5", client, "")
	if code != http.StatusNotFound || env.Error == nil {
		t.Fatalf("expected 404 for bad position, got %d", code)
	}
	if snapshot(t, env.Data).Cart == nil {
		t.Fatal("error responses should still carry the page")
	}

	code, _ = do(t, h, http.MethodPatch, "/api/v1/cart/items/x", client, `{"delta":1}`)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric position, got %d", code)
	}

	code, env = do(t, h, http.MethodDelete, "/api/v1/cart", client, "")
	if code != http.StatusOK || len(snapshot(t, env.Data).Cart) != 0 {
		t.Fatalf("clear failed: %d", code)
	}
}

func TestCheckoutRequiresLoginAndSelection(t *testing.T) {
	h := newTestRouter(t, "dev")
	const client = "checkout-client"

	do(t, h, http.MethodPost, "/api/v1/cart/seed", client, "")

	code, env := do(t, h, http.MethodPost, "/api/v1/cart/checkout", client, "")
	if code != http.StatusUnauthorized || env.Error.Code != string(pkgerrors.CodeNotAuthenticated) {
		t.Fatalf("expected NOT_AUTHENTICATED, got %d %+v", code, env.Error)
	}

	code, env = do(t, h, http.MethodPost, "/api/v1/auth/login", client, `{"email":"ana@example.com","password":"wrong"}`)
	if code != http.StatusUnauthorized || env.Error.Message != "Invalid email or password" {
		t.Fatalf("expected upstream message, got %d %+v", code, env.Error)
	}

	code, env = do(t, h, http.MethodPost, "/api/v1/auth/login", client, `{"email":"ana@example.com","password":"secret"}`)
	if code != http.StatusOK || !snapshot(t, env.Data).Authenticated {
		t.Fatalf("login failed: %d %+v", code, env.Error)
	}

	code, env = do(t, h, http.MethodPost, "/api/v1/cart/checkout", client, "")
	if code != http.StatusUnprocessableEntity || env.Error.Code != string(pkgerrors.CodeEmptySelection) {
		t.Fatalf("expected EMPTY_SELECTION, got %d %+v", code, env.Error)
	}

	do(t, h, http.MethodPut, "/api/v1/cart/selection", client, `{"all":true}`)
	code, env = do(t, h, http.MethodPost, "/api/v1/cart/checkout", client, "")
	if code != http.StatusOK {
		t.Fatalf("checkout: %d %+v", code, env.Error)
	}
	var out struct {
		Items cart.Cart `json:"items"`
	}
	if err := json.Unmarshal(env.Data, &out); err != nil || len(out.Items) != 2 {
		t.Fatalf("expected two staged items, got %+v (%v)", out.Items, err)
	}

	code, _ = do(t, h, http.MethodGet, "/api/v1/account", client, "")
	if code != http.StatusOK {
		t.Fatalf("account: %d", code)
	}

	do(t, h, http.MethodPost, "/api/v1/auth/logout", client, "")
	code, _ = do(t, h, http.MethodGet, "/api/v1/account", client, "")
	if code != http.StatusUnauthorized {
		t.Fatalf("account after logout: %d", code)
	}
}

func TestRegisterDoesNotLogIn(t *testing.T) {
	h := newTestRouter(t, "dev")

	code, env := do(t, h, http.MethodPost, "/api/v1/auth/register", "register-client", `{"name":"Bia","email":"bia@example.com","cpf":"000"}`)
	if code != http.StatusOK || snapshot(t, env.Data).Authenticated {
		t.Fatalf("register: %d %+v", code, env.Error)
	}

	code, _ = do(t, h, http.MethodPost, "/api/v1/auth/register", "register-client", `{"name":"Bia"}`)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 without email, got %d", code)
	}
}

func TestProductsAndCategories(t *testing.T) {
	h := newTestRouter(t, "dev")

	code, env := do(t, h, http.MethodGet, "/api/v1/products?sort=price-asc", "products-client", "")
	if code != http.StatusOK {
		t.Fatalf("products: %d", code)
	}
	var products struct {
		Status   string `json:"status"`
		Products []struct {
			Name            string `json:"name"`
			DiscountPercent int64  `json:"discountPercent"`
		} `json:"products"`
	}
	if err := json.Unmarshal(env.Data, &products); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if products.Status != "ready" || len(products.Products) != 2 || products.Products[0].Name != "Blusa" || products.Products[1].DiscountPercent != 20 {
		t.Fatalf("unexpected products %+v", products)
	}

	if code, _ := do(t, h, http.MethodGet, "/api/v1/products?sort=rating", "products-client", ""); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown sort, got %d", code)
	}

	code, env = do(t, h, http.MethodGet, "/api/public/categories", "", "")
	if code != http.StatusOK || !strings.Contains(string(env.Data), "Vestidos") {
		t.Fatalf("categories: %d %s", code, env.Data)
	}

	code, env = do(t, h, http.MethodGet, "/api/v1/pages/products", "products-client", "")
	if code != http.StatusOK || !strings.Contains(string(env.Data), "products-grid") {
		t.Fatalf("products page: %d", code)
	}
	if code, _ := do(t, h, http.MethodGet, "/api/v1/pages/admin", "products-client", ""); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown page, got %d", code)
	}
}

func TestPostalLookupRoute(t *testing.T) {
	h := newTestRouter(t, "dev")

	code, env := do(t, h, http.MethodGet, "/api/public/postal/01001-000", "", "")
	if code != http.StatusOK || !strings.Contains(string(env.Data), "São Paulo") {
		t.Fatalf("postal: %d %s", code, env.Data)
	}
	if code, _ := do(t, h, http.MethodGet, "/api/public/postal/123", "", ""); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for short cep, got %d", code)
	}
}

func TestSeedRouteAbsentInProd(t *testing.T) {
	h := newTestRouter(t, "prod")
	code, _ := do(t, h, http.MethodPost, "/api/v1/cart/seed", "prod-client-1", "")
	if code != http.StatusNotFound && code != http.StatusMethodNotAllowed {
		t.Fatalf("seed should not be routed in prod, got %d", code)
	}
}

func TestProductsPagination(t *testing.T) {
	h := newTestRouter(t, "dev")
	type pageOut struct {
		Products []struct {
			Name string `json:"name"`
		} `json:"products"`
		NextCursor string `json:"nextCursor"`
	}

	code, env := do(t, h, http.MethodGet, "/api/v1/products?sort=price-asc&limit=1", "paging-client", "")
	if code != http.StatusOK {
		t.Fatalf("first page: %d", code)
	}
	var first pageOut
	if err := json.Unmarshal(env.Data, &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(first.Products) != 1 || first.Products[0].Name != "Blusa" || first.NextCursor == "" {
		t.Fatalf("unexpected first page %+v", first)
	}

	code, env = do(t, h, http.MethodGet, "/api/v1/products?sort=price-asc&limit=1&cursor="+first.NextCursor, "paging-client", "")
	if code != http.StatusOK {
		t.Fatalf("second page: %d", code)
	}
	var second pageOut
	if err := json.Unmarshal(env.Data, &second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(second.Products) != 1 || second.Products[0].Name != "Vestido" || second.NextCursor != "" {
		t.Fatalf("unexpected second page %+v", second)
	}

	if code, _ := do(t, h, http.MethodGet, "/api/v1/products?limit=0", "paging-client", ""); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for limit=0, got %d", code)
	}
	if code, _ := do(t, h, http.MethodGet, "/api/v1/products?cursor=bogus", "paging-client", ""); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad cursor, got %d", code)
	}
}

func TestPageKindsRoute(t *testing.T) {
	h := newTestRouter(t, "dev")

	for _, tc := range []struct {
		kind    string
		present string
		absent  string
	}{
		{kind: "home", present: `"products-grid"`, absent: `"cart-items"`},
		{kind: "products", present: `"products-grid"`, absent: `"cart-items"`},
		{kind: "cart", present: `"cart-items"`, absent: `"products-grid"`},
		{kind: "checkout", present: `"selected-items-total"`, absent: `"products-grid"`},
		{kind: "login", present: `"header-login-btn"`, absent: `"checkout-btn"`},
	} {
		code, env := do(t, h, http.MethodGet, "/api/v1/pages/"+tc.kind, "pages-client-1", "")
		if code != http.StatusOK {
			t.Fatalf("%s page: %d %+v", tc.kind, code, env.Error)
		}
		body := string(env.Data)
		if !strings.Contains(body, `"page":"`+tc.kind+`"`) || !strings.Contains(body, tc.present) || strings.Contains(body, tc.absent) {
			t.Fatalf("%s page carries the wrong elements: %s", tc.kind, body)
		}
	}
}

func TestCartOperationsByProductID(t *testing.T) {
	h := newTestRouter(t, "dev")
	const client = "cart-by-id-client"

	do(t, h, http.MethodPost, "/api/v1/cart/seed", client, "")

	code, env := do(t, h, http.MethodPatch, "/api/v1/cart/products/2", client, `{"delta":2}`)
	if code != http.StatusOK {
		t.Fatalf("change by id: %d %+v", code, env.Error)
	}
	if snap := snapshot(t, env.Data); snap.Cart[1].Quantity != 3 {
		t.Fatalf("expected quantity 3, got %+v", snap.Cart)
	}

	code, env = do(t, h, http.MethodPut, "/api/v1/cart/products/2/selection", client, `{"selected":true}`)
	if code != http.StatusOK || len(snapshot(t, env.Data).Selected) != 1 {
		t.Fatalf("select by id: %d %+v", code, env.Error)
	}

	code, env = do(t, h, http.MethodDelete, "/api/v1/cart/products/1", client, "")
	snap := snapshot(t, env.Data)
	if code != http.StatusOK || len(snap.Cart) != 1 || len(snap.Selected) != 1 || snap.Selected[0] != 0 {
		t.Fatalf("remove by id: %d cart=%+v selected=%v", code, snap.Cart, snap.Selected)
	}

	if code, _ := do(t, h, http.MethodDelete, "/api/v1/cart/products/99", client, ""); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown product, got %d", code)
	}
}

func TestQuantityDeltaIsBounded(t *testing.T) {
	h := newTestRouter(t, "dev")
	const client = "delta-bound-client"

	do(t, h, http.MethodPost, "/api/v1/cart/seed", client, "")

	for _, body := range []string{`{"delta":9223372036854775807}`, `{"delta":10001}`, `{"delta":-10001}`} {
		code, _ := do(t, h, http.MethodPatch, "/api/v1/cart/items/0", client, body)
		if code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", body, code)
		}
	}

	code, env := do(t, h, http.MethodGet, "/api/v1/cart", client, "")
	if code != http.StatusOK || len(snapshot(t, env.Data).Cart) != 2 {
		t.Fatalf("rejected deltas must leave the cart alone: %d", code)
	}
}
