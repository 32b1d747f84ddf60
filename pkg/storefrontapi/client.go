package storefrontapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
	"github.com/angelmondragon/storefront/pkg/types"
)

const (
	defaultTimeout             = 10 * time.Second
	responseBodyReadLimit int64 = 1 << 20

	endpointLogin      = "auth_login"
	endpointRegister   = "auth_register"
	endpointProducts   = "products"
	endpointCategories = "categories_with_products"
)

var errBaseURLRequired = errors.New("storefront api base url is required")

// Client talks to the remote product, category and auth API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *metrics.RemoteMetrics
	logg       *logger.Logger
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

func WithMetrics(m *metrics.RemoteMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) { c.logg = logg }
}

// NewClient builds the API client for baseURL (e.g. http://localhost:3001/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}

	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.logg == nil {
		client.logg = logger.Nop()
	}
	return client, nil
}

type tokenCtxKey struct{}

// ContextWithToken makes requests issued with ctx carry the bearer token.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenCtxKey{}, token)
}

func tokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenCtxKey{}).(string)
	return token
}

// Product is one catalog entry as returned by GET /products.
type Product struct {
	ID          types.ID         `json:"id"`
	Name        string           `json:"name"`
	Price       decimal.Decimal  `json:"price"`
	OldPrice    *decimal.Decimal `json:"oldPrice,omitempty"`
	ImageURL    string           `json:"imageUrl,omitempty"`
	Description string           `json:"description,omitempty"`
	Category    string           `json:"category,omitempty"`
	Size        string           `json:"size,omitempty"`
	Color       string           `json:"color,omitempty"`
}

// Category groups products for GET /categories/with-products.
type Category struct {
	ID       types.ID  `json:"id"`
	Name     string    `json:"name"`
	Products []Product `json:"products"`
}

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is the body of a successful login or register call. User is
// kept raw so callers persist every field the API returns.
type AuthResponse struct {
	User    json.RawMessage `json:"user,omitempty"`
	Token   string          `json:"token,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Login posts credentials to /auth/login.
func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, endpointLogin, http.MethodPost, "/auth/login", creds, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register posts the registration fields to /auth/register unchanged.
func (c *Client) Register(ctx context.Context, fields map[string]any) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, endpointRegister, http.MethodPost, "/auth/register", fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Products fetches GET /products.
func (c *Client) Products(ctx context.Context) ([]Product, error) {
	var out []Product
	if err := c.do(ctx, endpointProducts, http.MethodGet, "/products", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CategoriesWithProducts fetches GET /categories/with-products.
func (c *Client) CategoriesWithProducts(ctx context.Context) ([]Category, error) {
	var out []Category
	if err := c.do(ctx, endpointCategories, http.MethodGet, "/categories/with-products", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, body any, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "storefront api client not configured")
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := tokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(endpoint, 0, time.Since(started))
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{"endpoint": endpoint, "error": err.Error()}), "storefront api unreachable")
		return pkgerrors.Wrap(pkgerrors.CodeNetworkFailure, err, "")
	}
	defer func() { _ = resp.Body.Close() }()
	c.metrics.ObserveRequest(endpoint, resp.StatusCode, time.Since(started))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNetworkFailure, err, "")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNetworkFailure, err, "unexpected response from server")
	}
	return nil
}

// statusError maps a non-2xx response onto a coded error carrying the
// server-provided message when the body has one.
func statusError(status int, raw []byte) error {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(raw, &body)
	message := strings.TrimSpace(body.Message)
	if message == "" {
		message = strings.TrimSpace(body.Error)
	}

	code := pkgerrors.CodeNetworkFailure
	switch {
	case status == http.StatusUnauthorized:
		code = pkgerrors.CodeUnauthorized
	case status == http.StatusNotFound:
		code = pkgerrors.CodeNotFound
	case status >= 400 && status < 500:
		code = pkgerrors.CodeValidation
	}
	return pkgerrors.Wrap(code, fmt.Errorf("status %d", status), message)
}
