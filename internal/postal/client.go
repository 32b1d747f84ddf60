package postal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/metrics"
)

const (
	defaultBaseURL              = "https://viacep.com.br/ws"
	endpointLookup              = "postal_lookup"
	responseBodyReadLimit int64 = 4096
	cepLength                   = 8
)

// Address is the subset of a postal-code lookup the checkout form fills in.
type Address struct {
	PostalCode   string `json:"postalCode"`
	Street       string `json:"street"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
}

// Client resolves Brazilian postal codes (CEP) to addresses.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *metrics.RemoteMetrics
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

// WithBaseURL overrides the lookup service base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

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

func NewClient(opts ...Option) *Client {
	client := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

// Normalize strips every non-digit and reports whether eight digits remain.
func Normalize(cep string) (string, bool) {
	var b strings.Builder
	for _, r := range cep {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	return digits, len(digits) == cepLength
}

// Lookup resolves cep. Unknown codes yield NOT_FOUND; transport or upstream
// failures yield NETWORK_FAILURE.
func (c *Client) Lookup(ctx context.Context, cep string) (*Address, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "postal lookup not configured")
	}
	digits, ok := Normalize(cep)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "postal code must have 8 digits").
			WithDetails(map[string]any{"cep": cep})
	}

	url := fmt.Sprintf("%s/%s/json/", strings.TrimRight(c.baseURL, "/"), digits)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build postal lookup request")
	}
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(endpointLookup, 0, time.Since(started))
		return nil, pkgerrors.Wrap(pkgerrors.CodeNetworkFailure, err, "")
	}
	defer func() { _ = resp.Body.Close() }()
	c.metrics.ObserveRequest(endpointLookup, resp.StatusCode, time.Since(started))

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeNetworkFailure, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "")
	}

	var apiResp struct {
		Erro       any    `json:"erro"`
		Logradouro string `json:"logradouro"`
		Bairro     string `json:"bairro"`
		Localidade string `json:"localidade"`
		UF         string `json:"uf"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, responseBodyReadLimit)).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNetworkFailure, err, "")
	}
	if isErrorFlag(apiResp.Erro) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "postal code not found")
	}

	return &Address{
		PostalCode:   digits,
		Street:       apiResp.Logradouro,
		Neighborhood: apiResp.Bairro,
		City:         apiResp.Localidade,
		State:        apiResp.UF,
	}, nil
}

// isErrorFlag accepts both {"erro": true} and {"erro": "true"}.
func isErrorFlag(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return strings.EqualFold(val, "true")
	}
	return false
}
