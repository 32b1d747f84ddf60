package storefrontapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/metrics"
)

func TestLoginSendsCredentialsAndDecodesSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/auth/login" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Fatalf("missing content type")
		}
		var creds Credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if creds.Email != "ana@example.com" || creds.Password != "secret" {
			t.Fatalf("unexpected credentials %+v", creds)
		}
		_, _ = io.WriteString(w, `{"user":{"id":1,"name":"Ana Souza","email":"ana@example.com"},"token":"tok-1"}`)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL + "/api/")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	resp, err := client.Login(context.Background(), Credentials{Email: "ana@example.com", Password: "secret"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Token != "tok-1" {
		t.Fatalf("unexpected token %q", resp.Token)
	}
	if !strings.Contains(string(resp.User), `"Ana Souza"`) {
		t.Fatalf("user payload not preserved: %s", resp.User)
	}
}

func TestErrorStatusesMapToCodes(t *testing.T) {
	tests := []struct {
		status  int
		body    string
		code    pkgerrors.Code
		message string
	}{
		{status: http.StatusUnauthorized, body: `{"message":"Email ou senha inválidos"}`, code: pkgerrors.CodeUnauthorized, message: "Email ou senha inválidos"},
		{status: http.StatusBadRequest, body: `{"message":"Email já cadastrado"}`, code: pkgerrors.CodeValidation, message: "Email já cadastrado"},
		{status: http.StatusNotFound, body: ``, code: pkgerrors.CodeNotFound},
		{status: http.StatusInternalServerError, body: `<html>oops</html>`, code: pkgerrors.CodeNetworkFailure},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = io.WriteString(w, tt.body)
		}))

		client, err := NewClient(srv.URL)
		if err != nil {
			t.Fatalf("new client: %v", err)
		}
		_, err = client.Register(context.Background(), map[string]any{"email": "ana@example.com"})
		srv.Close()

		typed := pkgerrors.As(err)
		if typed == nil {
			t.Fatalf("status %d: expected typed error, got %v", tt.status, err)
		}
		if typed.Code() != tt.code {
			t.Fatalf("status %d: expected %s got %s", tt.status, tt.code, typed.Code())
		}
		if typed.Message() != tt.message {
			t.Fatalf("status %d: expected message %q got %q", tt.status, tt.message, typed.Message())
		}
	}
}

func TestTransportFailureIsNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := NewClient(url)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Products(context.Background())
	if !pkgerrors.Is(err, pkgerrors.CodeNetworkFailure) {
		t.Fatalf("expected network failure, got %v", err)
	}
	if pkgerrors.UserMessage(err) != pkgerrors.MetadataFor(pkgerrors.CodeNetworkFailure).PublicMessage {
		t.Fatalf("expected generic connectivity message, got %q", pkgerrors.UserMessage(err))
	}
}

func TestProductsDecodesNumericAndStringFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-9" {
			t.Fatalf("expected bearer token, got %q", got)
		}
		_, _ = io.WriteString(w, `[{"id":1,"name":"Camiseta","price":59.9,"oldPrice":79.9,"imageUrl":"a.png"},{"id":"sku-2","name":"Boné","price":"35.00"}]`)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	client, err := NewClient(srv.URL, WithMetrics(metrics.NewRemoteMetrics(reg)))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	products, err := client.Products(ContextWithToken(context.Background(), "tok-9"))
	if err != nil {
		t.Fatalf("products: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(products))
	}
	if products[0].ID != "1" || products[0].OldPrice == nil || products[0].OldPrice.String() != "79.9" {
		t.Fatalf("unexpected first product %+v", products[0])
	}
	if products[1].ID != "sku-2" || products[1].Price.StringFixed(2) != "35.00" || products[1].OldPrice != nil {
		t.Fatalf("unexpected second product %+v", products[1])
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) != 1 || families[0].GetMetric()[0].GetHistogram().GetSampleCount() != 1 {
		t.Fatalf("expected one observed request")
	}
}

func TestCategoriesWithProducts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/categories/with-products" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `[{"id":3,"name":"Roupas","products":[{"id":1,"name":"Camiseta","price":59.9}]}]`)
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL)
	categories, err := client.CategoriesWithProducts(context.Background())
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if len(categories) != 1 || categories[0].Name != "Roupas" || len(categories[0].Products) != 1 {
		t.Fatalf("unexpected categories %+v", categories)
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient("  "); !errors.Is(err, errBaseURLRequired) {
		t.Fatalf("expected base url error, got %v", err)
	}
}

func TestNilClientIsDependencyError(t *testing.T) {
	var client *Client
	if _, err := client.Products(context.Background()); !pkgerrors.Is(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
