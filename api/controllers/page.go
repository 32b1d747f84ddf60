package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront/api/middleware"
	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	"github.com/angelmondragon/storefront/internal/catalog"
	"github.com/angelmondragon/storefront/internal/page"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// PageOpener builds the page of one shopper.
type PageOpener interface {
	Open(clientID string, kind page.Kind) (*page.Page, error)
}

// PageView returns the projected state of one storefront page.
func PageView(pages PageOpener, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, ok := page.ParseKind(chi.URLParam(r, "kind"))
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "unknown page"))
			return
		}
		query, err := parseCatalogQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		p, ok := loadPage(w, r, pages, kind, logg)
		if !ok {
			return
		}
		if kind.ShowsGrid() {
			p.SetQuery(r.Context(), query)
		}
		writePage(r.Context(), logg, w, p, nil)
	}
}

func parseCatalogQuery(r *http.Request) (catalog.Query, error) {
	sortBy, err := validators.ParseQueryChoice(r, "sort", catalog.SortName, catalog.SortName, catalog.SortPriceAsc, catalog.SortPriceDesc)
	if err != nil {
		return catalog.Query{}, err
	}
	return catalog.Query{
		Sort:     sortBy,
		Category: validators.SanitizeString(r.URL.Query().Get("category"), 64),
	}, nil
}

// loadPage opens and hydrates the caller's page, writing the error response
// itself when that fails.
func loadPage(w http.ResponseWriter, r *http.Request, pages PageOpener, kind page.Kind, logg *logger.Logger) (*page.Page, bool) {
	if pages == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "page factory unavailable"))
		return nil, false
	}
	p, err := pages.Open(middleware.ClientIDFromContext(r.Context()), kind)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "open page"))
		return nil, false
	}
	p.Load(r.Context())
	return p, true
}

// writePage answers a page event. Failures keep the page state in the body
// so the shopper still sees the cart as it is.
func writePage(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, p *page.Page, err error) {
	if err != nil {
		responses.WriteErrorWithData(ctx, logg, w, err, p.Snapshot())
		return
	}
	responses.WriteSuccess(w, p.Snapshot())
}
