package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	"github.com/angelmondragon/storefront/internal/catalog"
	"github.com/angelmondragon/storefront/internal/page"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/pagination"
	"github.com/angelmondragon/storefront/pkg/storefrontapi"
)

type productCard struct {
	storefrontapi.Product
	DiscountPercent int64 `json:"discountPercent,omitempty"`
}

type productsResponse struct {
	Status     catalog.Status `json:"status"`
	Products   []productCard  `json:"products"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

// ProductsList returns the catalog filtered and sorted by the query. An
// upstream failure yields status "failed" with no products, as the grid shows.
// Without limit or cursor the whole grid is returned.
func ProductsList(pages PageOpener, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query, err := parseCatalogQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{Limit: limit, Cursor: r.URL.Query().Get("cursor")}

		p, ok := loadPage(w, r, pages, page.KindProducts, logg)
		if !ok {
			return
		}
		view := p.Catalog().View(query)

		cards := view.Cards
		var next string
		if params.Requested() {
			cards, next, err = pagination.Slice(cards, params)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
				return
			}
		}

		out := productsResponse{Status: view.Status, Products: make([]productCard, 0, len(cards)), NextCursor: next}
		for _, c := range cards {
			out.Products = append(out.Products, productCard{Product: c.Product, DiscountPercent: c.DiscountPercent})
		}
		responses.WriteSuccess(w, out)
	}
}

// CategoriesList returns categories with their products, or an empty list
// when the upstream call fails.
func CategoriesList(src catalog.Source, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categories := catalog.New(src, logg).LoadCategoriesWithProducts(r.Context())
		responses.WriteSuccess(w, categories)
	}
}
