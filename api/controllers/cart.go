package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/catalog"
	"github.com/angelmondragon/storefront/internal/page"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/storefrontapi"
	"github.com/angelmondragon/storefront/pkg/types"
)

type addItemRequest struct {
	ProductID types.ID               `json:"productId"`
	Product   *storefrontapi.Product `json:"product"`
}

type quantityRequest struct {
	Delta int `json:"delta" validate:"required,min=-10000,max=10000"`
}

type selectRequest struct {
	Selected *bool `json:"selected" validate:"required"`
}

type selectAllRequest struct {
	All *bool `json:"all" validate:"required"`
}

type checkoutResponse struct {
	Page  page.Snapshot `json:"page"`
	Items cart.Cart     `json:"items"`
}

// CartView returns the cart page.
func CartView(pages PageOpener, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := loadPage(w, r, pages, page.KindCart, logg)
		if !ok {
			return
		}
		writePage(r.Context(), logg, w, p, nil)
	}
}

// CartAddItem adds one unit of a product. A full product payload is added as
// sent; a bare productId is resolved against the catalog.
func CartAddItem(pages PageOpener, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body addItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if body.Product == nil && body.ProductID.IsZero() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "productId or product is required"))
			return
		}

		p, ok := loadPage(w, r, pages, page.KindCart, logg)
		if !ok {
			return
		}

		var err error
		if body.Product != nil {
			err = p.Cart().AddOrIncrement(r.Context(), catalog.ToRef(*body.Product))
		} else if err = p.EnsureCatalog(r.Context()); err == nil {
			err = p.Cart().AddByID(r.Context(), body.ProductID)
		}
		writePage(r.Context(), logg, w, p, err)
	}
}

// CartChangeQuantity adds delta to the line at {position}.
func CartChangeQuantity(pages PageOpener, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pos, err := validators.ParsePathPosition(r, "position")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body quantityRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		p, ok := loadPage(w, r, pages, page.KindCart, logg)
		if !ok {
			return
		}
		writePage(r.Context(), logg, w, p, p.Cart().ChangeQuantity(r.Context(), pos, body.Delta))
	}
}

// CartChangeQuantityByID adds delta to the line holding {productID}.
func CartChangeQuantityByID(pages PageOpener, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathID(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body quantityRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		p, ok := loadPage(w, r, pages, page.KindCart, logg)
		if !ok {
			return
		}
		writePage(r.Context(), logg, w, p, p.Cart().ChangeQuantityByID(r.Context(), id, body.Delta))
	}
}

func CartRemoveItem(pages PageOpener, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pos, err := validators.ParsePathPosition(r, "position")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		p, ok := loadPage(w, r, pages, page.KindCart, logg)
		if !ok {
			return
		}
		writePage(r.Context(), logg, w, p, p.Cart().RemoveAt(r.Context(), pos))
	}
}

func CartRemoveByID(pages PageOpener, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathID(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		p, ok := loadPage(w, r, pages, page.KindCart, logg)
		if !ok {
			return
		}
		writePage(r.Context(), logg, w, p, p.Cart().RemoveByID(r.Context(), id))
	}
}

// CartSelectItem marks or unmarks one line for checkout.
func CartSelectItem(pages PageOpener, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pos, err := validators.ParsePathPosition(r, "position")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body selectRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		p, ok := loadPage(w, r, pages, page.KindCart, logg)
		if !ok {
			return
		}
		writePage(r.Context(), logg, w, p, p.Cart().ToggleSelect(r.Context(), pos, *body.Selected))
	}
}

func CartSelectByID(pages PageOpener, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathID(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body selectRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		p, ok := loadPage(w, r, pages, page.KindCart, logg)
		if !ok {
			return
		}
		writePage(r.Context(), logg, w, p, p.Cart().ToggleSelectByID(r.Context(), id, *body.Selected))
	}
}

func CartSelectAll(pages PageOpener, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body selectAllRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		p, ok := loadPage(w, r, pages, page.KindCart, logg)
		if !ok {
			return
		}
		p.Cart().SelectAll(r.Context(), *body.All)
		writePage(r.Context(), logg, w, p, nil)
	}
}

func CartClear(pages PageOpener, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := loadPage(w, r, pages, page.KindCart, logg)
		if !ok {
			return
		}
		writePage(r.Context(), logg, w, p, p.Cart().Clear(r.Context()))
	}
}

// CartCheckout stages the selected lines. No order is placed.
func CartCheckout(pages PageOpener, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := loadPage(w, r, pages, page.KindCart, logg)
		if !ok {
			return
		}
		items, err := p.Cart().Checkout(r.Context())
		if err != nil {
			writePage(r.Context(), logg, w, p, err)
			return
		}
		responses.WriteSuccess(w, checkoutResponse{Page: p.Snapshot(), Items: items})
	}
}

// CartSeed replaces the cart with the sample products.
func CartSeed(pages PageOpener, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := loadPage(w, r, pages, page.KindCart, logg)
		if !ok {
			return
		}
		writePage(r.Context(), logg, w, p, p.Cart().SeedSample(r.Context()))
	}
}
