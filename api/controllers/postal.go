package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/internal/postal"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

type postalLookup interface {
	Lookup(ctx context.Context, cep string) (*postal.Address, error)
}

// PostalLookup resolves a CEP to its street address.
func PostalLookup(client postalLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if client == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "postal lookup unavailable"))
			return
		}
		addr, err := client.Lookup(r.Context(), chi.URLParam(r, "cep"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, addr)
	}
}
