package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront/api/middleware"
	"github.com/angelmondragon/storefront/api/responses"
	"github.com/angelmondragon/storefront/api/validators"
	"github.com/angelmondragon/storefront/internal/page"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthLogin proxies the login call and stores the session for the client.
func AuthLogin(pages PageOpener, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body loginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		p, ok := loadPage(w, r, pages, page.KindCart, logg)
		if !ok {
			return
		}
		_, err := p.Session().Login(r.Context(), body.Email, body.Password)
		writePage(r.Context(), logg, w, p, err)
	}
}

// AuthRegister forwards the registration fields unchanged. The shopper is
// only logged in when the API also returns a token.
func AuthRegister(pages PageOpener, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields, err := validators.DecodeJSONObject(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := validators.ValidateField("email", fields["email"], "required,email"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		p, ok := loadPage(w, r, pages, page.KindCart, logg)
		if !ok {
			return
		}
		_, err = p.Session().Register(r.Context(), fields)
		writePage(r.Context(), logg, w, p, err)
	}
}

// AuthLogout clears the client's session. No upstream call is made.
func AuthLogout(pages PageOpener, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := loadPage(w, r, pages, page.KindCart, logg)
		if !ok {
			return
		}
		writePage(r.Context(), logg, w, p, p.Session().Logout(r.Context()))
	}
}

// AccountMe returns the logged-in user. Routed behind RequireSession.
func AccountMe(pages PageOpener, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := loadPage(w, r, pages, page.KindCart, logg)
		if !ok {
			return
		}
		user := p.Session().CurrentUser()
		if user == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotAuthenticated, "Log in to continue"))
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"clientId": middleware.ClientIDFromContext(r.Context()),
			"user":     user,
		})
	}
}
