package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront/api/middleware"
	"github.com/angelmondragon/storefront/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}

// ClientPing echoes the client id the request was attributed to.
func ClientPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": "client", "status": "ok"}
		if id := middleware.ClientIDFromContext(r.Context()); id != "" {
			payload["client_id"] = id
		}
		responses.WriteSuccess(w, payload)
	}
}
