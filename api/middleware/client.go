package middleware

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront/pkg/logger"
)

const (
	ClientIDCookie = "sf_client"
	ClientIDHeader = "X-SF-Client"

	clientCookieMaxAge = 365 * 24 * time.Hour
)

var clientIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

// ClientID identifies the shopper. The header wins over the cookie; a missing
// or malformed id is replaced with a fresh one, which is set as a cookie and
// echoed in the response header.
func ClientID(secureCookie bool, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(ClientIDHeader))
			if id == "" {
				if c, err := r.Cookie(ClientIDCookie); err == nil {
					id = strings.TrimSpace(c.Value)
				}
			}

			if !clientIDPattern.MatchString(id) {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     ClientIDCookie,
					Value:    id,
					Path:     "/",
					MaxAge:   int(clientCookieMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   secureCookie,
					SameSite: http.SameSiteLaxMode,
				})
			}
			w.Header().Set(ClientIDHeader, id)

			ctx := WithClientID(r.Context(), id)
			if logg != nil {
				ctx = logg.WithClientID(ctx, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
