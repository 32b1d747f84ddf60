package middleware

import (
	"context"
	"net/http"

	"github.com/angelmondragon/storefront/api/responses"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// SessionChecker reports whether a client holds a complete session.
type SessionChecker interface {
	HasSession(ctx context.Context, clientID string) bool
}

// RequireSession guards account routes; requests without a session get
// NOT_AUTHENTICATED. It must run after ClientID.
func RequireSession(checker SessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			clientID := ClientIDFromContext(ctx)
			if clientID == "" || checker == nil || !checker.HasSession(ctx, clientID) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotAuthenticated, "Log in to continue"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
