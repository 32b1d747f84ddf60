package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/types"
)

// ParsePathPosition reads a non-negative cart position from a route parameter.
func ParsePathPosition(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "position must be numeric").WithDetails(map[string]any{"field": key})
	}
	if value < 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "position out of range").WithDetails(map[string]any{"field": key, "min": 0})
	}
	return value, nil
}

// ParsePathID reads a product id from a route parameter.
func ParsePathID(r *http.Request, key string) (types.ID, error) {
	raw := SanitizeString(chi.URLParam(r, key), 64)
	if raw == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "id is required").WithDetails(map[string]any{"field": key})
	}
	return types.ID(raw), nil
}

// ParseQueryInt reads an optional integer query parameter bounded by min and max.
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// ParseQueryChoice returns the query value when it is one of allowed, the
// default when absent, and a validation error otherwise.
func ParseQueryChoice(r *http.Request, key, defaultVal string, allowed ...string) (string, error) {
	raw := strings.ToLower(strings.TrimSpace(r.URL.Query().Get(key)))
	if raw == "" {
		return defaultVal, nil
	}
	for _, a := range allowed {
		if raw == a {
			return raw, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, "query parameter not allowed").WithDetails(map[string]any{"field": key, "allowed": allowed})
}
