package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/rs/cors"
)

// Headers the dashboard reads back from API responses.
var exposedHeaders = []string{"Content-Disposition", requestIDHeader, "X-Export-Count"}

// corsOptions builds the policy for the configured origins. Origins are compared without a
// trailing slash and case-insensitively. An explicit allow-list lets the dashboard send
// credentials; a wildcard never does.
func corsOptions(origins []string) cors.Options {
	allowed := make([]string, 0, len(origins))
	wildcard := false
	for _, o := range origins {
		o = strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
		switch {
		case o == "":
		case o == "*":
			wildcard = true
		case !slices.Contains(allowed, o):
			allowed = append(allowed, o)
		}
	}
	if wildcard || len(allowed) == 0 {
		wildcard, allowed = true, []string{"*"}
	}

	return cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete,
		},
		AllowedHeaders:   []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: !wildcard,
		MaxAge:           600,
	}
}

func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.New(corsOptions(origins)).Handler
}
