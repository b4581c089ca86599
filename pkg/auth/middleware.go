package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// SessionCookie is the cookie a browser session carries its access token
// in. The Authorization header takes precedence when both are present.
const SessionCookie = "catalog_access_token"

// principalCtxKey is an unexported type used as the context key for Principal.
type principalCtxKey struct{}

// WithPrincipal returns a new context with the given Principal attached.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

// PrincipalFromContext retrieves the Principal from the context.
// Returns the zero value and false if no principal is set.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalCtxKey{}).(Principal)
	return p, ok
}

// Middleware returns HTTP middleware that extracts the bearer credential
// from the Authorization header or session cookie, parses it, and stores
// the Principal in the request context. Requests without a valid
// credential are rejected with 401.
func Middleware(parser *TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractCredential(r)
			if raw == "" {
				writeAuthError(w, "not authenticated")
				return
			}

			principal, err := parser.Parse(raw)
			if err != nil {
				writeAuthError(w, "access token is missing or invalid")
				return
			}

			ctx := WithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractCredential returns the bearer token from the Authorization
// header, falling back to the session cookie for browser requests.
func extractCredential(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}

	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthenticated",
		"message": message,
	})
}
