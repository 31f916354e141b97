package kit

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// BearerToken extracts the token of an "Authorization: Bearer" header.
// present is false when the header is missing; ok is false when it is
// present but not a bearer credential.
func BearerToken(r *http.Request) (token string, present, ok bool) {
	authz := r.Header.Get("Authorization")
	if authz == "" {
		return "", false, false
	}
	token, found := strings.CutPrefix(authz, "Bearer ")
	if !found || token == "" {
		return "", true, false
	}
	return token, true, true
}

func tokenMatches(r *http.Request, want string) bool {
	got, _, ok := BearerToken(r)
	return ok && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// MetricsAuth guards /metrics with a static bearer token. An empty token
// disables the endpoint.
func MetricsAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" || !tokenMatches(r, token) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ServiceAuth guards service-to-service routes. With an empty token the
// routes are open and reachability is left to the network; otherwise the
// caller must present the shared token.
func ServiceAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" && !tokenMatches(r, token) {
				WriteError(w, r, http.StatusUnauthorized, "service token required", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
