package kit

import (
	"context"
	"net/http"
	"strings"
)

// Identity headers set by the gateway after it has verified a bearer token.
// Client supplied values are stripped at the edge.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderUserRole  = "X-User-Role"
)

type ctxKey string

const userKey ctxKey = "user"

type User struct {
	ID    string
	Email string
	Role  string
}

func (u User) Anonymous() bool { return u.ID == "" }

func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey).(User)
	return u, ok && !u.Anonymous()
}

func userFromHeaders(r *http.Request) User {
	return User{
		ID:    strings.TrimSpace(r.Header.Get(HeaderUserID)),
		Email: strings.TrimSpace(r.Header.Get(HeaderUserEmail)),
		Role:  strings.TrimSpace(r.Header.Get(HeaderUserRole)),
	}
}

// ReadUserHeaders stores the caller identity in the request context when the
// gateway supplied one. Anonymous requests pass through.
func ReadUserHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := userFromHeaders(r)
		if u.Anonymous() {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

// RequireUserHeaders rejects requests that carry no caller identity.
func RequireUserHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := userFromHeaders(r)
		if u.Anonymous() {
			WriteError(w, r, http.StatusUnauthorized, "no user", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

// SetUserHeaders replaces any identity headers in h with u.
func SetUserHeaders(h http.Header, u User) {
	h.Del(HeaderUserID)
	h.Del(HeaderUserEmail)
	h.Del(HeaderUserRole)

	if u.Anonymous() {
		return
	}
	h.Set(HeaderUserID, u.ID)
	if u.Email != "" {
		h.Set(HeaderUserEmail, u.Email)
	}
	if u.Role != "" {
		h.Set(HeaderUserRole, u.Role)
	}
}
