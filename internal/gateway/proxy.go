package gateway

import (
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"

	"go.uber.org/zap"

	"github.com/Pietro923/Proyecto-Mel/internal/auth"
	"github.com/Pietro923/Proyecto-Mel/pkg/kit"
)

// Authenticate verifies an optional bearer token and replaces any client
// supplied identity headers with the ones derived from it. A request with a
// malformed or invalid token is rejected; one without a token continues
// anonymously.
func Authenticate(jwt *auth.TokenMaker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var u kit.User

			if token, present, ok := kit.BearerToken(r); present {
				if !ok {
					kit.WriteError(w, r, http.StatusUnauthorized, "invalid token", nil)
					return
				}
				claims, err := jwt.Parse(token)
				if err != nil {
					kit.WriteError(w, r, http.StatusUnauthorized, "invalid token", nil)
					return
				}
				u = claims.User()
			}

			kit.SetUserHeaders(r.Header, u)
			if u.Anonymous() {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(kit.WithUser(r.Context(), u)))
		})
	}
}

// RequireAuth rejects anonymous requests before they reach an upstream.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := kit.UserFromContext(r.Context()); !ok {
			kit.WriteError(w, r, http.StatusUnauthorized, "missing token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewReverseProxy forwards requests unchanged to target and answers 502 when
// the upstream cannot be reached.
func NewReverseProxy(target string, log *zap.Logger) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.New("upstream url must be absolute: " + target)
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(u)
			pr.SetXForwarded()
		},
		Transport: kit.TracedTransport(nil),
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Warn("upstream failed", zap.String("upstream", u.Host), zap.String("path", r.URL.Path), zap.Error(err))
			kit.WriteError(w, r, http.StatusBadGateway, "upstream unavailable", map[string]any{"upstream": u.Host})
		},
	}, nil
}
