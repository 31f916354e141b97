package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Pietro923/Proyecto-Mel/internal/auth"
	"github.com/Pietro923/Proyecto-Mel/pkg/kit"
)

type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled bool
	MetricsToken   string
}

type Deps struct {
	AuthURL    string
	CatalogURL string
	SalesURL   string
	JWTSecret  string
}

const (
	readyTimeout      = 2 * time.Second
	readyProbeTimeout = 700 * time.Millisecond
)

var readyClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
	},
}

type upstream struct {
	name string
	url  string
}

func (d Deps) upstreams() []upstream {
	return []upstream{
		{name: "auth", url: d.AuthURL},
		{name: "catalog", url: d.CatalogURL},
		{name: "sales", url: d.SalesURL},
	}
}

func NewHandler(deps Deps, httpDeps HTTPDeps) (http.Handler, error) {
	proxies := make(map[string]http.Handler, 3)
	for _, up := range deps.upstreams() {
		p, err := NewReverseProxy(up.url, httpDeps.Log)
		if err != nil {
			return nil, fmt.Errorf("%s proxy: %w", up.name, err)
		}
		proxies[up.name] = p
	}

	jwt := auth.NewTokenMaker(deps.JWTSecret)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(kit.Recoverer)
	r.Use(kit.Logging(httpDeps.Log))
	kit.MountMetrics(r, httpDeps.Service, httpDeps.Registry, httpDeps.MetricsEnabled, httpDeps.MetricsToken)

	r.Get("/healthz", healthz)
	r.Get("/readyz", readyz(deps, httpDeps.Log))

	r.Group(func(pr chi.Router) {
		pr.Use(Authenticate(jwt))

		pr.Handle("/auth", proxies["auth"])
		pr.Handle("/auth/*", proxies["auth"])

		pr.Handle("/products", proxies["catalog"])
		pr.Handle("/products/*", proxies["catalog"])
		pr.Handle("/categories", proxies["catalog"])
		pr.Handle("/categories/*", proxies["catalog"])

		pr.Group(func(sr chi.Router) {
			sr.Use(RequireAuth)
			for _, prefix := range []string{"/sales", "/clients", "/sellers"} {
				sr.Handle(prefix, proxies["sales"])
				sr.Handle(prefix+"/*", proxies["sales"])
			}
		})
	})

	return r, nil
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func readyz(deps Deps, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		for _, up := range deps.upstreams() {
			if err := checkReady(ctx, up.url+"/readyz"); err != nil {
				if log != nil {
					log.Warn("readyz failed: "+up.name, zap.Error(err))
				}
				kit.WriteError(w, r, http.StatusServiceUnavailable, up.name+" not ready", nil)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
	}
}

func checkReady(ctx context.Context, url string) error {
	cctx, cancel := context.WithTimeout(ctx, readyProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := readyClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status=%d", resp.StatusCode)
	}

	return nil
}
