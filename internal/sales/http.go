package sales

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Pietro923/Proyecto-Mel/internal/domain"
	"github.com/Pietro923/Proyecto-Mel/pkg/kit"
)

type Server struct {
	Recorder *Recorder
	Clients  *Directory
	Sellers  *Directory
	Log      *zap.Logger
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", s.readyz)

	r.Group(func(pr chi.Router) {
		pr.Use(kit.RequireUserHeaders)

		pr.Get("/sales", s.list)
		pr.Post("/sales", s.register)
		pr.Get("/sales/summary", s.summary)

		pr.Get("/clients", s.listEntries(s.Clients))
		pr.Post("/clients", s.addEntry(s.Clients))
		pr.Get("/sellers", s.listEntries(s.Sellers))
		pr.Post("/sellers", s.addEntry(s.Sellers))
	})

	return r
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
	defer cancel()

	if err := s.Recorder.Store.Ping(ctx); err != nil {
		s.notReady(w, r, "store", err)
		return
	}
	if err := s.Recorder.Inventory.Ping(ctx); err != nil {
		s.notReady(w, r, "catalog", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) notReady(w http.ResponseWriter, r *http.Request, dep string, err error) {
	if s.Log != nil {
		s.Log.Warn("readyz failed", zap.String("dependency", dep), zap.Error(err))
	}
	kit.WriteError(w, r, http.StatusServiceUnavailable, dep+" not ready", nil)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	u, _ := kit.UserFromContext(r.Context())

	var req domain.SaleRequest
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteBadJSON(w, r, err)
		return
	}

	rc, err := s.Recorder.Register(r.Context(), u, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusCreated, rc)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	ledger, err := s.Recorder.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, ledger)
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.Recorder.Summary(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, sum)
}

func (s *Server) listEntries(d *Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := d.List(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		kit.WriteJSON(w, http.StatusOK, entries)
	}
}

func (s *Server) addEntry(d *Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, _ := kit.UserFromContext(r.Context())

		var req Entry
		if err := kit.DecodeJSON(w, r, &req); err != nil {
			kit.WriteBadJSON(w, r, err)
			return
		}

		e, created, err := d.Add(r.Context(), u, req.Name)
		if err != nil {
			writeError(w, r, err)
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		kit.WriteJSON(w, status, e)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve  *domain.ValidationError
		nf  *domain.ProductNotFoundError
		ise *domain.InsufficientStockError
		fe  *domain.ForbiddenError
		roe *domain.RemoteOperationError
	)

	switch {
	case errors.As(err, &ve):
		kit.WriteError(w, r, http.StatusBadRequest, ve.Error(), map[string]any{"field": ve.Field})
	case errors.As(err, &fe):
		kit.WriteError(w, r, http.StatusForbidden, "forbidden", map[string]any{"reason": fe.Error()})
	case errors.As(err, &nf):
		kit.WriteError(w, r, http.StatusNotFound, "product not found", map[string]any{"name": nf.Name})
	case errors.As(err, &ise):
		kit.WriteError(w, r, http.StatusConflict, "insufficient stock", map[string]any{
			"product":   ise.Product,
			"requested": ise.Requested,
			"available": ise.Available,
		})
	case errors.As(err, &roe):
		if roe.Timeout() {
			kit.WriteError(w, r, http.StatusGatewayTimeout, "timeout", nil)
			return
		}
		kit.WriteError(w, r, http.StatusBadGateway, "store error", nil)
	default:
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}
