package catalog

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Pietro923/Proyecto-Mel/internal/domain"
	"github.com/Pietro923/Proyecto-Mel/pkg/kit"
)

type Server struct {
	Service *Service
	Log     *zap.Logger

	// InternalToken guards the /internal routes other services call. The
	// gateway never forwards /internal.
	InternalToken string
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", s.readyz)

	r.Group(func(pr chi.Router) {
		pr.Use(kit.ReadUserHeaders)

		pr.Get("/products", s.list)
		pr.Get("/products/search", s.search)
		pr.Get("/products/{id}", s.get)
		pr.Get("/categories", s.listCategories)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(kit.RequireUserHeaders)

		pr.Post("/products", s.create)
		pr.Post("/products/next-id", s.nextID)
		pr.Put("/products/{id}", s.update)
		pr.Delete("/products/{id}", s.delete)
		pr.Post("/categories", s.addCategory)
	})

	r.Route("/internal", func(ir chi.Router) {
		ir.Use(kit.ServiceAuth(s.InternalToken))

		ir.Get("/products/by-name", s.byName)
		ir.Post("/products/{id}/stock", s.adjustStock)
	})

	return r
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
	defer cancel()

	if err := s.Service.Store.Ping(ctx); err != nil {
		if s.Log != nil {
			s.Log.Warn("readyz failed", zap.Error(err))
		}
		kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	products, err := s.Service.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, products)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	res, err := s.Service.SearchCategory(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, err := s.Service.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	u, _ := kit.UserFromContext(r.Context())

	var req CreateRequest
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteBadJSON(w, r, err)
		return
	}

	p, err := s.Service.Create(r.Context(), u, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusCreated, p)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	u, _ := kit.UserFromContext(r.Context())

	id, err := productID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var changes domain.ProductChanges
	if err := kit.DecodeJSON(w, r, &changes); err != nil {
		kit.WriteBadJSON(w, r, err)
		return
	}

	p, err := s.Service.Update(r.Context(), u, id, changes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	u, _ := kit.UserFromContext(r.Context())

	id, err := productID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.Service.Delete(r.Context(), u, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) byName(w http.ResponseWriter, r *http.Request) {
	p, err := s.Service.FindByName(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, p)
}

// StockChange is the body of POST /internal/products/{id}/stock.
type StockChange struct {
	Delta int64  `json:"delta"`
	Floor *int64 `json:"floor,omitempty"`
}

// StockLevel is the stock of a product after a change.
type StockLevel struct {
	ID       int64 `json:"id"`
	Quantity int64 `json:"quantity"`
}

func (s *Server) adjustStock(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req StockChange
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteBadJSON(w, r, err)
		return
	}
	if req.Delta == 0 {
		writeError(w, r, domain.NewValidationError("delta", "must not be 0"))
		return
	}

	level, err := s.Service.AdjustStock(r.Context(), id, req.Delta, req.Floor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, StockLevel{ID: id, Quantity: level})
}

type nextIDResp struct {
	NextID int64 `json:"next_id"`
}

func (s *Server) nextID(w http.ResponseWriter, r *http.Request) {
	u, _ := kit.UserFromContext(r.Context())

	id, err := s.Service.AllocateNextID(r.Context(), u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, nextIDResp{NextID: id})
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.Service.Categories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, cats)
}

func (s *Server) addCategory(w http.ResponseWriter, r *http.Request) {
	u, _ := kit.UserFromContext(r.Context())

	var req Category
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteBadJSON(w, r, err)
		return
	}

	c, created, err := s.Service.AddCategory(r.Context(), u, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	kit.WriteJSON(w, status, c)
}

func productID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, domain.NewValidationError("id", "must be an integer")
	}
	return id, nil
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve  *domain.ValidationError
		de  *domain.DuplicateIDError
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
		if nf.Name != "" {
			kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"name": nf.Name})
			return
		}
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": nf.ID})
	case errors.As(err, &ise):
		kit.WriteError(w, r, http.StatusConflict, "insufficient stock", map[string]any{
			"requested": ise.Requested,
			"available": ise.Available,
		})
	case errors.As(err, &de):
		kit.WriteError(w, r, http.StatusConflict, "product id already in use", map[string]any{"id": de.ID})
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
