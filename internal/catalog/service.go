package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Pietro923/Proyecto-Mel/internal/domain"
	"github.com/Pietro923/Proyecto-Mel/pkg/docstore"
	"github.com/Pietro923/Proyecto-Mel/pkg/kit"
)

const (
	CollectionProducts   = "products"
	CollectionCounters   = "counters"
	CollectionCategories = "categories"

	productCounterKey   = "products"
	productCounterField = "lastId"

	maxAllocAttempts = 32
)

var errIDSpaceCrowded = errors.New("no free product id after repeated allocation")

var tracer = otel.Tracer("github.com/Pietro923/Proyecto-Mel/internal/catalog")

// CreateRequest is a new product as submitted. A missing id is allocated
// from the product counter.
type CreateRequest struct {
	ID          *int64          `json:"id,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int64           `json:"quantity"`
	ImageURL    string          `json:"imageUrl"`
	Category    string          `json:"category,omitempty"`
}

type Service struct {
	Store   docstore.Store
	Log     *zap.Logger
	Metrics *Metrics
}

func NewService(store docstore.Store, log *zap.Logger, reg prometheus.Registerer) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{Store: store, Log: log}
	if reg != nil {
		s.Metrics = NewMetrics(reg)
	}
	return s
}

func (s *Service) Create(ctx context.Context, by kit.User, req CreateRequest) (p domain.Product, err error) {
	ctx, span := tracer.Start(ctx, "catalog.Create")
	defer func() { s.finish(span, "create", err) }()

	if err := authorize(by, "create products"); err != nil {
		return domain.Product{}, err
	}

	p = domain.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Quantity:    req.Quantity,
		ImageURL:    req.ImageURL,
		Category:    req.Category,
	}
	p.Normalize()

	if err := p.ValidateFields(); err != nil {
		return domain.Product{}, err
	}

	if req.ID != nil {
		p.ID = *req.ID
		span.SetAttributes(attribute.Int64("product.id", p.ID))
		if err := p.Validate(); err != nil {
			return domain.Product{}, err
		}
		if err := s.insert(ctx, p); err != nil {
			return domain.Product{}, err
		}
	} else {
		if p, err = s.insertAllocated(ctx, p); err != nil {
			return domain.Product{}, err
		}
		span.SetAttributes(attribute.Int64("product.id", p.ID))
	}

	s.Log.Info("product created", zap.Int64("product_id", p.ID), zap.String("by", by.ID))
	return p, nil
}

func (s *Service) insert(ctx context.Context, p domain.Product) error {
	_, err := s.Store.Get(ctx, CollectionProducts, p.Key())
	switch {
	case err == nil:
		return &domain.DuplicateIDError{ID: p.ID}
	case !errors.Is(err, docstore.ErrNotFound):
		return s.remote("check product id", p.ID, err)
	}

	if err := s.Store.Create(ctx, CollectionProducts, p.Key(), p); err != nil {
		if errors.Is(err, docstore.ErrExists) {
			return &domain.DuplicateIDError{ID: p.ID}
		}
		return s.remote("create product", p.ID, err)
	}
	return nil
}

// insertAllocated stores p under the next free counter id. Ids already taken
// by manually numbered products are skipped.
func (s *Service) insertAllocated(ctx context.Context, p domain.Product) (domain.Product, error) {
	for attempt := 0; attempt < maxAllocAttempts; attempt++ {
		id, err := s.nextID(ctx)
		if err != nil {
			return domain.Product{}, err
		}
		p.ID = id

		err = s.insert(ctx, p)
		if err == nil {
			return p, nil
		}
		if !domain.IsDuplicateIDError(err) {
			return domain.Product{}, err
		}
		s.Log.Debug("allocated product id taken", zap.Int64("product_id", id))
	}
	return domain.Product{}, s.remote("allocate product id", 0, errIDSpaceCrowded)
}

// Update overwrites the mutable fields of an existing product and returns
// the record as stored afterwards.
func (s *Service) Update(ctx context.Context, by kit.User, id int64, changes domain.ProductChanges) (p domain.Product, err error) {
	ctx, span := tracer.Start(ctx, "catalog.Update", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer func() { s.finish(span, "update", err) }()

	if err := authorize(by, "edit products"); err != nil {
		return domain.Product{}, err
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	next, err := changes.Apply(current)
	if err != nil {
		return domain.Product{}, err
	}

	if err := s.Store.Update(ctx, CollectionProducts, next.Key(), next.Patch()); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return domain.Product{}, &domain.ProductNotFoundError{ID: id}
		}
		return domain.Product{}, s.remote("update product", id, err)
	}

	p, err = s.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	s.Log.Info("product updated", zap.Int64("product_id", id), zap.String("by", by.ID))
	return p, nil
}

func (s *Service) Delete(ctx context.Context, by kit.User, id int64) (err error) {
	ctx, span := tracer.Start(ctx, "catalog.Delete", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer func() { s.finish(span, "delete", err) }()

	if err := authorize(by, "delete products"); err != nil {
		return err
	}

	if err := s.Store.Delete(ctx, CollectionProducts, domain.ProductKey(id)); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return &domain.ProductNotFoundError{ID: id}
		}
		return s.remote("delete product", id, err)
	}

	s.Log.Info("product deleted", zap.Int64("product_id", id), zap.String("by", by.ID))
	return nil
}

// AllocateNextID hands out the next sequential product id. The counter
// document is created at 1 on first use.
func (s *Service) AllocateNextID(ctx context.Context, by kit.User) (int64, error) {
	if err := authorize(by, "allocate product ids"); err != nil {
		return 0, err
	}
	return s.nextID(ctx)
}

func (s *Service) nextID(ctx context.Context) (int64, error) {
	id, err := s.Store.Increment(ctx, CollectionCounters, productCounterKey, productCounterField, 1, docstore.WithUpsert())
	if err != nil {
		return 0, s.remote("allocate product id", 0, err)
	}
	return id, nil
}

// Get reads one product from the store. Nothing is cached.
func (s *Service) Get(ctx context.Context, id int64) (domain.Product, error) {
	rec, err := s.Store.Get(ctx, CollectionProducts, domain.ProductKey(id))
	if errors.Is(err, docstore.ErrNotFound) {
		return domain.Product{}, &domain.ProductNotFoundError{ID: id}
	}
	if err != nil {
		return domain.Product{}, s.remote("get product", id, err)
	}

	var p domain.Product
	if err := docstore.Decode(rec, &p); err != nil {
		return domain.Product{}, s.remote("decode product", id, err)
	}
	return p, nil
}

// FindByName returns the live record of the product called name. With
// several products of that name the oldest one wins.
func (s *Service) FindByName(ctx context.Context, name string) (domain.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Product{}, domain.NewValidationError("name", "required")
	}

	recs, err := s.Store.Find(ctx, CollectionProducts, "name", name)
	if err != nil {
		return domain.Product{}, s.remote("find product", 0, err)
	}
	if len(recs) == 0 {
		return domain.Product{}, &domain.ProductNotFoundError{Name: name}
	}

	var p domain.Product
	if err := docstore.Decode(recs[0], &p); err != nil {
		return domain.Product{}, s.remote("decode product", 0, err)
	}
	return p, nil
}

// AdjustStock adds delta to the stock of product id in one store operation
// and returns the new level. With floor set, a change that would leave less
// than floor units is not applied and fails with InsufficientStockError
// carrying the current stock.
func (s *Service) AdjustStock(ctx context.Context, id, delta int64, floor *int64) (level int64, err error) {
	ctx, span := tracer.Start(ctx, "catalog.AdjustStock", trace.WithAttributes(
		attribute.Int64("product.id", id),
		attribute.Int64("stock.delta", delta),
	))
	defer func() { s.finish(span, "adjust_stock", err) }()

	var opts []docstore.IncrementOption
	if floor != nil {
		opts = append(opts, docstore.WithFloor(*floor))
	}

	level, err = s.Store.Increment(ctx, CollectionProducts, domain.ProductKey(id), "quantity", delta, opts...)
	switch {
	case errors.Is(err, docstore.ErrBelowFloor):
		return level, &domain.InsufficientStockError{Product: domain.ProductKey(id), Requested: -delta, Available: level}
	case errors.Is(err, docstore.ErrNotFound):
		return 0, &domain.ProductNotFoundError{ID: id}
	case err != nil:
		return 0, s.remote("adjust stock", id, err)
	}

	s.Log.Info("stock adjusted", zap.Int64("product_id", id), zap.Int64("delta", delta), zap.Int64("level", level))
	return level, nil
}

// List fetches the whole catalog ordered by id.
func (s *Service) List(ctx context.Context) (List, error) {
	recs, err := s.Store.GetAll(ctx, CollectionProducts)
	if err != nil {
		return nil, s.remote("list products", 0, err)
	}

	out := make(List, 0, len(recs))
	for _, rec := range recs {
		var p domain.Product
		if err := docstore.Decode(rec, &p); err != nil {
			s.Log.Warn("skipping undecodable product", zap.String("key", rec.Key), zap.Error(err))
			continue
		}
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SearchCategory fetches the catalog once and filters it in memory.
func (s *Service) SearchCategory(ctx context.Context, text string) (SearchResult, error) {
	list, err := s.List(ctx)
	if err != nil {
		return SearchResult{}, err
	}
	return list.FilterCategory(text), nil
}

type Category struct {
	Name string `json:"name"`
}

func categoryKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	recs, err := s.Store.GetAll(ctx, CollectionCategories)
	if err != nil {
		return nil, s.remote("list categories", 0, err)
	}

	out := make([]Category, 0, len(recs))
	for _, rec := range recs {
		var c Category
		if err := docstore.Decode(rec, &c); err != nil {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return categoryKey(out[i].Name) < categoryKey(out[j].Name) })
	return out, nil
}

// AddCategory stores a category name. Adding an existing name (ignoring
// case) is not an error; created reports whether a new entry was written.
func (s *Service) AddCategory(ctx context.Context, by kit.User, name string) (c Category, created bool, err error) {
	if err := authorize(by, "add categories"); err != nil {
		return Category{}, false, err
	}

	c = Category{Name: strings.TrimSpace(name)}
	if c.Name == "" {
		return Category{}, false, domain.NewValidationError("name", "required")
	}

	err = s.Store.Create(ctx, CollectionCategories, categoryKey(c.Name), c)
	if errors.Is(err, docstore.ErrExists) {
		return c, false, nil
	}
	if err != nil {
		return Category{}, false, s.remote("create category", 0, err)
	}
	return c, true, nil
}

func authorize(by kit.User, action string) error {
	if !domain.CanManageCatalog(by.Role) {
		return &domain.ForbiddenError{Role: by.Role, Action: action}
	}
	return nil
}

func (s *Service) remote(op string, id int64, err error) error {
	s.Log.Error(op+" failed", zap.Int64("product_id", id), zap.Error(err))
	return domain.NewRemoteOperationError(op, err)
}

func (s *Service) finish(span trace.Span, op string, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	s.Metrics.observe(op, err)
}
