// Package sales records sales against the shared product catalog and serves
// the sales ledger, its daily summary and the client and seller directories.
package sales

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Pietro923/Proyecto-Mel/internal/domain"
	"github.com/Pietro923/Proyecto-Mel/pkg/docstore"
	"github.com/Pietro923/Proyecto-Mel/pkg/kit"
)

const CollectionSales = "sales"

var tracer = otel.Tracer("github.com/Pietro923/Proyecto-Mel/internal/sales")

// Receipt is the outcome of a recorded sale.
type Receipt struct {
	Sale           domain.Sale `json:"sale"`
	RemainingStock int64       `json:"remaining_stock"`
}

// Recorder keeps the sales ledger in Store and takes stock from Inventory.
type Recorder struct {
	Store     docstore.Store
	Inventory Inventory
	Log       *zap.Logger
	Metrics   *Metrics

	// Now supplies the default sale date.
	Now func() time.Time
}

func NewRecorder(store docstore.Store, inv Inventory, log *zap.Logger, reg prometheus.Registerer) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Recorder{Store: store, Inventory: inv, Log: log, Now: time.Now}
	if reg != nil {
		r.Metrics = NewMetrics(reg)
	}
	return r
}

// Register sells req.Quantity units of the product named req.ProductName.
//
// Stock is taken with a single conditional decrement in the catalog that
// fails instead of going below zero, so concurrent sales of the last units
// cannot both win.
// The sale is appended afterwards; when that append fails the units are put
// back and the sale is reported as a store failure.
func (r *Recorder) Register(ctx context.Context, by kit.User, req domain.SaleRequest) (rc Receipt, err error) {
	ctx, span := tracer.Start(ctx, "sales.Register")
	defer func() { r.finish(span, req.Quantity, err) }()

	if !domain.CanSell(by.Role) {
		return Receipt{}, &domain.ForbiddenError{Role: by.Role, Action: "register sales"}
	}

	req.Normalize()
	if req.Seller == "" {
		req.Seller = by.Email
		if req.Seller == "" {
			req.Seller = by.ID
		}
	}
	if req.Date == "" {
		req.Date = r.now().Format(domain.DateLayout)
	}
	if err := req.Validate(); err != nil {
		return Receipt{}, err
	}
	span.SetAttributes(
		attribute.String("product.name", req.ProductName),
		attribute.Int64("sale.quantity", req.Quantity),
	)

	p, err := r.productByName(ctx, req.ProductName)
	if err != nil {
		return Receipt{}, err
	}
	span.SetAttributes(attribute.Int64("product.id", p.ID))

	if req.Quantity > p.Quantity {
		r.Log.Info("sale rejected",
			zap.String("product", p.Name),
			zap.Int64("requested", req.Quantity),
			zap.Int64("available", p.Quantity),
		)
		return Receipt{}, &domain.InsufficientStockError{Product: p.Name, Requested: req.Quantity, Available: p.Quantity}
	}

	remaining, err := r.Inventory.TakeStock(ctx, p.ID, req.Quantity)
	var ise *domain.InsufficientStockError
	switch {
	case errors.As(err, &ise):
		r.Log.Info("sale lost stock race",
			zap.String("product", p.Name),
			zap.Int64("requested", req.Quantity),
			zap.Int64("available", ise.Available),
		)
		return Receipt{}, &domain.InsufficientStockError{Product: p.Name, Requested: req.Quantity, Available: ise.Available}
	case domain.IsProductNotFoundError(err):
		return Receipt{}, &domain.ProductNotFoundError{Name: req.ProductName}
	case err != nil:
		return Receipt{}, r.remote("take stock", p.Key(), err)
	}

	sale := domain.NewSale(req, p.Price)
	key, err := r.Store.Append(ctx, CollectionSales, sale)
	if err != nil {
		r.restoreStock(ctx, p, req.Quantity)
		return Receipt{}, r.remote("append sale", p.Key(), err)
	}
	sale.ID = key

	r.Log.Info("sale recorded",
		zap.String("sale_id", key),
		zap.Int64("product_id", p.ID),
		zap.Int64("quantity", sale.Quantity),
		zap.String("total", sale.Total.String()),
		zap.Int64("remaining", remaining),
	)
	return Receipt{Sale: sale, RemainingStock: remaining}, nil
}

// productByName reads the live product record. With several products of the
// same name the oldest one is sold.
func (r *Recorder) productByName(ctx context.Context, name string) (domain.Product, error) {
	p, err := r.Inventory.ProductByName(ctx, name)
	switch {
	case err == nil:
		return p, nil
	case domain.IsProductNotFoundError(err):
		return domain.Product{}, &domain.ProductNotFoundError{Name: name}
	default:
		return domain.Product{}, r.remote("find product", name, err)
	}
}

func (r *Recorder) restoreStock(ctx context.Context, p domain.Product, qty int64) {
	// The request context may already be done; the restore must still run.
	ctx = context.WithoutCancel(ctx)
	if err := r.Inventory.ReturnStock(ctx, p.ID, qty); err != nil {
		r.Log.Error("stock restore failed",
			zap.Int64("product_id", p.ID),
			zap.Int64("quantity", qty),
			zap.Error(err),
		)
	}
}

// List returns the whole ledger in insertion order.
func (r *Recorder) List(ctx context.Context) ([]domain.Sale, error) {
	recs, err := r.Store.GetAll(ctx, CollectionSales)
	if err != nil {
		return nil, r.remote("list sales", "", err)
	}

	out := make([]domain.Sale, 0, len(recs))
	for _, rec := range recs {
		var s domain.Sale
		if err := docstore.Decode(rec, &s); err != nil {
			r.Log.Warn("skipping undecodable sale", zap.String("key", rec.Key), zap.Error(err))
			continue
		}
		s.ID = rec.Key
		out = append(out, s)
	}
	return out, nil
}

func (r *Recorder) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Recorder) remote(op, key string, err error) error {
	r.Log.Error(op+" failed", zap.String("key", key), zap.Error(err))
	var roe *domain.RemoteOperationError
	if errors.As(err, &roe) {
		return err
	}
	return domain.NewRemoteOperationError(op, err)
}

func (r *Recorder) finish(span trace.Span, qty int64, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	r.Metrics.observe(qty, err)
}
