package sales

import (
	"context"

	"github.com/Pietro923/Proyecto-Mel/internal/catalog"
	"github.com/Pietro923/Proyecto-Mel/internal/domain"
)

// Inventory is the part of the catalog a sale needs. TakeStock must be a
// single conditional operation: it either removes qty units or fails with
// InsufficientStockError carrying the stock left.
type Inventory interface {
	ProductByName(ctx context.Context, name string) (domain.Product, error)
	TakeStock(ctx context.Context, id, qty int64) (remaining int64, err error)
	ReturnStock(ctx context.Context, id, qty int64) error
	Ping(ctx context.Context) error
}

// LocalInventory serves sales from a catalog service in the same process.
type LocalInventory struct {
	Catalog *catalog.Service
}

func (l LocalInventory) ProductByName(ctx context.Context, name string) (domain.Product, error) {
	return l.Catalog.FindByName(ctx, name)
}

func (l LocalInventory) TakeStock(ctx context.Context, id, qty int64) (int64, error) {
	floor := int64(0)
	return l.Catalog.AdjustStock(ctx, id, -qty, &floor)
}

func (l LocalInventory) ReturnStock(ctx context.Context, id, qty int64) error {
	_, err := l.Catalog.AdjustStock(ctx, id, qty, nil)
	return err
}

func (l LocalInventory) Ping(ctx context.Context) error {
	return l.Catalog.Store.Ping(ctx)
}
