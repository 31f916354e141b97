package sales

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Pietro923/Proyecto-Mel/internal/catalog"
	"github.com/Pietro923/Proyecto-Mel/internal/domain"
	"github.com/Pietro923/Proyecto-Mel/pkg/docstore"
	"github.com/Pietro923/Proyecto-Mel/pkg/kit"
)

var (
	admin  = kit.User{ID: "u_admin", Email: "admin@example.com", Role: domain.RoleAdmin}
	seller = kit.User{ID: "u_seller", Email: "seller@example.com", Role: domain.RoleSeller}
)

var fixedNow = func() time.Time { return time.Date(2024, 3, 9, 15, 4, 5, 0, time.UTC) }

// fixture keeps the catalog and the sales ledger in separate stores, as the
// services do when deployed.
type fixture struct {
	ledger  *docstore.MemStore
	catalog *catalog.Service
	rec     *Recorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	ledger := docstore.NewMemStore()
	cat := catalog.NewService(docstore.NewMemStore(), zap.NewNop(), nil)
	rec := NewRecorder(ledger, LocalInventory{Catalog: cat}, zap.NewNop(), prometheus.NewRegistry())
	rec.Now = fixedNow
	return fixture{
		ledger:  ledger,
		catalog: cat,
		rec:     rec,
	}
}

func (f fixture) addWidget(t *testing.T, qty int64) {
	t.Helper()

	id := int64(1)
	_, err := f.catalog.Create(context.Background(), admin, catalog.CreateRequest{
		ID:       &id,
		Name:     "Widget",
		Price:    decimal.NewFromInt(10),
		Quantity: qty,
		ImageURL: "https://img.example.com/widget.png",
	})
	require.NoError(t, err)
}

func (f fixture) stock(t *testing.T) int64 {
	t.Helper()

	p, err := f.catalog.Get(context.Background(), 1)
	require.NoError(t, err)
	return p.Quantity
}

func TestRegister_SellThenOversell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addWidget(t, 5)

	rc, err := f.rec.Register(ctx, seller, domain.SaleRequest{Client: "Ana", ProductName: "Widget", Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(2), rc.RemainingStock)
	assert.True(t, rc.Sale.Total.Equal(decimal.NewFromInt(30)), "total=%s", rc.Sale.Total)
	assert.True(t, rc.Sale.UnitPrice.Equal(decimal.NewFromInt(10)))
	assert.NotEmpty(t, rc.Sale.ID)
	assert.Equal(t, int64(2), f.stock(t))

	ledger, err := f.rec.List(ctx)
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, rc.Sale.ID, ledger[0].ID)
	assert.True(t, ledger[0].Total.Equal(decimal.NewFromInt(30)))

	_, err = f.rec.Register(ctx, seller, domain.SaleRequest{Client: "Ana", ProductName: "Widget", Quantity: 10})
	var ise *domain.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, int64(2), ise.Available)
	assert.Equal(t, int64(10), ise.Requested)

	assert.Equal(t, int64(2), f.stock(t))
	ledger, err = f.rec.List(ctx)
	require.NoError(t, err)
	assert.Len(t, ledger, 1)
}

func TestRegister_SellExactStock(t *testing.T) {
	f := newFixture(t)
	f.addWidget(t, 4)

	rc, err := f.rec.Register(context.Background(), seller, domain.SaleRequest{Client: "Ana", ProductName: "Widget", Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, int64(0), rc.RemainingStock)
	assert.Equal(t, int64(0), f.stock(t))
}

func TestRegister_Defaults(t *testing.T) {
	f := newFixture(t)
	f.addWidget(t, 5)

	rc, err := f.rec.Register(context.Background(), seller, domain.SaleRequest{Client: " Ana ", ProductName: "Widget", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, "Ana", rc.Sale.Client)
	assert.Equal(t, "seller@example.com", rc.Sale.Seller)
	assert.Equal(t, "2024-03-09", rc.Sale.Date)

	rc, err = f.rec.Register(context.Background(), seller, domain.SaleRequest{
		Client: "Ana", ProductName: "Widget", Quantity: 1, Seller: "Luis", Date: "2024-01-02",
	})
	require.NoError(t, err)
	assert.Equal(t, "Luis", rc.Sale.Seller)
	assert.Equal(t, "2024-01-02", rc.Sale.Date)
}

func TestRegister_UsesLivePrice(t *testing.T) {
	f := newFixture(t)
	f.addWidget(t, 5)

	_, err := f.catalog.Update(context.Background(), admin, 1, domain.ProductChanges{
		Name: "Widget", Price: decimal.RequireFromString("12.50"), Quantity: 5,
	})
	require.NoError(t, err)

	rc, err := f.rec.Register(context.Background(), seller, domain.SaleRequest{Client: "Ana", ProductName: "Widget", Quantity: 2})
	require.NoError(t, err)
	assert.True(t, rc.Sale.Total.Equal(decimal.NewFromInt(25)), "total=%s", rc.Sale.Total)
}

func TestRegister_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addWidget(t, 5)

	_, err := f.rec.Register(ctx, seller, domain.SaleRequest{Client: "Ana", ProductName: "Gizmo", Quantity: 1})
	var nf *domain.ProductNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Gizmo", nf.Name)

	_, err = f.rec.Register(ctx, seller, domain.SaleRequest{Client: "Ana", ProductName: "widget", Quantity: 1})
	require.ErrorIs(t, err, &domain.ProductNotFoundError{})

	_, err = f.rec.Register(ctx, seller, domain.SaleRequest{Client: "Ana", ProductName: "Widget", Quantity: 0})
	require.ErrorIs(t, err, &domain.ValidationError{})

	_, err = f.rec.Register(ctx, seller, domain.SaleRequest{ProductName: "Widget", Quantity: 1})
	require.ErrorIs(t, err, &domain.ValidationError{})

	_, err = f.rec.Register(ctx, seller, domain.SaleRequest{Client: "Ana", ProductName: "Widget", Quantity: 1, Date: "09/03/2024"})
	require.ErrorIs(t, err, &domain.ValidationError{})

	_, err = f.rec.Register(ctx, kit.User{ID: "u_x", Role: "viewer"}, domain.SaleRequest{Client: "Ana", ProductName: "Widget", Quantity: 1})
	require.ErrorIs(t, err, &domain.ForbiddenError{})

	assert.Equal(t, int64(5), f.stock(t))
	ledger, err := f.rec.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ledger)

	assert.Equal(t, 2.0, testutil.ToFloat64(f.rec.Metrics.Rejections.WithLabelValues("product_not_found")))
	assert.Equal(t, 3.0, testutil.ToFloat64(f.rec.Metrics.Rejections.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.rec.Metrics.Rejections.WithLabelValues("forbidden")))
}

func TestRegister_ConcurrentNeverOversells(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addWidget(t, 10)

	const buyers = 30
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.rec.Register(ctx, seller, domain.SaleRequest{Client: "Ana", ProductName: "Widget", Quantity: 1})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
				return
			}
			if !errors.Is(err, &domain.InsufficientStockError{}) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, accepted)
	assert.Equal(t, int64(0), f.stock(t))

	ledger, err := f.rec.List(ctx)
	require.NoError(t, err)
	assert.Len(t, ledger, 10)

	assert.Equal(t, 10.0, testutil.ToFloat64(f.rec.Metrics.Recorded))
	assert.Equal(t, 10.0, testutil.ToFloat64(f.rec.Metrics.UnitsSold))
}

type appendFailStore struct {
	docstore.Store
	err error
}

func (s appendFailStore) Append(context.Context, string, any) (string, error) {
	return "", s.err
}

func TestRegister_AppendFailureRestoresStock(t *testing.T) {
	f := newFixture(t)
	f.addWidget(t, 5)

	cause := errors.New("write timeout")
	rec := NewRecorder(appendFailStore{Store: f.ledger, err: cause}, f.rec.Inventory, zap.NewNop(), nil)

	_, err := rec.Register(context.Background(), seller, domain.SaleRequest{Client: "Ana", ProductName: "Widget", Quantity: 3})
	var roe *domain.RemoteOperationError
	require.ErrorAs(t, err, &roe)
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, int64(5), f.stock(t))
}

func TestSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addWidget(t, 20)

	for _, req := range []domain.SaleRequest{
		{Client: "Ana", ProductName: "Widget", Quantity: 2},
		{Client: "Luis", ProductName: "Widget", Quantity: 3},
		{Client: "Ana", ProductName: "Widget", Quantity: 1, Date: "2024-03-08"},
	} {
		_, err := f.rec.Register(ctx, seller, req)
		require.NoError(t, err)
	}

	sum, err := f.rec.Summary(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-09", sum.Date)
	assert.Equal(t, 2, sum.Day.Sales)
	assert.Equal(t, int64(5), sum.Day.Units)
	assert.True(t, sum.Day.Revenue.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, 3, sum.AllTime.Sales)
	assert.Equal(t, int64(6), sum.AllTime.Units)
	assert.True(t, sum.AllTime.Revenue.Equal(decimal.NewFromInt(60)))

	sum, err = f.rec.Summary(ctx, "2024-03-08")
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Day.Sales)

	_, err = f.rec.Summary(ctx, "yesterday")
	require.ErrorIs(t, err, &domain.ValidationError{})
}

func TestDirectory(t *testing.T) {
	d := NewDirectory(docstore.NewMemStore(), zap.NewNop(), CollectionClients)
	ctx := context.Background()

	e, created, err := d.Add(ctx, admin, " Ana ")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Ana", e.Name)

	_, created, err = d.Add(ctx, admin, "ANA")
	require.NoError(t, err)
	assert.False(t, created)

	_, _, err = d.Add(ctx, admin, "Beto")
	require.NoError(t, err)

	_, _, err = d.Add(ctx, seller, "Carla")
	require.ErrorIs(t, err, &domain.ForbiddenError{})

	_, _, err = d.Add(ctx, admin, "  ")
	require.ErrorIs(t, err, &domain.ValidationError{})

	entries, err := d.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Name: "Ana"}, {Name: "Beto"}}, entries)
}
