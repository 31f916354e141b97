package sales

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Pietro923/Proyecto-Mel/internal/catalog"
	"github.com/Pietro923/Proyecto-Mel/internal/domain"
	"github.com/Pietro923/Proyecto-Mel/pkg/docstore"
)

const serviceToken = "svc-token"

// splitDeployment opens one store per service from the environment, the way
// cmd/catalog and cmd/sales do, and links them over HTTP.
type splitDeployment struct {
	catalog   *catalog.Service
	catalogTS *httptest.Server
	rec       *Recorder
}

func newSplitDeployment(t *testing.T) splitDeployment {
	t.Helper()
	t.Setenv("STORE_DRIVER", "")
	ctx := context.Background()

	catalogStore, err := docstore.Open(ctx, docstore.ConfigFromEnv("pos:"))
	require.NoError(t, err)
	salesStore, err := docstore.Open(ctx, docstore.ConfigFromEnv("pos:"))
	require.NoError(t, err)

	cat := catalog.NewService(catalogStore, zap.NewNop(), nil)
	ts := httptest.NewServer(catalog.NewHandler(&catalog.Server{
		Service:       cat,
		Log:           zap.NewNop(),
		InternalToken: serviceToken,
	}, catalog.HTTPDeps{Log: zap.NewNop(), Service: "catalog"}))
	t.Cleanup(ts.Close)

	rec := NewRecorder(salesStore, NewCatalogClient(ts.URL+"/", serviceToken), zap.NewNop(), nil)
	rec.Now = fixedNow
	return splitDeployment{catalog: cat, catalogTS: ts, rec: rec}
}

func (d splitDeployment) addWidget(t *testing.T, qty int64) {
	t.Helper()

	id := int64(1)
	_, err := d.catalog.Create(context.Background(), admin, catalog.CreateRequest{
		ID:       &id,
		Name:     "Widget",
		Price:    decimal.NewFromInt(10),
		Quantity: qty,
	})
	require.NoError(t, err)
}

func (d splitDeployment) stock(t *testing.T) int64 {
	t.Helper()

	p, err := d.catalog.Get(context.Background(), 1)
	require.NoError(t, err)
	return p.Quantity
}

func TestCatalogClient_SaleAcrossServices(t *testing.T) {
	d := newSplitDeployment(t)
	ctx := context.Background()
	d.addWidget(t, 5)

	rc, err := d.rec.Register(ctx, seller, domain.SaleRequest{Client: "Ana", ProductName: "Widget", Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(2), rc.RemainingStock)
	assert.True(t, rc.Sale.Total.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, int64(2), d.stock(t))

	_, err = d.rec.Register(ctx, seller, domain.SaleRequest{Client: "Ana", ProductName: "Widget", Quantity: 10})
	var ise *domain.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, int64(2), ise.Available)
	assert.Equal(t, "Widget", ise.Product)
	assert.Equal(t, int64(2), d.stock(t))

	_, err = d.rec.Register(ctx, seller, domain.SaleRequest{Client: "Ana", ProductName: "Gadget", Quantity: 1})
	var nf *domain.ProductNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Gadget", nf.Name)

	ledger, err := d.rec.List(ctx)
	require.NoError(t, err)
	assert.Len(t, ledger, 1)
}

func TestCatalogClient_ConcurrentSalesNeverOversell(t *testing.T) {
	d := newSplitDeployment(t)
	ctx := context.Background()
	d.addWidget(t, 4)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		sold int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := d.rec.Register(ctx, seller, domain.SaleRequest{Client: "Ana", ProductName: "Widget", Quantity: 1}); err == nil {
				mu.Lock()
				sold++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, sold)
	assert.Equal(t, int64(0), d.stock(t))
}

func TestCatalogClient_AppendFailureReturnsStock(t *testing.T) {
	d := newSplitDeployment(t)
	d.addWidget(t, 5)

	rec := NewRecorder(appendFailStore{Store: docstore.NewMemStore(), err: context.DeadlineExceeded}, d.rec.Inventory, zap.NewNop(), nil)
	_, err := rec.Register(context.Background(), seller, domain.SaleRequest{Client: "Ana", ProductName: "Widget", Quantity: 3})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int64(5), d.stock(t))
}

func TestCatalogClient_WrongTokenAndCatalogDown(t *testing.T) {
	d := newSplitDeployment(t)
	ctx := context.Background()
	d.addWidget(t, 5)

	wrong := NewCatalogClient(d.catalogTS.URL, "nope")
	_, err := wrong.ProductByName(ctx, "Widget")
	var roe *domain.RemoteOperationError
	require.ErrorAs(t, err, &roe)
	assert.ErrorIs(t, err, ErrCatalogBadStatus)

	d.catalogTS.Close()
	_, err = d.rec.Register(ctx, seller, domain.SaleRequest{Client: "Ana", ProductName: "Widget", Quantity: 1})
	require.ErrorAs(t, err, &roe)
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
	require.Error(t, d.rec.Inventory.Ping(ctx))
}
