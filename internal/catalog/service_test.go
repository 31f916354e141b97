package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Pietro923/Proyecto-Mel/internal/domain"
	"github.com/Pietro923/Proyecto-Mel/pkg/docstore"
	"github.com/Pietro923/Proyecto-Mel/pkg/kit"
)

var (
	admin  = kit.User{ID: "u_admin", Email: "admin@example.com", Role: domain.RoleAdmin}
	seller = kit.User{ID: "u_seller", Email: "seller@example.com", Role: domain.RoleSeller}
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(docstore.NewMemStore(), zap.NewNop(), prometheus.NewRegistry())
}

func ptr(v int64) *int64 { return &v }

func widget(id int64) CreateRequest {
	return CreateRequest{
		ID:          ptr(id),
		Name:        "Widget",
		Description: "small widget",
		Price:       decimal.NewFromInt(10),
		Quantity:    5,
		ImageURL:    "https://img.example.com/widget.png",
		Category:    "Tools",
	}
}

func TestService_CreateThenGet(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	created, err := s.Create(ctx, admin, widget(7))
	require.NoError(t, err)
	assert.Equal(t, int64(7), created.ID)

	got, err := s.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Widget", got.Name)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, int64(5), got.Quantity)
	assert.Equal(t, "Tools", got.Category)
}

func TestService_CreateDuplicateLeavesOriginal(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Create(ctx, admin, widget(7))
	require.NoError(t, err)

	other := widget(7)
	other.Name = "Impostor"
	_, err = s.Create(ctx, admin, other)

	var dup *domain.DuplicateIDError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, int64(7), dup.ID)

	got, err := s.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Widget", got.Name)
}

func TestService_CreateRejectsBadInput(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	zero := widget(0)
	_, err := s.Create(ctx, admin, zero)
	require.ErrorIs(t, err, &domain.ValidationError{})

	noName := widget(1)
	noName.Name = "  "
	_, err = s.Create(ctx, admin, noName)
	require.ErrorIs(t, err, &domain.ValidationError{})

	badURL := widget(2)
	badURL.ImageURL = "not a url"
	_, err = s.Create(ctx, admin, badURL)
	require.ErrorIs(t, err, &domain.ValidationError{})

	negative := widget(3)
	negative.Quantity = -1
	_, err = s.Create(ctx, admin, negative)
	require.ErrorIs(t, err, &domain.ValidationError{})

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestService_CreateWithoutIDAllocates(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	req := widget(0)
	req.ID = nil

	first, err := s.Create(ctx, admin, req)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ID)

	second, err := s.Create(ctx, admin, req)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.ID)
}

func TestService_CreateWithoutIDSkipsManualIDs(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Create(ctx, admin, widget(1))
	require.NoError(t, err)
	_, err = s.Create(ctx, admin, widget(3))
	require.NoError(t, err)

	req := widget(0)
	req.ID = nil

	second, err := s.Create(ctx, admin, req)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.ID)

	fourth, err := s.Create(ctx, admin, req)
	require.NoError(t, err)
	assert.Equal(t, int64(4), fourth.ID)
}

func TestService_InvalidCreateDoesNotConsumeID(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	bad := widget(0)
	bad.ID = nil
	bad.Name = ""
	_, err := s.Create(ctx, admin, bad)
	require.ErrorIs(t, err, &domain.ValidationError{})

	req := widget(0)
	req.ID = nil
	p, err := s.Create(ctx, admin, req)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ID)
}

func TestService_WritesRequireAdmin(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Create(ctx, seller, widget(1))
	require.ErrorIs(t, err, &domain.ForbiddenError{})

	_, err = s.Create(ctx, kit.User{}, widget(1))
	require.ErrorIs(t, err, &domain.ForbiddenError{})

	_, err = s.Create(ctx, admin, widget(1))
	require.NoError(t, err)

	_, err = s.Update(ctx, seller, 1, domain.ProductChanges{Name: "x"})
	require.ErrorIs(t, err, &domain.ForbiddenError{})

	require.ErrorIs(t, s.Delete(ctx, seller, 1), &domain.ForbiddenError{})

	_, err = s.AllocateNextID(ctx, seller)
	require.ErrorIs(t, err, &domain.ForbiddenError{})

	_, _, err = s.AddCategory(ctx, seller, "Food")
	require.ErrorIs(t, err, &domain.ForbiddenError{})

	_, err = s.Get(ctx, 1)
	require.NoError(t, err)
}

func TestService_UpdateKeepsIDAndReturnsStored(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Create(ctx, admin, widget(3))
	require.NoError(t, err)

	cat := "Hardware"
	updated, err := s.Update(ctx, admin, 3, domain.ProductChanges{
		Name:     " Widget XL ",
		Price:    decimal.RequireFromString("12.50"),
		Quantity: 8,
		Category: &cat,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), updated.ID)
	assert.Equal(t, "Widget XL", updated.Name)
	assert.True(t, updated.Price.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, "Hardware", updated.Category)

	got, err := s.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, updated, got)
}

func TestService_UpdateKeepsCategoryWhenOmitted(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Create(ctx, admin, widget(3))
	require.NoError(t, err)

	updated, err := s.Update(ctx, admin, 3, domain.ProductChanges{Name: "Widget", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, "Tools", updated.Category)
}

func TestService_UpdateMissing(t *testing.T) {
	s := newTestService(t)

	_, err := s.Update(context.Background(), admin, 99, domain.ProductChanges{Name: "x"})
	require.ErrorIs(t, err, &domain.ProductNotFoundError{})
}

func TestService_UpdateRejectsBadInput(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Create(ctx, admin, widget(3))
	require.NoError(t, err)

	_, err = s.Update(ctx, admin, 3, domain.ProductChanges{Name: "Widget", Price: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, &domain.ValidationError{})

	got, err := s.Get(ctx, 3)
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(10)))
}

func TestService_Delete(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Create(ctx, admin, widget(4))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, admin, 4))

	_, err = s.Get(ctx, 4)
	require.ErrorIs(t, err, &domain.ProductNotFoundError{})

	err = s.Delete(ctx, admin, 4)
	require.ErrorIs(t, err, &domain.ProductNotFoundError{})
}

func TestService_AllocateNextIDSequence(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := s.AllocateNextID(ctx, admin)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestService_AllocateNextIDConcurrentDistinct(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	const n = 50
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[int64]struct{}, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := s.AllocateNextID(ctx, admin)
			if err != nil {
				t.Errorf("allocate: %v", err)
				return
			}
			mu.Lock()
			ids[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, n)
}

func TestService_ListSortedByID(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	for _, id := range []int64{9, 2, 5} {
		_, err := s.Create(ctx, admin, widget(id))
		require.NoError(t, err)
	}

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []int64{2, 5, 9}, []int64{list[0].ID, list[1].ID, list[2].ID})
}

func TestService_SearchCategory(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	a := widget(1)
	a.Category = "Garden Tools"
	b := widget(2)
	b.Category = "Food"
	for _, req := range []CreateRequest{a, b} {
		_, err := s.Create(ctx, admin, req)
		require.NoError(t, err)
	}

	res, err := s.SearchCategory(ctx, "TOOL")
	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	assert.Equal(t, int64(1), res.Products[0].ID)
	assert.False(t, res.NoMatches)

	res, err = s.SearchCategory(ctx, "toys")
	require.NoError(t, err)
	assert.Empty(t, res.Products)
	assert.True(t, res.NoMatches)
}

func TestService_Categories(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	c, created, err := s.AddCategory(ctx, admin, " Tools ")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Tools", c.Name)

	_, created, err = s.AddCategory(ctx, admin, "tools")
	require.NoError(t, err)
	assert.False(t, created)

	_, _, err = s.AddCategory(ctx, admin, "Food")
	require.NoError(t, err)

	_, _, err = s.AddCategory(ctx, admin, "")
	require.ErrorIs(t, err, &domain.ValidationError{})

	cats, err := s.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Category{{Name: "Food"}, {Name: "Tools"}}, cats)
}

func TestService_MutationMetrics(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Create(ctx, admin, widget(1))
	require.NoError(t, err)
	_, err = s.Create(ctx, admin, widget(1))
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(s.Metrics.Mutations.WithLabelValues("create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.Metrics.Mutations.WithLabelValues("create", "duplicate")))
}

type failingStore struct {
	docstore.Store
	err error
}

func (f failingStore) Get(context.Context, string, string) (docstore.Record, error) {
	return docstore.Record{}, f.err
}

func (f failingStore) GetAll(context.Context, string) ([]docstore.Record, error) {
	return nil, f.err
}

func TestService_StoreFailureIsRemoteError(t *testing.T) {
	cause := errors.New("connection reset")
	s := NewService(failingStore{Store: docstore.NewMemStore(), err: cause}, zap.NewNop(), nil)
	ctx := context.Background()

	_, err := s.Get(ctx, 1)
	var roe *domain.RemoteOperationError
	require.ErrorAs(t, err, &roe)
	assert.ErrorIs(t, err, cause)

	_, err = s.List(ctx)
	require.ErrorAs(t, err, &roe)

	_, err = s.Create(ctx, admin, widget(1))
	require.ErrorAs(t, err, &roe)
}

func TestService_FindByNameReturnsOldest(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Create(ctx, admin, widget(9))
	require.NoError(t, err)
	_, err = s.Create(ctx, admin, widget(2))
	require.NoError(t, err)

	p, err := s.FindByName(ctx, " Widget ")
	require.NoError(t, err)
	assert.Equal(t, int64(9), p.ID)

	_, err = s.FindByName(ctx, "Gadget")
	require.ErrorIs(t, err, &domain.ProductNotFoundError{})

	_, err = s.FindByName(ctx, "")
	require.ErrorIs(t, err, &domain.ValidationError{})
}

func TestService_AdjustStock(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Create(ctx, admin, widget(1))
	require.NoError(t, err)

	level, err := s.AdjustStock(ctx, 1, -3, ptr(0))
	require.NoError(t, err)
	assert.Equal(t, int64(2), level)

	level, err = s.AdjustStock(ctx, 1, -10, ptr(0))
	var ise *domain.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, int64(2), ise.Available)
	assert.Equal(t, int64(10), ise.Requested)
	assert.Equal(t, int64(2), level)

	level, err = s.AdjustStock(ctx, 1, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), level)

	_, err = s.AdjustStock(ctx, 99, -1, ptr(0))
	require.ErrorIs(t, err, &domain.ProductNotFoundError{})

	assert.Equal(t, 2.0, testutil.ToFloat64(s.Metrics.Mutations.WithLabelValues("adjust_stock", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.Metrics.Mutations.WithLabelValues("adjust_stock", "insufficient_stock")))
}
