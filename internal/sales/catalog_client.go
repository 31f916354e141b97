package sales

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Pietro923/Proyecto-Mel/internal/catalog"
	"github.com/Pietro923/Proyecto-Mel/internal/domain"
	"github.com/Pietro923/Proyecto-Mel/pkg/kit"
)

var (
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	ErrCatalogBadStatus   = errors.New("catalog bad status")
)

// CatalogClient is the Inventory of a sales service running apart from the
// catalog. It calls the catalog's /internal routes.
type CatalogClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewCatalogClient(baseURL, token string) *CatalogClient {
	if u, err := url.Parse(baseURL); err == nil && u.Scheme != "" && u.Host != "" {
		baseURL = strings.TrimRight(baseURL, "/")
	}
	return &CatalogClient{
		BaseURL: baseURL,
		Token:   token,
		Client: &http.Client{
			Timeout:   3 * time.Second,
			Transport: kit.TracedTransport(nil),
		},
	}
}

func (c *CatalogClient) ProductByName(ctx context.Context, name string) (domain.Product, error) {
	var p domain.Product
	path := "/internal/products/by-name?name=" + url.QueryEscape(name)
	if err := c.do(ctx, "find product", http.MethodGet, path, nil, &p); err != nil {
		var nf *domain.ProductNotFoundError
		if errors.As(err, &nf) {
			nf.Name = name
		}
		return domain.Product{}, err
	}
	return p, nil
}

func (c *CatalogClient) TakeStock(ctx context.Context, id, qty int64) (int64, error) {
	floor := int64(0)
	return c.adjust(ctx, "take stock", id, catalog.StockChange{Delta: -qty, Floor: &floor})
}

func (c *CatalogClient) ReturnStock(ctx context.Context, id, qty int64) error {
	_, err := c.adjust(ctx, "return stock", id, catalog.StockChange{Delta: qty})
	return err
}

func (c *CatalogClient) Ping(ctx context.Context) error {
	return c.do(ctx, "catalog ready", http.MethodGet, "/readyz", nil, nil)
}

func (c *CatalogClient) adjust(ctx context.Context, op string, id int64, change catalog.StockChange) (int64, error) {
	var level catalog.StockLevel
	path := "/internal/products/" + strconv.FormatInt(id, 10) + "/stock"
	if err := c.do(ctx, op, http.MethodPost, path, change, &level); err != nil {
		var nf *domain.ProductNotFoundError
		if errors.As(err, &nf) {
			nf.ID = id
		}
		var ise *domain.InsufficientStockError
		if errors.As(err, &ise) {
			return ise.Available, err
		}
		return 0, err
	}
	return level.Quantity, nil
}

func (c *CatalogClient) do(ctx context.Context, op, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return domain.NewRemoteOperationError(op, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return domain.NewRemoteOperationError(op, err)
		}
		return nil
	}
	return decodeCatalogError(op, resp)
}

func decodeCatalogError(op string, resp *http.Response) error {
	var env struct {
		Error   string         `json:"error"`
		Details map[string]any `json:"details"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, kit.MaxBodyBytes)).Decode(&env)

	switch resp.StatusCode {
	case http.StatusNotFound:
		return &domain.ProductNotFoundError{}
	case http.StatusConflict:
		return &domain.InsufficientStockError{
			Requested: detailInt(env.Details, "requested"),
			Available: detailInt(env.Details, "available"),
		}
	case http.StatusBadRequest:
		field, _ := env.Details["field"].(string)
		return domain.NewValidationError(field, env.Error)
	default:
		return domain.NewRemoteOperationError(op, fmt.Errorf("%w: status=%d", ErrCatalogBadStatus, resp.StatusCode))
	}
}

func detailInt(details map[string]any, key string) int64 {
	v, _ := details[key].(float64)
	return int64(v)
}
