// Package posclient is a typed client for the public HTTP API served by the
// gateway.
package posclient

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
	"github.com/Pietro923/Proyecto-Mel/internal/sales"
	"github.com/Pietro923/Proyecto-Mel/pkg/kit"
)

var ErrUnavailable = errors.New("server unavailable")

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status    int
	Message   string
	Details   map[string]any
	RequestID string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("%d %s (request %s)", e.Status, e.Message, e.RequestID)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

type Client struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func New(baseURL, token string) *Client {
	if u, err := url.Parse(baseURL); err == nil && u.Scheme != "" && u.Host != "" {
		baseURL = strings.TrimRight(baseURL, "/")
	}
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		Client:  &http.Client{Timeout: 10 * time.Second, Transport: kit.TracedTransport(nil)},
	}
}

type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *Client) Login(ctx context.Context, email, password string) (Token, error) {
	var tok Token
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, &tok)
	return tok, err
}

func (c *Client) Register(ctx context.Context, email, password string) (Identity, error) {
	var id Identity
	err := c.do(ctx, http.MethodPost, "/auth/register", map[string]string{"email": email, "password": password}, &id)
	return id, err
}

func (c *Client) WhoAmI(ctx context.Context) (Identity, error) {
	var id Identity
	err := c.do(ctx, http.MethodGet, "/auth/whoami", nil, &id)
	return id, err
}

func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var out []domain.Product
	err := c.do(ctx, http.MethodGet, "/products", nil, &out)
	return out, err
}

func (c *Client) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	var p domain.Product
	err := c.do(ctx, http.MethodGet, "/products/"+strconv.FormatInt(id, 10), nil, &p)
	return p, err
}

func (c *Client) SearchProducts(ctx context.Context, category string) (catalog.SearchResult, error) {
	var res catalog.SearchResult
	err := c.do(ctx, http.MethodGet, "/products/search?category="+url.QueryEscape(category), nil, &res)
	return res, err
}

func (c *Client) CreateProduct(ctx context.Context, req catalog.CreateRequest) (domain.Product, error) {
	var p domain.Product
	err := c.do(ctx, http.MethodPost, "/products", req, &p)
	return p, err
}

func (c *Client) UpdateProduct(ctx context.Context, id int64, changes domain.ProductChanges) (domain.Product, error) {
	var p domain.Product
	err := c.do(ctx, http.MethodPut, "/products/"+strconv.FormatInt(id, 10), changes, &p)
	return p, err
}

func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/products/"+strconv.FormatInt(id, 10), nil, nil)
}

func (c *Client) NextProductID(ctx context.Context) (int64, error) {
	var out struct {
		NextID int64 `json:"next_id"`
	}
	err := c.do(ctx, http.MethodPost, "/products/next-id", nil, &out)
	return out.NextID, err
}

func (c *Client) ListSales(ctx context.Context) ([]domain.Sale, error) {
	var out []domain.Sale
	err := c.do(ctx, http.MethodGet, "/sales", nil, &out)
	return out, err
}

func (c *Client) RegisterSale(ctx context.Context, req domain.SaleRequest) (sales.Receipt, error) {
	var rc sales.Receipt
	err := c.do(ctx, http.MethodPost, "/sales", req, &rc)
	return rc, err
}

func (c *Client) SalesSummary(ctx context.Context, date string) (sales.Summary, error) {
	path := "/sales/summary"
	if date != "" {
		path += "?date=" + url.QueryEscape(date)
	}
	var sum sales.Summary
	err := c.do(ctx, http.MethodGet, path, nil, &sum)
	return sum, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
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
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
			return fmt.Errorf("%w: timeout", ErrUnavailable)
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, kit.MaxBodyBytes))

	var er struct {
		Error     string         `json:"error"`
		Details   map[string]any `json:"details"`
		RequestID string         `json:"request_id"`
	}
	if err := json.Unmarshal(raw, &er); err != nil || er.Error == "" {
		er.Error = strings.TrimSpace(string(raw))
		if er.Error == "" {
			er.Error = http.StatusText(resp.StatusCode)
		}
	}
	return &APIError{
		Status:    resp.StatusCode,
		Message:   er.Error,
		Details:   er.Details,
		RequestID: er.RequestID,
	}
}
