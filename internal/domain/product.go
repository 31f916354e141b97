package domain

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices and totals are JSON numbers on the wire and in the store.
	decimal.MarshalJSONWithoutQuotes = true
}

// Product is a catalog entry. Its id doubles as the store key.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int64           `json:"quantity"`
	ImageURL    string          `json:"imageUrl"`
	Category    string          `json:"category,omitempty"`
}

func ProductKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (p Product) Key() string { return ProductKey(p.ID) }

// Normalize trims the free-text fields in place.
func (p *Product) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	p.ImageURL = strings.TrimSpace(p.ImageURL)
	p.Category = strings.TrimSpace(p.Category)
}

func (p Product) Validate() error {
	if p.ID <= 0 {
		return NewValidationError("id", "must be greater than 0")
	}
	return p.ValidateFields()
}

// ValidateFields checks everything but the id.
func (p Product) ValidateFields() error {
	if p.Name == "" {
		return NewValidationError("name", "required")
	}
	if p.Price.IsNegative() {
		return NewValidationError("price", "must not be negative")
	}
	if p.Quantity < 0 {
		return NewValidationError("quantity", "must not be negative")
	}
	if p.ImageURL != "" && !isHTTPURL(p.ImageURL) {
		return NewValidationError("imageUrl", "must be an absolute http(s) url")
	}
	return nil
}

// ProductChanges holds the mutable fields of an edit. Category is only
// replaced when set.
type ProductChanges struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int64           `json:"quantity"`
	ImageURL    string          `json:"imageUrl"`
	Category    *string         `json:"category,omitempty"`
}

// Apply returns p with the changes applied. The id never changes.
func (c ProductChanges) Apply(p Product) (Product, error) {
	p.Name = c.Name
	p.Description = c.Description
	p.Price = c.Price
	p.Quantity = c.Quantity
	p.ImageURL = c.ImageURL
	if c.Category != nil {
		p.Category = *c.Category
	}
	p.Normalize()

	if err := p.ValidateFields(); err != nil {
		return Product{}, err
	}
	return p, nil
}

// Patch is the partial document written to the store for an edit.
func (p Product) Patch() map[string]any {
	return map[string]any{
		"name":        p.Name,
		"description": p.Description,
		"price":       p.Price,
		"quantity":    p.Quantity,
		"imageUrl":    p.ImageURL,
		"category":    p.Category,
	}
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
