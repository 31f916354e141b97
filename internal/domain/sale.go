package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

// Sale is an immutable ledger entry. Total is fixed when the sale is
// created and never recomputed.
type Sale struct {
	ID          string          `json:"id,omitempty"`
	Client      string          `json:"client"`
	ProductName string          `json:"productName"`
	Quantity    int64           `json:"quantity"`
	Seller      string          `json:"seller"`
	Date        string          `json:"date"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Total       decimal.Decimal `json:"total"`
}

// SaleRequest is what a seller submits.
type SaleRequest struct {
	Client      string `json:"client"`
	ProductName string `json:"productName"`
	Quantity    int64  `json:"quantity"`
	Seller      string `json:"seller,omitempty"`
	Date        string `json:"date,omitempty"`
}

func (r *SaleRequest) Normalize() {
	r.Client = strings.TrimSpace(r.Client)
	r.ProductName = strings.TrimSpace(r.ProductName)
	r.Seller = strings.TrimSpace(r.Seller)
	r.Date = strings.TrimSpace(r.Date)
}

func (r SaleRequest) Validate() error {
	if r.Client == "" {
		return NewValidationError("client", "required")
	}
	if r.ProductName == "" {
		return NewValidationError("productName", "required")
	}
	if r.Quantity <= 0 {
		return NewValidationError("quantity", "must be greater than 0")
	}
	if r.Date != "" {
		if _, err := time.Parse(DateLayout, r.Date); err != nil {
			return NewValidationError("date", "must be YYYY-MM-DD")
		}
	}
	return nil
}

// NewSale prices a validated request at unitPrice.
func NewSale(r SaleRequest, unitPrice decimal.Decimal) Sale {
	return Sale{
		Client:      r.Client,
		ProductName: r.ProductName,
		Quantity:    r.Quantity,
		Seller:      r.Seller,
		Date:        r.Date,
		UnitPrice:   unitPrice,
		Total:       unitPrice.Mul(decimal.NewFromInt(r.Quantity)),
	}
}
