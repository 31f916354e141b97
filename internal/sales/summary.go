package sales

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Pietro923/Proyecto-Mel/internal/domain"
)

type Totals struct {
	Sales   int             `json:"sales"`
	Units   int64           `json:"units"`
	Revenue decimal.Decimal `json:"revenue"`
}

func (t *Totals) add(s domain.Sale) {
	t.Sales++
	t.Units += s.Quantity
	t.Revenue = t.Revenue.Add(s.Total)
}

// Summary aggregates the ledger for one day and for all time.
type Summary struct {
	Date    string `json:"date"`
	Day     Totals `json:"day"`
	AllTime Totals `json:"all_time"`
}

// Summary totals the ledger. A blank date means today.
func (r *Recorder) Summary(ctx context.Context, date string) (Summary, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		date = r.now().Format(domain.DateLayout)
	}
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return Summary{}, domain.NewValidationError("date", "must be YYYY-MM-DD")
	}

	ledger, err := r.List(ctx)
	if err != nil {
		return Summary{}, err
	}
	return summarize(date, ledger), nil
}

func summarize(date string, ledger []domain.Sale) Summary {
	out := Summary{Date: date}
	for _, s := range ledger {
		out.AllTime.add(s)
		if s.Date == date {
			out.Day.add(s)
		}
	}
	return out
}
