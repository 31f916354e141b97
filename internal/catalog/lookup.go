package catalog

import (
	"strings"

	"github.com/Pietro923/Proyecto-Mel/internal/domain"
)

// List is a catalog snapshot already fetched from the store.
type List []domain.Product

type SearchResult struct {
	Query     string           `json:"query"`
	Products  []domain.Product `json:"products"`
	NoMatches bool             `json:"no_matches"`
}

// FilterCategory keeps products whose category contains text, ignoring
// case. Blank text returns the whole list.
func (l List) FilterCategory(text string) SearchResult {
	q := strings.TrimSpace(text)
	if q == "" {
		all := make([]domain.Product, len(l))
		copy(all, l)
		return SearchResult{Products: all}
	}

	needle := strings.ToLower(q)
	out := make([]domain.Product, 0, len(l))
	for _, p := range l {
		if strings.Contains(strings.ToLower(p.Category), needle) {
			out = append(out, p)
		}
	}
	return SearchResult{Query: q, Products: out, NoMatches: len(out) == 0}
}
