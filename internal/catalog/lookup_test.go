package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Pietro923/Proyecto-Mel/internal/domain"
)

func TestFilterCategory(t *testing.T) {
	list := List{
		{ID: 1, Name: "Hammer", Category: "Hand Tools"},
		{ID: 2, Name: "Apple", Category: "Food"},
		{ID: 3, Name: "Saw", Category: "tools"},
		{ID: 4, Name: "Mystery"},
	}

	res := list.FilterCategory("TOOLS")
	assert.False(t, res.NoMatches)
	assert.Equal(t, []int64{1, 3}, ids(res.Products))

	res = list.FilterCategory("   ")
	assert.False(t, res.NoMatches)
	assert.Equal(t, []int64{1, 2, 3, 4}, ids(res.Products))

	res = list.FilterCategory("toys")
	assert.True(t, res.NoMatches)
	assert.NotNil(t, res.Products)
	assert.Empty(t, res.Products)
}

func TestFilterCategory_EmptyCatalog(t *testing.T) {
	res := List(nil).FilterCategory("")
	assert.False(t, res.NoMatches)
	assert.Empty(t, res.Products)

	res = List(nil).FilterCategory("food")
	assert.True(t, res.NoMatches)
}

func ids(ps []domain.Product) []int64 {
	out := make([]int64, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}
