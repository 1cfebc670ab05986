package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 3, TotalPages(25, 10))
	assert.Equal(t, 2, TotalPages(20, 10))
	assert.Equal(t, 0, TotalPages(0, 10))
	assert.Equal(t, 1, TotalPages(1, 12))
}

func TestResolveClampsPage(t *testing.T) {
	w := Resolve(Params{Page: 5, Size: 10}, 25)
	assert.Equal(t, 3, w.Page)
	assert.Equal(t, 3, w.TotalPages)
	assert.Equal(t, 20, w.Offset)
	assert.Equal(t, 25, w.End)

	w = Resolve(Params{Page: -2, Size: 10}, 25)
	assert.Equal(t, 1, w.Page)
	assert.Equal(t, 0, w.Offset)
	assert.Equal(t, 10, w.End)
}

func TestResolveEmptyCollection(t *testing.T) {
	w := Resolve(Params{Page: 4, Size: 10}, 0)
	assert.Equal(t, 1, w.Page)
	assert.Equal(t, 0, w.TotalPages)
	assert.Equal(t, 0, w.Offset)
	assert.Equal(t, 0, w.End)
}

func TestSlice(t *testing.T) {
	items := make([]int, 25)
	for i := range items {
		items[i] = i + 1
	}
	page, w := Slice(items, Params{Page: 5, Size: 10})
	assert.Equal(t, []int{21, 22, 23, 24, 25}, page)
	assert.Equal(t, 3, w.Page)

	empty, _ := Slice([]int{}, Params{Page: 1, Size: 10})
	assert.Empty(t, empty)
}

func TestNormalizeSize(t *testing.T) {
	assert.Equal(t, 12, NormalizeSize(0, 12, 48))
	assert.Equal(t, 48, NormalizeSize(500, 12, 48))
	assert.Equal(t, 10, NormalizeSize(10, 12, 48))
	assert.Equal(t, DefaultSize, NormalizeSize(-1, 0, 0))
}
