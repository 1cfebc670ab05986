package listings

import (
	"bytes"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/lootmarket-backend/pkg/enums"
	"github.com/angelmondragon/lootmarket-backend/pkg/pagination"
)

// Filter narrows and orders a listing collection. Zero values mean "all".
type Filter struct {
	CategorySlug string
	GameID       uuid.UUID
	Search       string
	Sort         enums.ListingSort
}

// Result is one resolved page of a filtered collection.
type Result struct {
	Items []Listing `json:"items"`
	pagination.Window
}

// Apply filters, sorts and paginates items without mutating the input.
func Apply(items []Listing, f Filter, params pagination.Params) Result {
	matched := make([]Listing, 0, len(items))
	needle := strings.ToLower(strings.TrimSpace(f.Search))
	for _, item := range items {
		if f.CategorySlug != "" && item.Category.Slug != f.CategorySlug {
			continue
		}
		if f.GameID != uuid.Nil && item.Game.ID != f.GameID {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(item.Title), needle) {
			continue
		}
		matched = append(matched, item)
	}

	slices.SortFunc(matched, comparator(f.Sort))

	page, window := pagination.Slice(matched, params)
	return Result{Items: page, Window: window}
}

func comparator(sort enums.ListingSort) func(a, b Listing) int {
	var primary func(a, b Listing) int
	switch sort {
	case enums.ListingSortPriceAsc:
		primary = func(a, b Listing) int { return a.Price.Cmp(b.Price) }
	case enums.ListingSortPriceDesc:
		primary = func(a, b Listing) int { return b.Price.Cmp(a.Price) }
	case enums.ListingSortPopular:
		primary = func(a, b Listing) int { return cmpInt64(b.OrderCount, a.OrderCount) }
	default:
		primary = func(a, b Listing) int { return b.CreatedAt.Compare(a.CreatedAt) }
	}
	return func(a, b Listing) int {
		if c := primary(a, b); c != 0 {
			return c
		}
		return bytes.Compare(a.ID[:], b.ID[:])
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
