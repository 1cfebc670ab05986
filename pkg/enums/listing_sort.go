package enums

import "fmt"

// ListingSort selects the catalog ordering.
type ListingSort string

const (
	ListingSortNewest    ListingSort = "newest"
	ListingSortPriceAsc  ListingSort = "price-asc"
	ListingSortPriceDesc ListingSort = "price-desc"
	ListingSortPopular   ListingSort = "popular"
)

var validListingSorts = []ListingSort{
	ListingSortNewest,
	ListingSortPriceAsc,
	ListingSortPriceDesc,
	ListingSortPopular,
}

// legacy storefront values
var listingSortAliases = map[string]ListingSort{
	"price-low":  ListingSortPriceAsc,
	"price-high": ListingSortPriceDesc,
}

func (s ListingSort) String() string {
	return string(s)
}

func (s ListingSort) IsValid() bool {
	for _, candidate := range validListingSorts {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseListingSort converts raw input into a ListingSort; empty input means newest.
func ParseListingSort(value string) (ListingSort, error) {
	if value == "" {
		return ListingSortNewest, nil
	}
	for _, candidate := range validListingSorts {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	if alias, ok := listingSortAliases[value]; ok {
		return alias, nil
	}
	return "", fmt.Errorf("invalid sort %q", value)
}
