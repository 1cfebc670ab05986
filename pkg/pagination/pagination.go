package pagination

const (
	// DefaultSize is the storefront page size when none is requested.
	DefaultSize = 12
	// MaxSize caps how many rows any page may carry.
	MaxSize = 100
)

// Params holds 1-based page inputs from controllers or services.
type Params struct {
	Page int
	Size int
}

// Window is a resolved page over a collection of known length.
type Window struct {
	Page       int `json:"page"`
	Size       int `json:"page_size"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
	Offset     int `json:"-"`
	End        int `json:"-"`
}

// NormalizeSize enforces the default and maximum sizes.
func NormalizeSize(size, defaultSize, maxSize int) int {
	if defaultSize <= 0 {
		defaultSize = DefaultSize
	}
	if maxSize <= 0 {
		maxSize = MaxSize
	}
	if size <= 0 {
		return defaultSize
	}
	if size > maxSize {
		return maxSize
	}
	return size
}

// TotalPages returns ceil(total/size).
func TotalPages(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// Resolve clamps the requested page into [1, max(totalPages, 1)] and returns
// the slice bounds for it.
func Resolve(params Params, total int) Window {
	size := params.Size
	if size <= 0 {
		size = DefaultSize
	}
	pages := TotalPages(total, size)

	page := params.Page
	if page < 1 {
		page = 1
	}
	if last := max(pages, 1); page > last {
		page = last
	}

	offset := (page - 1) * size
	if offset > total {
		offset = total
	}
	end := min(offset+size, total)

	return Window{
		Page:       page,
		Size:       size,
		TotalItems: total,
		TotalPages: pages,
		Offset:     offset,
		End:        end,
	}
}

// Slice returns the items of the resolved window.
func Slice[T any](items []T, params Params) ([]T, Window) {
	w := Resolve(params, len(items))
	out := make([]T, w.End-w.Offset)
	copy(out, items[w.Offset:w.End])
	return out, w
}
