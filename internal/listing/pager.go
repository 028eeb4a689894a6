// Package listing drives server-side paginated lists: current page,
// filters, loading state and the guarantee that only the most recent fetch
// is ever applied.
package listing

import "github.com/pitabwire/erpconsole/model"

// DefaultPageSize is used when no page size is configured.
const DefaultPageSize = 10

// TotalPages returns ceil(totalItems/pageSize).
func TotalPages(totalItems, pageSize int) int {
	return model.TotalPages(totalItems, pageSize)
}

// Clamp limits page to [1, max(totalPages, 1)].
func Clamp(page, totalPages int) int {
	upper := max(totalPages, 1)
	if page < 1 {
		return 1
	}
	if page > upper {
		return upper
	}
	return page
}
