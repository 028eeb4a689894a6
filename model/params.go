package model

import (
	"maps"
	"sort"
)

// Filters holds the active list filters, keyed by field name.
type Filters map[string]string

// Clone returns an independent copy. A nil receiver yields an empty map.
func (f Filters) Clone() Filters {
	out := make(Filters, len(f))
	maps.Copy(out, f)
	return out
}

// Keys returns the filter names in lexical order.
func (f Filters) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ListParams are the query parameters of one list request.
type ListParams struct {
	PageIndex int
	PageSize  int
	Filters   Filters
}
