package model

// PagedResult is one page of a server-side paginated collection.
type PagedResult[T any] struct {
	Items           []T  `json:"items"`
	TotalItems      int  `json:"totalItems"`
	PageIndex       int  `json:"pageIndex"`
	PageSize        int  `json:"pageSize"`
	TotalPages      int  `json:"totalPages"`
	HasPreviousPage bool `json:"hasPreviousPage"`
	HasNextPage     bool `json:"hasNextPage"`
}

// NewPagedResult builds a page and derives the page count and navigation
// flags from the totals.
func NewPagedResult[T any](items []T, totalItems, pageIndex, pageSize int) PagedResult[T] {
	if items == nil {
		items = []T{}
	}
	if totalItems < 0 {
		totalItems = 0
	}
	if pageIndex < 1 {
		pageIndex = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	tp := TotalPages(totalItems, pageSize)
	return PagedResult[T]{
		Items:           items,
		TotalItems:      totalItems,
		PageIndex:       pageIndex,
		PageSize:        pageSize,
		TotalPages:      tp,
		HasPreviousPage: pageIndex > 1,
		HasNextPage:     pageIndex < tp,
	}
}

// TotalPages returns ceil(totalItems/pageSize), or 0 when there is nothing to
// page over.
func TotalPages(totalItems, pageSize int) int {
	if totalItems <= 0 || pageSize < 1 {
		return 0
	}
	return (totalItems + pageSize - 1) / pageSize
}

// Response is the normalized envelope every caller consumes after the
// backend payload has passed through the envelope adapter.
type Response[T any] struct {
	Data       T      `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode"`
}

// ErrorResponse is the normalized envelope written for failed requests.
type ErrorResponse struct {
	Data            any          `json:"data"`
	Message         string       `json:"message"`
	Success         bool         `json:"success"`
	StatusCode      int          `json:"statusCode"`
	Code            string       `json:"code"`
	Errors          []FieldError `json:"errors,omitempty"`
	TraceID         string       `json:"traceId,omitempty"`
	Redirect        string       `json:"redirect,omitempty"`
	RedirectAfterMs int64        `json:"redirectAfterMs,omitempty"`
}
