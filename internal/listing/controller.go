package listing

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/pitabwire/erpconsole/model"
)

// ErrInvalidPageSize is returned by New for page sizes below one.
var ErrInvalidPageSize = errors.New("listing: page size must be at least 1")

// Fetcher loads one page. A backend envelope with success=false must be
// reported as an error.
type Fetcher[T any] func(ctx context.Context, pageIndex, pageSize int, filters model.Filters) (model.PagedResult[T], error)

// State is a snapshot of the controller.
type State[T any] struct {
	Items       []T
	Loading     bool
	CurrentPage int
	PageSize    int
	TotalItems  int
	TotalPages  int
	Filters     model.Filters
	Err         error
}

// Empty reports whether the settled list has no records, which the views
// render as "No records found" instead of a pagination control.
func (s State[T]) Empty() bool {
	return !s.Loading && s.Err == nil && s.TotalItems == 0
}

type options struct {
	pageSize int
	onError  func(error)
	logger   *zap.Logger
	ctx      context.Context
}

// Option configures a Controller.
type Option func(*options)

// WithPageSize sets the number of items per page.
func WithPageSize(n int) Option {
	return func(o *options) { o.pageSize = n }
}

// WithErrorHandler registers the callback invoked when the latest fetch
// fails.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) { o.onError = fn }
}

// WithLogger sets the logger used for fetch diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithContext sets the parent context passed to every fetch.
func WithContext(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

// Controller owns the state of one paginated list. All methods are safe for
// concurrent use. Fetches run in the background; Wait blocks until they
// settle.
type Controller[T any] struct {
	fetch    Fetcher[T]
	pageSize int
	onError  func(error)
	logger   *zap.Logger
	ctx      context.Context

	mu          sync.Mutex
	items       []T
	loading     bool
	currentPage int
	totalItems  int
	filters     model.Filters
	err         error
	seq         uint64
	inflight    sync.WaitGroup
}

// New creates a controller on page 1 with no filters. No fetch is issued
// until Refresh, GoToPage or SetFilters is called.
func New[T any](fetch Fetcher[T], opts ...Option) (*Controller[T], error) {
	if fetch == nil {
		return nil, errors.New("listing: fetch function is required")
	}
	o := options{pageSize: DefaultPageSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.pageSize < 1 {
		return nil, ErrInvalidPageSize
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.ctx == nil {
		o.ctx = context.Background()
	}
	return &Controller[T]{
		fetch:       fetch,
		pageSize:    o.pageSize,
		onError:     o.onError,
		logger:      o.logger,
		ctx:         o.ctx,
		items:       []T{},
		currentPage: 1,
		filters:     model.Filters{},
	}, nil
}

// State returns a snapshot of the current state.
func (c *Controller[T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := make([]T, len(c.items))
	copy(items, c.items)
	return State[T]{
		Items:       items,
		Loading:     c.loading,
		CurrentPage: c.currentPage,
		PageSize:    c.pageSize,
		TotalItems:  c.totalItems,
		TotalPages:  TotalPages(c.totalItems, c.pageSize),
		Filters:     c.filters.Clone(),
		Err:         c.err,
	}
}

// GoToPage moves to page n, clamped to the known page range, and fetches it.
// It returns false without fetching when the clamped page is already the
// current one.
func (c *Controller[T]) GoToPage(n int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	target := Clamp(n, TotalPages(c.totalItems, c.pageSize))
	if target == c.currentPage {
		return false
	}
	c.currentPage = target
	c.issueLocked()
	return true
}

// SetFilters replaces the active filters, resets to page 1 and fetches.
func (c *Controller[T]) SetFilters(f model.Filters) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters = f.Clone()
	c.currentPage = 1
	c.issueLocked()
}

// Refresh re-fetches the current page with the current filters.
func (c *Controller[T]) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issueLocked()
}

// Wait blocks until every issued fetch has settled.
func (c *Controller[T]) Wait() {
	c.inflight.Wait()
}

func (c *Controller[T]) issueLocked() {
	c.seq++
	seq := c.seq
	page := c.currentPage
	filters := c.filters.Clone()
	c.loading = true
	c.inflight.Add(1)
	go c.run(seq, page, filters)
}

func (c *Controller[T]) run(seq uint64, page int, filters model.Filters) {
	defer c.inflight.Done()

	result, err := c.fetch(c.ctx, page, c.pageSize, filters)

	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		c.logger.Debug("discarding superseded page",
			zap.Int("page", page),
			zap.Uint64("seq", seq),
		)
		return
	}

	c.loading = false
	if err != nil {
		c.items = []T{}
		c.totalItems = 0
		c.err = err
		onError := c.onError
		c.mu.Unlock()
		c.logger.Warn("page fetch failed", zap.Int("page", page), zap.Error(err))
		if onError != nil {
			onError(err)
		}
		return
	}

	c.err = nil
	c.items = result.Items
	if c.items == nil {
		c.items = []T{}
	}
	c.totalItems = max(result.TotalItems, 0)

	totalPages := TotalPages(c.totalItems, c.pageSize)
	switch {
	case totalPages > 0 && c.currentPage > totalPages:
		// The collection shrank under us; show the new last page.
		c.currentPage = totalPages
		c.issueLocked()
	case totalPages == 0:
		c.currentPage = 1
	}
	c.mu.Unlock()
}
