package listing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/pitabwire/erpconsole/model"
)

type call struct {
	page    int
	size    int
	filters model.Filters
}

// dataset serves pages out of a fixed number of integer items.
type dataset struct {
	mu    sync.Mutex
	total int
	calls []call
	err   error
}

func (d *dataset) fetch(_ context.Context, page, size int, filters model.Filters) (model.PagedResult[int], error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, call{page: page, size: size, filters: filters})
	if d.err != nil {
		return model.PagedResult[int]{}, d.err
	}
	var items []int
	for i := (page - 1) * size; i < page*size && i < d.total; i++ {
		items = append(items, i)
	}
	return model.NewPagedResult(items, d.total, page, size), nil
}

func (d *dataset) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func (d *dataset) lastCall() call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[len(d.calls)-1]
}

func newController(t *testing.T, d *dataset, opts ...Option) *Controller[int] {
	t.Helper()
	c, err := New(d.fetch, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_PageSize(t *testing.T) {
	d := &dataset{}
	if _, err := New(d.fetch, WithPageSize(0)); !errors.Is(err, ErrInvalidPageSize) {
		t.Errorf("New(pageSize=0) error = %v, want ErrInvalidPageSize", err)
	}
	c := newController(t, d)
	if got := c.State().PageSize; got != DefaultPageSize {
		t.Errorf("PageSize = %d, want %d", got, DefaultPageSize)
	}
	if _, err := New[int](nil); err == nil {
		t.Error("New(nil) should fail")
	}
}

func TestRefresh_LoadsFirstPage(t *testing.T) {
	d := &dataset{total: 25}
	c := newController(t, d)
	c.Refresh()
	c.Wait()

	s := c.State()
	if s.Loading {
		t.Error("Loading = true after Wait")
	}
	if s.TotalItems != 25 || s.TotalPages != 3 {
		t.Errorf("TotalItems/TotalPages = %d/%d, want 25/3", s.TotalItems, s.TotalPages)
	}
	if len(s.Items) != 10 {
		t.Errorf("len(Items) = %d, want 10", len(s.Items))
	}
}

func TestGoToPage_ClampsWithoutFetch(t *testing.T) {
	d := &dataset{total: 5}
	c := newController(t, d)
	c.Refresh()
	c.Wait()
	before := d.callCount()

	if c.GoToPage(5) {
		t.Error("GoToPage(5) = true, want false when only one page exists")
	}
	if got := c.State().CurrentPage; got != 1 {
		t.Errorf("CurrentPage = %d, want 1", got)
	}
	if d.callCount() != before {
		t.Errorf("fetch called %d times, want no new fetch", d.callCount()-before)
	}
}

func TestGoToPage_Bounds(t *testing.T) {
	d := &dataset{total: 30}
	c := newController(t, d)
	c.Refresh()
	c.Wait()

	if !c.GoToPage(99) {
		t.Fatal("GoToPage(99) = false, want fetch of last page")
	}
	c.Wait()
	if got := c.State().CurrentPage; got != 3 {
		t.Errorf("CurrentPage = %d, want 3", got)
	}

	c.GoToPage(-4)
	c.Wait()
	if got := c.State().CurrentPage; got != 1 {
		t.Errorf("CurrentPage = %d, want 1", got)
	}
}

func TestLatestRequestWins(t *testing.T) {
	tests := []struct {
		name  string
		order []int
	}{
		{"newer answers first", []int{3, 2}},
		{"older answers first", []int{2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			release := map[int]chan struct{}{2: make(chan struct{}), 3: make(chan struct{})}
			returned := map[int]chan struct{}{2: make(chan struct{}), 3: make(chan struct{})}
			fetch := func(_ context.Context, page, size int, _ model.Filters) (model.PagedResult[int], error) {
				if ch, ok := release[page]; ok {
					<-ch
					defer close(returned[page])
				}
				return model.NewPagedResult([]int{page * 100}, 100, page, size), nil
			}
			c, err := New(fetch)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			c.Refresh()
			c.Wait()

			c.GoToPage(2)
			c.GoToPage(3)

			for _, page := range tt.order {
				close(release[page])
				<-returned[page]
			}
			c.Wait()

			s := c.State()
			if s.CurrentPage != 3 {
				t.Errorf("CurrentPage = %d, want 3", s.CurrentPage)
			}
			if len(s.Items) != 1 || s.Items[0] != 300 {
				t.Errorf("Items = %v, want page 3 items [300]", s.Items)
			}
		})
	}
}

func TestSetFilters_ResetsPage(t *testing.T) {
	d := &dataset{total: 100}
	c := newController(t, d)
	c.Refresh()
	c.Wait()
	c.GoToPage(4)
	c.Wait()
	before := d.callCount()

	c.SetFilters(model.Filters{"name": "x"})
	c.Wait()

	if d.callCount() != before+1 {
		t.Fatalf("fetch called %d times, want exactly 1", d.callCount()-before)
	}
	last := d.lastCall()
	if last.page != 1 || last.filters["name"] != "x" {
		t.Errorf("fetch(%d, %v), want fetch(1, {name:x})", last.page, last.filters)
	}
	if got := c.State().CurrentPage; got != 1 {
		t.Errorf("CurrentPage = %d, want 1", got)
	}
}

func TestSetFilters_CopiesInput(t *testing.T) {
	d := &dataset{total: 1}
	c := newController(t, d)
	f := model.Filters{"name": "x"}
	c.SetFilters(f)
	c.Wait()
	f["name"] = "y"
	if got := c.State().Filters["name"]; got != "x" {
		t.Errorf("Filters[name] = %q, want x", got)
	}
}

func TestFetchError_ClearsState(t *testing.T) {
	d := &dataset{total: 40}
	var handled []error
	c := newController(t, d, WithErrorHandler(func(err error) { handled = append(handled, err) }))
	c.Refresh()
	c.Wait()

	d.mu.Lock()
	d.err = model.NewApplicationError(400, "Không có quyền truy cập")
	d.mu.Unlock()
	c.GoToPage(2)
	c.Wait()

	s := c.State()
	if len(s.Items) != 0 || s.TotalItems != 0 || s.Loading {
		t.Errorf("state after error = %+v, want empty and not loading", s)
	}
	if len(handled) != 1 {
		t.Fatalf("error handler called %d times, want 1", len(handled))
	}
	if env, ok := model.AsErrorEnvelope(handled[0]); !ok || env.Message != "Không có quyền truy cập" {
		t.Errorf("handled error = %v", handled[0])
	}
	if s.Empty() {
		t.Error("Empty() = true while an error is shown")
	}
}

func TestReclampAfterShrink(t *testing.T) {
	d := &dataset{total: 50}
	c := newController(t, d)
	c.Refresh()
	c.Wait()
	c.GoToPage(5)
	c.Wait()

	d.mu.Lock()
	d.total = 12
	d.mu.Unlock()
	c.Refresh()
	c.Wait()

	s := c.State()
	if s.CurrentPage != 2 {
		t.Errorf("CurrentPage = %d, want 2 after shrink", s.CurrentPage)
	}
	if len(s.Items) != 2 {
		t.Errorf("len(Items) = %d, want 2", len(s.Items))
	}
	if d.lastCall().page != 2 {
		t.Errorf("last fetch page = %d, want 2", d.lastCall().page)
	}
}

func TestEmptyResult(t *testing.T) {
	d := &dataset{total: 0}
	c := newController(t, d)
	c.Refresh()
	c.Wait()

	s := c.State()
	if s.TotalPages != 0 {
		t.Errorf("TotalPages = %d, want 0", s.TotalPages)
	}
	if s.Items == nil || len(s.Items) != 0 {
		t.Errorf("Items = %v, want empty slice", s.Items)
	}
	if !s.Empty() {
		t.Error("Empty() = false, want true")
	}
}

func TestClamp(t *testing.T) {
	tests := []struct{ page, total, want int }{
		{0, 0, 1},
		{1, 0, 1},
		{3, 0, 1},
		{3, 5, 3},
		{9, 5, 5},
		{-2, 5, 1},
	}
	for _, tt := range tests {
		if got := Clamp(tt.page, tt.total); got != tt.want {
			t.Errorf("Clamp(%d, %d) = %d, want %d", tt.page, tt.total, got, tt.want)
		}
	}
}
