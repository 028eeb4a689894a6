package model

import "testing"

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total, size, want int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 10, 3},
		{5, 0, 0},
		{-3, 10, 0},
	}
	for _, tt := range tests {
		if got := TotalPages(tt.total, tt.size); got != tt.want {
			t.Errorf("TotalPages(%d, %d) = %d, want %d", tt.total, tt.size, got, tt.want)
		}
	}
}

func TestNewPagedResult(t *testing.T) {
	p := NewPagedResult([]int{1, 2}, 25, 2, 10)
	if p.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", p.TotalPages)
	}
	if !p.HasPreviousPage || !p.HasNextPage {
		t.Errorf("flags = prev %v next %v, want both true", p.HasPreviousPage, p.HasNextPage)
	}

	empty := NewPagedResult[int](nil, 0, 0, 0)
	if empty.Items == nil {
		t.Error("Items should be an empty slice, not nil")
	}
	if empty.PageIndex != 1 || empty.PageSize != 1 {
		t.Errorf("PageIndex/PageSize = %d/%d, want 1/1", empty.PageIndex, empty.PageSize)
	}
	if empty.TotalPages != 0 || empty.HasNextPage {
		t.Errorf("empty result should have no pages, got %+v", empty)
	}
}
