package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/pitabwire/erpconsole/internal/listing"
	"github.com/pitabwire/erpconsole/model"
)

// renderState prints a list state. An empty collection prints a notice in
// place of the table and the pagination footer.
func renderState(w io.Writer, rd model.ResourceDefinition, st listing.State[record]) {
	if st.Err != nil {
		fmt.Fprintf(w, "Error: %s\n", describe(st.Err))
		return
	}
	if st.Empty() {
		fmt.Fprintln(w, "No records found")
		renderFilters(w, st.Filters)
		return
	}

	cols := columns(rd, st.Items)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = strings.ToUpper(c.Label)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, item := range st.Items {
		row := make([]string, len(cols))
		for i, c := range cols {
			row[i] = cell(item[c.Field])
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "Page %d of %d (%d records)\n", st.CurrentPage, st.TotalPages, st.TotalItems)
	renderFilters(w, st.Filters)
}

func renderFilters(w io.Writer, f model.Filters) {
	if len(f) == 0 {
		return
	}
	parts := make([]string, 0, len(f))
	for _, k := range f.Keys() {
		parts = append(parts, k+"="+f[k])
	}
	fmt.Fprintf(w, "Filters: %s\n", strings.Join(parts, ", "))
}

// columns returns the configured columns, or the fields of the first item
// with the key field first.
func columns(rd model.ResourceDefinition, items []record) []model.ColumnDefinition {
	if len(rd.Columns) > 0 {
		return rd.Columns
	}
	if len(items) == 0 {
		return nil
	}
	key := rd.KeyField()
	fields := make([]string, 0, len(items[0]))
	for f := range items[0] {
		if f != key {
			fields = append(fields, f)
		}
	}
	slices.Sort(fields)
	if _, ok := items[0][key]; ok {
		fields = append([]string{key}, fields...)
	}
	out := make([]model.ColumnDefinition, len(fields))
	for i, f := range fields {
		out[i] = model.ColumnDefinition{Field: f, Label: f}
	}
	return out
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	}
	return fmt.Sprint(v)
}
