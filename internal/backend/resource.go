package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pitabwire/erpconsole/model"
)

// ItemValidator checks list items against a named schema. Implementations
// decide whether a mismatch is an error or only reported.
type ItemValidator interface {
	ValidateItems(ctx context.Context, schema string, items []any) error
}

// Pagination names the query parameters a resource pages with.
type Pagination struct {
	PageParam string
	SizeParam string
}

// Resource is a typed CRUD endpoint of the backend.
type Resource[T any] struct {
	client     *Client
	name       string
	path       string
	pagination Pagination
	schema     string
	validator  ItemValidator
}

// ResourceOption configures a Resource.
type ResourceOption func(*resourceOptions)

type resourceOptions struct {
	pagination Pagination
	schema     string
	validator  ItemValidator
}

// WithPagination overrides the client's page parameter names.
func WithPagination(p Pagination) ResourceOption {
	return func(o *resourceOptions) {
		if p.PageParam != "" {
			o.pagination.PageParam = p.PageParam
		}
		if p.SizeParam != "" {
			o.pagination.SizeParam = p.SizeParam
		}
	}
}

// WithSchema validates list items against schema using v.
func WithSchema(schema string, v ItemValidator) ResourceOption {
	return func(o *resourceOptions) {
		o.schema = schema
		o.validator = v
	}
}

// NewResource binds the collection at path. name labels metrics.
func NewResource[T any](c *Client, name, path string, opts ...ResourceOption) *Resource[T] {
	o := resourceOptions{pagination: Pagination{
		PageParam: c.cfg.Pagination.PageParam,
		SizeParam: c.cfg.Pagination.SizeParam,
	}}
	if o.pagination.PageParam == "" {
		o.pagination.PageParam = "pageIndex"
	}
	if o.pagination.SizeParam == "" {
		o.pagination.SizeParam = "pageSize"
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Resource[T]{
		client:     c,
		name:       name,
		path:       path,
		pagination: o.pagination,
		schema:     o.schema,
		validator:  o.validator,
	}
}

// Name returns the resource name.
func (r *Resource[T]) Name() string { return r.name }

// List fetches one page. A backend answering with a plain array is treated
// as a single page holding every item.
func (r *Resource[T]) List(ctx context.Context, params model.ListParams) (model.PagedResult[T], error) {
	q := url.Values{}
	for _, k := range params.Filters.Keys() {
		if v := params.Filters[k]; v != "" {
			q.Set(k, v)
		}
	}
	if params.PageIndex > 0 {
		q.Set(r.pagination.PageParam, strconv.Itoa(params.PageIndex))
	}
	if params.PageSize > 0 {
		q.Set(r.pagination.SizeParam, strconv.Itoa(params.PageSize))
	}

	res, err := r.client.Do(ctx, Request{Method: http.MethodGet, Path: r.path, Query: q, Resource: r.name})
	if err != nil {
		return model.PagedResult[T]{}, err
	}
	env, err := Decode[json.RawMessage](res)
	if err != nil {
		return model.PagedResult[T]{}, err
	}

	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return model.NewPagedResult[T](nil, 0, params.PageIndex, params.PageSize), nil
	}

	if data[0] == '[' {
		if err := r.validate(ctx, data); err != nil {
			return model.PagedResult[T]{}, err
		}
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return model.PagedResult[T]{}, fmt.Errorf("backend: decoding %s list: %w", r.name, err)
		}
		return model.NewPagedResult(items, len(items), 1, len(items)), nil
	}

	var page struct {
		Items json.RawMessage `json:"items"`
		model.PagedResult[T]
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return model.PagedResult[T]{}, fmt.Errorf("backend: decoding %s page: %w", r.name, err)
	}
	if len(page.Items) > 0 {
		if err := r.validate(ctx, page.Items); err != nil {
			return model.PagedResult[T]{}, err
		}
		if err := json.Unmarshal(page.Items, &page.PagedResult.Items); err != nil {
			return model.PagedResult[T]{}, fmt.Errorf("backend: decoding %s items: %w", r.name, err)
		}
	}
	out := page.PagedResult
	if out.Items == nil {
		out.Items = []T{}
	}
	return out, nil
}

func (r *Resource[T]) validate(ctx context.Context, items json.RawMessage) error {
	if r.validator == nil || r.schema == "" {
		return nil
	}
	var generic []any
	if err := json.Unmarshal(items, &generic); err != nil {
		return fmt.Errorf("backend: decoding %s items: %w", r.name, err)
	}
	return r.validator.ValidateItems(ctx, r.schema, generic)
}

// Get fetches one record.
func (r *Resource[T]) Get(ctx context.Context, id string) (T, error) {
	return r.one(ctx, http.MethodGet, r.itemPath(id), nil)
}

// Create posts a new record and returns what the backend stored.
func (r *Resource[T]) Create(ctx context.Context, body any) (T, error) {
	return r.one(ctx, http.MethodPost, r.path, body)
}

// Update replaces a record.
func (r *Resource[T]) Update(ctx context.Context, id string, body any) (T, error) {
	return r.one(ctx, http.MethodPut, r.itemPath(id), body)
}

// Delete removes a record.
func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	_, err := r.client.Do(ctx, Request{Method: http.MethodDelete, Path: r.itemPath(id), Resource: r.name})
	return err
}

func (r *Resource[T]) one(ctx context.Context, method, path string, body any) (T, error) {
	var zero T
	res, err := r.client.Do(ctx, Request{Method: method, Path: path, Body: body, Resource: r.name})
	if err != nil {
		return zero, err
	}
	env, err := Decode[T](res)
	if err != nil {
		return zero, err
	}
	return env.Data, nil
}

func (r *Resource[T]) itemPath(id string) string {
	return r.path + "/" + url.PathEscape(id)
}
