package transport

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pitabwire/erpconsole/internal/access"
	"github.com/pitabwire/erpconsole/internal/backend"
	"github.com/pitabwire/erpconsole/internal/form"
	"github.com/pitabwire/erpconsole/internal/listing"
	"github.com/pitabwire/erpconsole/internal/observability"
	"github.com/pitabwire/erpconsole/model"
)

const maxRecordBody = 1 << 20

// Record is one backend record as the console passes it through.
type Record = map[string]any

// ValidationResult is returned by the validate endpoint for a clean form.
type ValidationResult struct {
	Valid  bool               `json:"valid"`
	Errors []model.FieldError `json:"errors"`
}

func identityOf(r *http.Request) *model.Identity {
	return model.IdentityFrom(r.Context())
}

// resource looks up the resource named in the URL and checks that the
// identity may perform op on it. On failure the response is written and ok
// is false.
func (a *api) resource(w http.ResponseWriter, r *http.Request, op string) (rd model.ResourceDefinition, ok bool) {
	name := chi.URLParam(r, "resource")
	rd, found := a.Registry.Resource(name)
	if !found {
		WriteNotFound(w, r, "Unknown resource "+strconv.Quote(name))
		return rd, false
	}
	if rd.ReadOnly && (op == "create" || op == "update" || op == "delete") {
		WriteForbidden(w, r, rd.Label+" is read-only")
		return rd, false
	}
	if !access.Allow(identityOf(r), rd.Access.For(op)) {
		if a.Metrics != nil {
			a.Metrics.RecordAccessDenied(rd.Name, op)
		}
		a.logger(r).Info("access denied")
		WriteForbidden(w, r, "You do not have permission to "+op+" "+rd.Label)
		return rd, false
	}
	return rd, true
}

func (a *api) endpoint(rd model.ResourceDefinition) *backend.Resource[Record] {
	opts := []backend.ResourceOption{backend.WithPagination(backend.Pagination{
		PageParam: rd.Pagination.PageParam,
		SizeParam: rd.Pagination.SizeParam,
	})}
	if rd.Schema != "" && a.Schemas != nil {
		opts = append(opts, backend.WithSchema(rd.Schema, a.Schemas))
	}
	return backend.NewResource[Record](a.Backend, rd.Name, rd.Path, opts...)
}

// handleListResource serves one page of a resource. A page index past the
// end of the collection is answered with the last page.
func (a *api) handleListResource(w http.ResponseWriter, r *http.Request) {
	rd, ok := a.resource(w, r, "list")
	if !ok {
		return
	}

	pageSize := a.pageSize(r, rd)
	params := model.ListParams{
		PageIndex: max(queryInt(r, "pageIndex", 1), 1),
		PageSize:  pageSize,
		Filters:   declaredFilters(rd, queryMap(r, "filter")),
	}

	ctx, span := observability.StartSpan(r.Context(), "resource.list",
		observability.AttrResource.String(rd.Name),
		observability.AttrOperation.String("list"),
		observability.AttrPageIndex.Int(params.PageIndex),
	)
	endpoint := a.endpoint(rd)
	page, err := endpoint.List(ctx, params)

	clamped := false
	if err == nil {
		size := page.PageSize
		if size < 1 {
			size = pageSize
		}
		if last := listing.TotalPages(page.TotalItems, size); last > 0 && params.PageIndex > last {
			clamped = true
			params.PageIndex = last
			page, err = endpoint.List(ctx, params)
		}
	}
	observability.EndSpanWithError(span, err)
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}

	index, size := page.PageIndex, page.PageSize
	if index < 1 {
		index = params.PageIndex
	}
	if size < 1 {
		size = pageSize
	}
	if a.Metrics != nil {
		a.Metrics.RecordListPage(rd.Name, clamped)
	}
	WriteData(w, http.StatusOK, model.NewPagedResult(page.Items, page.TotalItems, index, size))
}

func (a *api) handleGetResource(w http.ResponseWriter, r *http.Request) {
	rd, ok := a.resource(w, r, "view")
	if !ok {
		return
	}
	rec, err := a.endpoint(rd).Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, rec)
}

func (a *api) handleCreateResource(w http.ResponseWriter, r *http.Request) {
	rd, ok := a.resource(w, r, "create")
	if !ok {
		return
	}
	values, ok := a.validForm(w, r, rd)
	if !ok {
		return
	}
	rec, err := a.endpoint(rd).Create(r.Context(), values)
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}
	WriteData(w, http.StatusCreated, rec)
}

func (a *api) handleUpdateResource(w http.ResponseWriter, r *http.Request) {
	rd, ok := a.resource(w, r, "update")
	if !ok {
		return
	}
	values, ok := a.validForm(w, r, rd)
	if !ok {
		return
	}
	rec, err := a.endpoint(rd).Update(r.Context(), chi.URLParam(r, "id"), values)
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, rec)
}

func (a *api) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	rd, ok := a.resource(w, r, "delete")
	if !ok {
		return
	}
	if err := a.endpoint(rd).Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeFailure(w, r, err)
		return
	}
	WriteData[any](w, http.StatusOK, nil)
}

// handleValidateResource checks a form without submitting it. Either the
// create or the update permission is enough.
func (a *api) handleValidateResource(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "resource")
	rd, found := a.Registry.Resource(name)
	if !found {
		WriteNotFound(w, r, "Unknown resource "+strconv.Quote(name))
		return
	}
	id := identityOf(r)
	if !access.Allow(id, rd.Access.For("create")) && !access.Allow(id, rd.Access.For("update")) {
		if a.Metrics != nil {
			a.Metrics.RecordAccessDenied(rd.Name, "validate")
		}
		WriteForbidden(w, r, "You do not have permission to edit "+rd.Label)
		return
	}
	if _, ok := a.validForm(w, r, rd); !ok {
		return
	}
	WriteData(w, http.StatusOK, ValidationResult{Valid: true, Errors: []model.FieldError{}})
}

// validForm decodes the request body and applies the field rules of rd.
// Invalid forms are answered with 422 and a summary message.
func (a *api) validForm(w http.ResponseWriter, r *http.Request, rd model.ResourceDefinition) (Record, bool) {
	var values Record
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRecordBody)).Decode(&values); err != nil {
		WriteError(w, r, model.NewBadRequestError("Request body must be a JSON object"))
		return nil, false
	}
	if values == nil {
		values = Record{}
	}
	if errs := a.Forms.Validate(rd.Fields, values); len(errs) > 0 {
		if a.Metrics != nil {
			a.Metrics.RecordFormValidationFailure(rd.Name)
		}
		WriteValidationError(w, r, form.Summary(errs), errs)
		return nil, false
	}
	return values, true
}

func (a *api) pageSize(r *http.Request, rd model.ResourceDefinition) int {
	cfg := a.Config.Backend.Pagination
	def := rd.Pagination.PageSize
	if def < 1 {
		def = cfg.DefaultPageSize
	}
	if def < 1 {
		def = listing.DefaultPageSize
	}
	size := queryInt(r, "pageSize", def)
	if size < 1 {
		size = def
	}
	if cfg.MaxPageSize > 0 && size > cfg.MaxPageSize {
		size = cfg.MaxPageSize
	}
	return size
}

// declaredFilters drops filters the resource does not offer. A resource
// without declared filters forwards none.
func declaredFilters(rd model.ResourceDefinition, requested map[string]string) model.Filters {
	out := model.Filters{}
	for _, f := range rd.Filters {
		if v, ok := requested[f.Name]; ok && v != "" {
			out[f.Name] = v
		}
	}
	return out
}

// queryInt extracts an integer query param with a default.
func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// queryMap extracts all query params with a given prefix as a map.
// e.g., filter[status]=active → {"status": "active"}
func queryMap(r *http.Request, prefix string) map[string]string {
	result := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(key) > len(prefix)+2 && key[:len(prefix)+1] == prefix+"[" && key[len(key)-1] == ']' {
			field := key[len(prefix)+1 : len(key)-1]
			if len(values) > 0 {
				result[field] = values[0]
			}
		}
	}
	return result
}
