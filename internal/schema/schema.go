// Package schema checks backend list items against the component schemas of
// the backend's OpenAPI document.
package schema

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
	"go.uber.org/zap"

	"github.com/pitabwire/erpconsole/model"
)

// Mode controls what happens when an item does not match its schema.
type Mode string

const (
	// ModeOff skips validation.
	ModeOff Mode = "off"
	// ModeWarn logs mismatches and lets the data through.
	ModeWarn Mode = "warn"
	// ModeStrict fails the request.
	ModeStrict Mode = "strict"
)

// Registry holds the component schemas of one OpenAPI document.
type Registry struct {
	schemas map[string]*openapi3.Schema
}

// Load reads the OpenAPI document at path.
func Load(ctx context.Context, path string) (*Registry, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false

	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: loading %s: %w", path, err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("schema: validating %s: %w", path, err)
	}

	reg := &Registry{schemas: make(map[string]*openapi3.Schema)}
	if doc.Components != nil {
		for name, ref := range doc.Components.Schemas {
			if ref != nil && ref.Value != nil {
				reg.schemas[name] = ref.Value
			}
		}
	}
	return reg, nil
}

// Has reports whether the document defines a schema called name.
func (r *Registry) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.schemas[name]
	return ok
}

// Names returns the schema names in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.schemas))
	for n := range r.schemas {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Mismatch describes one item that failed validation.
type Mismatch struct {
	Index int
	Err   error
}

// Check validates items against schema name and returns every mismatch.
func (r *Registry) Check(name string, items []any) ([]Mismatch, error) {
	s, ok := r.schemas[name]
	if !ok {
		return nil, fmt.Errorf("schema: unknown schema %q", name)
	}
	var out []Mismatch
	for i, item := range items {
		if err := s.VisitJSON(item, openapi3.MultiErrors()); err != nil {
			out = append(out, Mismatch{Index: i, Err: err})
		}
	}
	return out, nil
}

// Validator applies a Registry according to a Mode.
type Validator struct {
	registry *Registry
	mode     Mode
	logger   *zap.Logger
	observe  func(schema string)
}

// NewValidator returns a validator. observe, when non-nil, is called once
// per mismatching item.
func NewValidator(reg *Registry, mode Mode, logger *zap.Logger, observe func(schema string)) (*Validator, error) {
	switch mode {
	case ModeOff, ModeWarn, ModeStrict:
	case "":
		mode = ModeOff
	default:
		return nil, fmt.Errorf("schema: unknown mode %q", mode)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{registry: reg, mode: mode, logger: logger, observe: observe}, nil
}

// Mode returns the configured mode.
func (v *Validator) Mode() Mode { return v.mode }

// ValidateItems checks items against schema. Unknown schemas are skipped.
func (v *Validator) ValidateItems(ctx context.Context, schema string, items []any) error {
	if v.mode == ModeOff || !v.registry.Has(schema) {
		return nil
	}
	mismatches, err := v.registry.Check(schema, items)
	if err != nil {
		return err
	}
	if len(mismatches) == 0 {
		return nil
	}

	for _, m := range mismatches {
		if v.observe != nil {
			v.observe(schema)
		}
		v.logger.Warn("backend item does not match schema",
			zap.String("schema", schema),
			zap.Int("index", m.Index),
			zap.Error(m.Err),
		)
	}
	if v.mode == ModeStrict {
		return &model.ErrorEnvelope{
			Code:    model.ErrInternalError,
			Message: fmt.Sprintf("The backend returned %d malformed %s record(s)", len(mismatches), schema),
			Status:  http.StatusBadGateway,
		}
	}
	return nil
}
