package definition

import (
	"errors"
	"testing"

	"github.com/pitabwire/erpconsole/model"
)

type schemaSet map[string]bool

func (s schemaSet) Has(name string) bool { return s[name] }

type failingRules struct{}

func (failingRules) Check(map[string]model.FieldRule) error { return errors.New("bad pattern") }

func codes(errs []VError) map[string]int {
	out := map[string]int{}
	for _, e := range errs {
		out[e.Code]++
	}
	return out
}

func TestValidator_validDefinitions(t *testing.T) {
	v := NewValidator(nil, schemaSet{"Employee": true})
	if errs := v.Validate(loadTestDefs(t)); len(errs) != 0 {
		t.Fatalf("Validate() = %v, want no errors", errs)
	}
}

func TestValidator_unknownSchema(t *testing.T) {
	v := NewValidator(nil, schemaSet{})
	errs := v.Validate(loadTestDefs(t))
	if got := codes(errs)["UNKNOWN_SCHEMA"]; got != 1 {
		t.Errorf("UNKNOWN_SCHEMA errors = %d, want 1 (%v)", got, errs)
	}
}

func TestValidator_structuralErrors(t *testing.T) {
	defs := []model.DomainDefinition{
		{Domain: "hr", Resources: []model.ResourceDefinition{
			{Name: "Employees", Label: "", Path: "api/employees"},
			{Name: "payroll", Label: "Payroll", Path: "/api/payroll",
				Access:     model.ResourceAccess{List: model.Requirement{Permissions: []string{"payroll:view"}, Match: "some"}},
				Filters:    []model.FilterDefinition{{Label: "Month"}},
				Columns:    []model.ColumnDefinition{{Label: "Amount"}},
				Pagination: model.PaginationOverride{PageSize: -1},
			},
		}},
		{Domain: "hr", Resources: []model.ResourceDefinition{
			{Name: "payroll", Label: "Payroll", Path: "/api/payroll"},
		}},
		{Domain: ""},
	}

	got := codes(NewValidator(nil, nil).Validate(defs))
	want := map[string]int{
		"INVALID_NAME":  1,
		"INVALID_PATH":  1,
		"INVALID_VALUE": 3,
		"DUPLICATE":     2,
		"REQUIRED":      5,
	}
	for code, n := range want {
		if got[code] != n {
			t.Errorf("%s errors = %d, want %d (all: %v)", code, got[code], n, got)
		}
	}
}

func TestValidator_fieldRules(t *testing.T) {
	defs := []model.DomainDefinition{{Domain: "hr", Resources: []model.ResourceDefinition{{
		Name: "employees", Label: "Employees", Path: "/api/employees",
		Fields: map[string]model.FieldRule{"code": {Pattern: "("}},
	}}}}

	errs := NewValidator(failingRules{}, nil).Validate(defs)
	if codes(errs)["INVALID_RULE"] != 1 {
		t.Errorf("Validate() = %v, want one INVALID_RULE", errs)
	}
}
