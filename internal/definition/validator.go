package definition

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pitabwire/erpconsole/model"
)

// VError describes one problem in a definition file.
type VError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e VError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// RuleChecker verifies field rules, reporting bad patterns or tags.
type RuleChecker interface {
	Check(rules map[string]model.FieldRule) error
}

// SchemaSet reports which response schemas the backend document defines.
type SchemaSet interface {
	Has(name string) bool
}

// Validator checks definitions before they are installed.
type Validator struct {
	rules   RuleChecker
	schemas SchemaSet
}

// NewValidator returns a validator. Either argument may be nil to skip the
// corresponding checks.
func NewValidator(rules RuleChecker, schemas SchemaSet) *Validator {
	return &Validator{rules: rules, schemas: schemas}
}

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Validate checks every definition and returns all problems found.
func (v *Validator) Validate(defs []model.DomainDefinition) []VError {
	var errs []VError
	seen := make(map[string]string)
	domains := make(map[string]bool)

	for i, def := range defs {
		prefix := fmt.Sprintf("definitions[%d]", i)
		if def.SourceFile != "" {
			prefix = def.SourceFile
		}

		switch {
		case def.Domain == "":
			errs = append(errs, VError{Path: prefix + ".domain", Code: "REQUIRED", Message: "domain is required"})
		case domains[def.Domain]:
			errs = append(errs, VError{Path: prefix + ".domain", Code: "DUPLICATE", Message: fmt.Sprintf("domain %q is defined twice", def.Domain)})
		}
		domains[def.Domain] = true

		if len(def.Resources) == 0 {
			errs = append(errs, VError{Path: prefix + ".resources", Code: "REQUIRED", Message: "at least one resource is required"})
		}
		for j, rd := range def.Resources {
			rp := fmt.Sprintf("%s.resources[%d]", prefix, j)
			if owner, dup := seen[rd.Name]; dup && rd.Name != "" {
				errs = append(errs, VError{
					Path:    rp + ".name",
					Code:    "DUPLICATE",
					Message: fmt.Sprintf("resource %q is already defined in domain %q", rd.Name, owner),
				})
			}
			seen[rd.Name] = def.Domain
			errs = append(errs, v.validateResource(rp, rd)...)
		}
	}
	return errs
}

func (v *Validator) validateResource(prefix string, rd model.ResourceDefinition) []VError {
	var errs []VError

	if !namePattern.MatchString(rd.Name) {
		errs = append(errs, VError{Path: prefix + ".name", Code: "INVALID_NAME", Message: fmt.Sprintf("name %q must be lower case letters, digits, '-' or '_'", rd.Name)})
	}
	if rd.Label == "" {
		errs = append(errs, VError{Path: prefix + ".label", Code: "REQUIRED", Message: "label is required"})
	}
	if !strings.HasPrefix(rd.Path, "/") {
		errs = append(errs, VError{Path: prefix + ".path", Code: "INVALID_PATH", Message: "path must start with '/'"})
	}
	if rd.Pagination.PageSize < 0 {
		errs = append(errs, VError{Path: prefix + ".pagination.page_size", Code: "INVALID_VALUE", Message: "page_size must not be negative"})
	}
	if rd.Schema != "" && v.schemas != nil && !v.schemas.Has(rd.Schema) {
		errs = append(errs, VError{Path: prefix + ".schema", Code: "UNKNOWN_SCHEMA", Message: fmt.Sprintf("schema %q is not defined by the backend document", rd.Schema)})
	}

	for _, op := range []string{"list", "view", "create", "update", "delete"} {
		req := rd.Access.For(op)
		switch req.Match {
		case "", model.MatchAll, model.MatchAny:
		default:
			errs = append(errs, VError{Path: prefix + ".access." + op + ".match", Code: "INVALID_VALUE", Message: fmt.Sprintf("match %q must be all or any", req.Match)})
		}
	}

	for k, f := range rd.Filters {
		if f.Name == "" {
			errs = append(errs, VError{Path: fmt.Sprintf("%s.filters[%d].name", prefix, k), Code: "REQUIRED", Message: "filter name is required"})
		}
	}
	for k, c := range rd.Columns {
		if c.Field == "" {
			errs = append(errs, VError{Path: fmt.Sprintf("%s.columns[%d].field", prefix, k), Code: "REQUIRED", Message: "column field is required"})
		}
	}

	if v.rules != nil && len(rd.Fields) > 0 {
		if err := v.rules.Check(rd.Fields); err != nil {
			errs = append(errs, VError{Path: prefix + ".fields", Code: "INVALID_RULE", Message: err.Error()})
		}
	}
	return errs
}
