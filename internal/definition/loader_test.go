package definition

import (
	"testing"

	"github.com/pitabwire/erpconsole/model"
)

func TestLoader_LoadFile(t *testing.T) {
	def, err := NewLoader().LoadFile("testdata/hr/definition.yaml")
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if def.Domain != "hr" {
		t.Errorf("Domain = %q, want hr", def.Domain)
	}
	if len(def.Resources) != 2 {
		t.Fatalf("Resources = %d, want 2", len(def.Resources))
	}
	emp := def.Resources[0]
	if emp.Name != "employees" || emp.Path != "/api/employees" {
		t.Errorf("first resource = %s %s", emp.Name, emp.Path)
	}
	if emp.Access.List.Permission != "employee:view" {
		t.Errorf("list permission = %q", emp.Access.List.Permission)
	}
	if emp.Access.Delete.Match != model.MatchAll || len(emp.Access.Delete.Permissions) != 2 {
		t.Errorf("delete requirement = %+v", emp.Access.Delete)
	}
	if !emp.Fields["email"].Required || emp.Fields["email"].Tag != "email" {
		t.Errorf("email rule = %+v", emp.Fields["email"])
	}
	if len(emp.Filters) != 2 || emp.Filters[1].Options[0] != "Sales" {
		t.Errorf("filters = %+v", emp.Filters)
	}
	if def.Checksum == "" {
		t.Error("Checksum should not be empty")
	}
	if def.SourceFile != "testdata/hr/definition.yaml" {
		t.Errorf("SourceFile = %q", def.SourceFile)
	}
}

func TestLoader_LoadFile_notFound(t *testing.T) {
	if _, err := NewLoader().LoadFile("testdata/nonexistent.yaml"); err == nil {
		t.Fatal("LoadFile() with missing file should return error")
	}
}

func TestLoader_LoadFile_invalidYAML(t *testing.T) {
	if _, err := NewLoader().LoadFile("testdata/invalid/bad.yaml"); err == nil {
		t.Fatal("LoadFile() with invalid YAML should return error")
	}
}

func TestLoader_LoadAll(t *testing.T) {
	defs, err := NewLoader().LoadAll([]string{"testdata/hr", "testdata/sales"})
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("LoadAll() = %d definitions, want 2", len(defs))
	}
}

func TestLoader_LoadAll_propagatesParseErrors(t *testing.T) {
	if _, err := NewLoader().LoadAll([]string{"testdata"}); err == nil {
		t.Fatal("LoadAll() over a directory with invalid YAML should fail")
	}
}

func TestLoader_LoadAll_missingDirectory(t *testing.T) {
	if _, err := NewLoader().LoadAll([]string{"testdata/missing"}); err == nil {
		t.Fatal("LoadAll() with missing directory should fail")
	}
}
