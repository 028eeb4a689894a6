package model

import (
	"encoding/json"
	"testing"
)

func TestPermissionSet_Has_exact(t *testing.T) {
	ps := NewPermissionSet("employee:view", "payroll:view")
	if !ps.Has("employee:view") {
		t.Error("Has(employee:view) = false, want true")
	}
	if ps.Has("employee:delete") {
		t.Error("Has(employee:delete) = true, want false")
	}
}

func TestPermissionSet_Has_wildcards(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		perm    string
		want    bool
	}{
		{"star matches anything", "*", "contract:create", true},
		{"namespace matches child", "employee:*", "employee:view", true},
		{"namespace matches grandchild", "employee:*", "employee:salary:view", true},
		{"namespace does not leak", "employee:*", "payroll:view", false},
		{"plain is exact only", "employee", "employee:view", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := NewPermissionSet(tt.pattern)
			if got := ps.Has(tt.perm); got != tt.want {
				t.Errorf("Has(%q) with %q = %v, want %v", tt.perm, tt.pattern, got, tt.want)
			}
		})
	}
}

func TestPermissionSet_HasAll_HasAny(t *testing.T) {
	ps := NewPermissionSet("a", "b")

	if !ps.HasAll("a", "b") {
		t.Error("HasAll(a, b) = false, want true")
	}
	if ps.HasAll("a", "c") {
		t.Error("HasAll(a, c) = true, want false")
	}
	if !ps.HasAll() {
		t.Error("HasAll() with no args should be true")
	}
	if !ps.HasAny("c", "b") {
		t.Error("HasAny(c, b) = false, want true")
	}
	if ps.HasAny() {
		t.Error("HasAny() with no args should be false")
	}
}

func TestPermissionSet_Union(t *testing.T) {
	a := NewPermissionSet("a")
	b := NewPermissionSet("b")
	u := a.Union(b)
	if !u.HasAll("a", "b") {
		t.Errorf("Union = %v, want a and b", u.List())
	}
	if a.Has("b") {
		t.Error("Union must not modify the receiver")
	}
}

func TestPermissionSet_JSON(t *testing.T) {
	var ps PermissionSet
	if err := json.Unmarshal([]byte(`["role.view","role.edit"]`), &ps); err != nil {
		t.Fatalf("Unmarshal(array) error = %v", err)
	}
	if !ps.HasAll("role.view", "role.edit") {
		t.Errorf("decoded set = %v", ps.List())
	}

	if err := json.Unmarshal([]byte(`{"x":true,"y":false}`), &ps); err != nil {
		t.Fatalf("Unmarshal(object) error = %v", err)
	}
	if !ps.Has("x") || ps.Has("y") {
		t.Errorf("decoded set = %v", ps.List())
	}

	out, err := json.Marshal(NewPermissionSet("b", "a"))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(out) != `["a","b"]` {
		t.Errorf("Marshal() = %s, want [\"a\",\"b\"]", out)
	}
}

func TestRequirement_IsZero(t *testing.T) {
	if !(Requirement{}).IsZero() {
		t.Error("empty requirement should be zero")
	}
	if (Requirement{Match: MatchAny}).IsZero() == false {
		t.Error("match alone carries no rule")
	}
	if (Requirement{Role: "admin"}).IsZero() {
		t.Error("role requirement should not be zero")
	}
}
