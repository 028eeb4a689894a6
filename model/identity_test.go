package model

import (
	"context"
	"testing"
)

func TestIdentity_Validate(t *testing.T) {
	if err := (&Identity{}).Validate(); err == nil {
		t.Error("Validate() should fail without username")
	}
	if err := (&Identity{Username: "jdoe"}).Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestIdentity_HasRole(t *testing.T) {
	id := &Identity{Username: "jdoe", Roles: []string{"hr", "sales"}}
	if !id.HasRole("hr") {
		t.Error("HasRole(hr) = false, want true")
	}
	if id.HasRole("admin") {
		t.Error("HasRole(admin) = true, want false")
	}
}

func TestIdentity_Clone(t *testing.T) {
	id := &Identity{Username: "jdoe", Roles: []string{"hr"}, Permissions: NewPermissionSet("a")}
	c := id.Clone()
	c.Roles[0] = "admin"
	c.Permissions["b"] = true

	if id.Roles[0] != "hr" {
		t.Error("Clone shares the roles slice")
	}
	if id.Permissions.Has("b") {
		t.Error("Clone shares the permission set")
	}
	if (*Identity)(nil).Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()
	if IdentityFrom(ctx) != nil {
		t.Error("IdentityFrom(empty) should be nil")
	}
	id := &Identity{Username: "jdoe"}
	ctx = WithIdentity(ctx, id)
	if got := IdentityFrom(ctx); got != id {
		t.Errorf("IdentityFrom() = %v, want %v", got, id)
	}
}
