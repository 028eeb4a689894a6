package access

import (
	"testing"

	"github.com/pitabwire/erpconsole/model"
)

func identity(roles []string, perms ...string) *model.Identity {
	return &model.Identity{Username: "jdoe", Roles: roles, Permissions: model.NewPermissionSet(perms...)}
}

func TestAllow_Unauthenticated(t *testing.T) {
	reqs := []model.Requirement{
		{},
		{Permission: "employee:view"},
		{Permissions: []string{"a"}, Match: model.MatchAny},
		{Role: "admin"},
	}
	for _, r := range reqs {
		if Allow(nil, r) {
			t.Errorf("Allow(nil, %+v) = true, want false", r)
		}
	}
}

func TestAllow_Precedence(t *testing.T) {
	tests := []struct {
		name string
		id   *model.Identity
		req  model.Requirement
		want bool
	}{
		{
			name: "no rule allows",
			id:   identity(nil),
			req:  model.Requirement{},
			want: true,
		},
		{
			name: "single permission granted",
			id:   identity(nil, "employee:view"),
			req:  model.Requirement{Permission: "employee:view"},
			want: true,
		},
		{
			name: "single permission wins over role",
			id:   identity([]string{"admin"}),
			req:  model.Requirement{Permission: "employee:view", Role: "admin"},
			want: false,
		},
		{
			name: "single permission wins over set",
			id:   identity(nil, "a", "b"),
			req:  model.Requirement{Permission: "c", Permissions: []string{"a", "b"}},
			want: false,
		},
		{
			name: "all mode needs every permission",
			id:   identity(nil, "a"),
			req:  model.Requirement{Permissions: []string{"a", "b"}, Match: model.MatchAll},
			want: false,
		},
		{
			name: "default mode is all",
			id:   identity(nil, "a", "b"),
			req:  model.Requirement{Permissions: []string{"a", "b"}},
			want: true,
		},
		{
			name: "any mode needs one",
			id:   identity(nil, "b"),
			req:  model.Requirement{Permissions: []string{"a", "b"}, Match: model.MatchAny},
			want: true,
		},
		{
			name: "set wins over role",
			id:   identity([]string{"admin"}),
			req:  model.Requirement{Permissions: []string{"a"}, Role: "admin"},
			want: false,
		},
		{
			name: "role checked last",
			id:   identity([]string{"hr"}),
			req:  model.Requirement{Role: "hr"},
			want: true,
		},
		{
			name: "role missing",
			id:   identity([]string{"sales"}),
			req:  model.Requirement{Role: "hr"},
			want: false,
		},
		{
			name: "wildcard permission",
			id:   identity(nil, "payroll:*"),
			req:  model.Requirement{Permission: "payroll:approve"},
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Allow(tt.id, tt.req); got != tt.want {
				t.Errorf("Allow() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilter(t *testing.T) {
	type entry struct {
		name string
		req  model.Requirement
	}
	items := []entry{
		{"employees", model.Requirement{Permission: "employee:view"}},
		{"payroll", model.Requirement{Permission: "payroll:view"}},
		{"home", model.Requirement{}},
	}
	got := Filter(identity(nil, "employee:view"), items, func(e entry) model.Requirement { return e.req })
	if len(got) != 2 || got[0].name != "employees" || got[1].name != "home" {
		t.Errorf("Filter() = %v, want [employees home]", got)
	}
}
