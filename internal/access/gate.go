// Package access decides what a signed-in identity may see and do, expands
// roles into permissions from a static policy, and keeps that policy fresh.
package access

import "github.com/pitabwire/erpconsole/model"

// Allow evaluates req against id. A nil identity is never allowed. Only the
// first rule present is consulted, in the order single permission,
// permission set, role. A requirement with no rule allows any identity.
func Allow(id *model.Identity, req model.Requirement) bool {
	if id == nil {
		return false
	}
	switch {
	case req.Permission != "":
		return id.Permissions.Has(req.Permission)
	case len(req.Permissions) > 0:
		if req.Match == model.MatchAny {
			return id.Permissions.HasAny(req.Permissions...)
		}
		return id.Permissions.HasAll(req.Permissions...)
	case req.Role != "":
		return id.HasRole(req.Role)
	}
	return true
}

// Filter returns the elements of items whose requirement passes for id.
func Filter[T any](id *model.Identity, items []T, requirement func(T) model.Requirement) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if Allow(id, requirement(it)) {
			out = append(out, it)
		}
	}
	return out
}
