package model

import (
	"encoding/json"
	"sort"
	"strings"
)

// PermissionSet is the flat set of permission strings granted to an identity.
// Keys may end in a wildcard (e.g. "employee:*").
type PermissionSet map[string]bool

// NewPermissionSet builds a set from a list of permission strings. Empty
// strings are skipped.
func NewPermissionSet(perms ...string) PermissionSet {
	ps := make(PermissionSet, len(perms))
	for _, p := range perms {
		if p == "" {
			continue
		}
		ps[p] = true
	}
	return ps
}

// Has returns true if the set contains the exact permission or a wildcard
// that matches it.
func (ps PermissionSet) Has(perm string) bool {
	if ps[perm] {
		return true
	}
	for pattern, granted := range ps {
		if granted && matchWildcard(pattern, perm) {
			return true
		}
	}
	return false
}

// HasAll returns true if every given permission is present. An empty list
// is trivially satisfied.
func (ps PermissionSet) HasAll(perms ...string) bool {
	for _, p := range perms {
		if !ps.Has(p) {
			return false
		}
	}
	return true
}

// HasAny returns true if at least one of the given permissions is present.
func (ps PermissionSet) HasAny(perms ...string) bool {
	for _, p := range perms {
		if ps.Has(p) {
			return true
		}
	}
	return false
}

// Union returns a new set containing the permissions of both sets.
func (ps PermissionSet) Union(other PermissionSet) PermissionSet {
	out := make(PermissionSet, len(ps)+len(other))
	for p, ok := range ps {
		if ok {
			out[p] = true
		}
	}
	for p, ok := range other {
		if ok {
			out[p] = true
		}
	}
	return out
}

// List returns the granted permissions in lexical order.
func (ps PermissionSet) List() []string {
	out := make([]string, 0, len(ps))
	for p, ok := range ps {
		if ok {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted array of strings, which is the
// shape the backend uses.
func (ps PermissionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(ps.List())
}

// UnmarshalJSON accepts either an array of strings or an object of booleans.
func (ps *PermissionSet) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*ps = NewPermissionSet(list...)
		return nil
	}
	var m map[string]bool
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*ps = PermissionSet(m)
	return nil
}

// matchWildcard reports whether pattern matches perm.
//
//	"*"              matches anything
//	"employee:*"     matches "employee:view" and "employee:salary:view"
//	"employee:view"  matches only itself
func matchWildcard(pattern, perm string) bool {
	if pattern == "*" {
		return true
	}
	if !strings.HasSuffix(pattern, ":*") {
		return false
	}
	return strings.HasPrefix(perm, pattern[:len(pattern)-1])
}

// Match selects how a permission list in a Requirement is combined.
type Match string

const (
	MatchAll Match = "all"
	MatchAny Match = "any"
)

// Requirement describes what an identity needs to see or use a view, menu
// entry or operation. Only the first non-empty rule in the order Permission,
// Permissions, Role is evaluated; an empty Requirement grants access to any
// authenticated identity.
type Requirement struct {
	Permission  string   `yaml:"permission,omitempty" json:"permission,omitempty"`
	Permissions []string `yaml:"permissions,omitempty" json:"permissions,omitempty"`
	Match       Match    `yaml:"match,omitempty" json:"match,omitempty"`
	Role        string   `yaml:"role,omitempty" json:"role,omitempty"`
}

// IsZero reports whether the requirement carries no rule at all.
func (r Requirement) IsZero() bool {
	return r.Permission == "" && len(r.Permissions) == 0 && r.Role == ""
}
