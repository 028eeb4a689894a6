package model

import (
	"context"
	"errors"
	"slices"
)

// Identity is the signed-in user as reported by the backend. It is replaced
// wholesale on sign-in and refresh, never patched in place.
type Identity struct {
	Username    string        `json:"username"`
	FullName    string        `json:"fullName,omitempty"`
	Email       string        `json:"email,omitempty"`
	Roles       []string      `json:"roles"`
	Permissions PermissionSet `json:"permissions"`
}

// Validate checks that the identity names a user.
func (id *Identity) Validate() error {
	if id.Username == "" {
		return errors.New("identity: username is required")
	}
	return nil
}

// HasRole returns true if the identity carries the given role.
func (id *Identity) HasRole(role string) bool {
	return slices.Contains(id.Roles, role)
}

// Clone returns a deep copy.
func (id *Identity) Clone() *Identity {
	if id == nil {
		return nil
	}
	out := *id
	out.Roles = slices.Clone(id.Roles)
	out.Permissions = id.Permissions.Union(nil)
	return &out
}

type identityKey struct{}

// WithIdentity attaches an identity to the context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored in ctx, or nil.
func IdentityFrom(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}
